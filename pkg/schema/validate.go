package schema

// Schema maps variable names to their declared types.
// Variables without a declared type are absent and accept anything.
type Schema map[string]Type

// ParseTypeMap converts a map of variable names to type names into a Schema.
// Example: {"age": "number", "subscribed": "boolean"}
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	result := make(Schema)
	var errs []error
	for key, typeStr := range typeMap {
		t, err := ParseType(typeStr)
		if err != nil {
			errs = append(errs, &ValidationError{Key: key, Reason: err.Error()})
			continue
		}
		if t != nil {
			result[key] = t
		}
	}
	if len(errs) > 0 {
		return nil, &AggregateError{Errors: errs}
	}
	return result, nil
}

// Coerce converts value to the declared type of name.
// Undeclared variables pass through unchanged.
func (s Schema) Coerce(name string, value any) (any, error) {
	t, ok := s[name]
	if !ok {
		return value, nil
	}
	out, err := t.Coerce(value)
	if err != nil {
		return nil, &ValidationError{Key: name, Reason: err.Error(), Value: value}
	}
	return out, nil
}

// CoerceAll coerces every declared key present in data, in place.
// It returns an aggregate of all failures; failed keys keep their raw value.
func (s Schema) CoerceAll(data map[string]any) error {
	var errs []error
	for name, value := range data {
		out, err := s.Coerce(name, value)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		data[name] = out
	}
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// Validate checks that every declared key present in data conforms to its type.
// Missing keys are not an error: scopes are seeded from defaults.
func Validate(s Schema, data map[string]any) error {
	var errs []error
	for name, t := range s {
		value, exists := data[name]
		if !exists {
			continue
		}
		if err := t.Validate(value); err != nil {
			errs = append(errs, &ValidationError{Key: name, Reason: err.Error(), Value: value})
		}
	}
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// Describe lists declared types as name -> type name, for diagnostics.
func (s Schema) Describe() map[string]string {
	out := make(map[string]string, len(s))
	for k, t := range s {
		out[k] = t.Name()
	}
	return out
}
