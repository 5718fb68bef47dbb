package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Type is a declared variable type of a bot graph.
// Implementations validate values and coerce editor input (often strings) into them.
type Type interface {
	// Name returns the declared type name (e.g., "string", "number").
	Name() string
	// Validate checks if a value already conforms to this type.
	Validate(value any) error
	// Coerce converts value into this type, or fails.
	Coerce(value any) (any, error)
}

// StringType accepts any scalar and renders it as text.
type StringType struct{}

func (t *StringType) Name() string { return "string" }

func (t *StringType) Validate(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("expected string, got %T", value)
	}
	return nil
}

func (t *StringType) Coerce(value any) (any, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case map[string]any, []any:
		return nil, fmt.Errorf("cannot use %T as string", value)
	default:
		return fmt.Sprint(v), nil
	}
}

// NumberType holds numeric values as float64, matching JSON decoding.
type NumberType struct{}

func (t *NumberType) Name() string { return "number" }

func (t *NumberType) Validate(value any) error {
	if _, ok := ToFloat(value); !ok {
		return fmt.Errorf("expected number, got %T", value)
	}
	if _, isString := value.(string); isString {
		return fmt.Errorf("expected number, got string")
	}
	return nil
}

func (t *NumberType) Coerce(value any) (any, error) {
	f, ok := ToFloat(value)
	if !ok {
		return nil, fmt.Errorf("cannot use %v (%T) as number", value, value)
	}
	return f, nil
}

// BoolType holds booleans; coercion understands yes/no style answers.
type BoolType struct{}

func (t *BoolType) Name() string { return "boolean" }

func (t *BoolType) Validate(value any) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("expected boolean, got %T", value)
	}
	return nil
}

func (t *BoolType) Coerce(value any) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "y", "1", "on":
			return true, nil
		case "false", "no", "n", "0", "off", "":
			return false, nil
		}
	default:
		if f, ok := ToFloat(v); ok {
			return f != 0, nil
		}
	}
	return nil, fmt.Errorf("cannot use %v (%T) as boolean", value, value)
}

// ListType holds []any; a JSON array string is decoded.
type ListType struct{}

func (t *ListType) Name() string { return "list" }

func (t *ListType) Validate(value any) error {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return fmt.Errorf("expected list, got %T", value)
	}
	return nil
}

func (t *ListType) Coerce(value any) (any, error) {
	if s, ok := value.(string); ok {
		var out []any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("cannot decode list: %w", err)
		}
		return out, nil
	}
	if err := t.Validate(value); err != nil {
		return nil, err
	}
	return value, nil
}

// ObjectType holds map[string]any; a JSON object string is decoded.
type ObjectType struct{}

func (t *ObjectType) Name() string { return "object" }

func (t *ObjectType) Validate(value any) error {
	if _, ok := value.(map[string]any); !ok {
		return fmt.Errorf("expected object, got %T", value)
	}
	return nil
}

func (t *ObjectType) Coerce(value any) (any, error) {
	if s, ok := value.(string); ok {
		var out map[string]any
		if err := json.Unmarshal([]byte(s), &out); err != nil {
			return nil, fmt.Errorf("cannot decode object: %w", err)
		}
		return out, nil
	}
	if err := t.Validate(value); err != nil {
		return nil, err
	}
	return value, nil
}

// --- Factory Functions ---

// String creates a string type.
func String() Type { return &StringType{} }

// Number creates a number type.
func Number() Type { return &NumberType{} }

// Bool creates a boolean type.
func Bool() Type { return &BoolType{} }

// List creates a list type.
func List() Type { return &ListType{} }

// Object creates an object type.
func Object() Type { return &ObjectType{} }

// ParseType converts a declared type name to a Type.
// The empty name means "untyped" and returns (nil, nil).
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "any":
		return nil, nil
	case "string", "text":
		return String(), nil
	case "number", "int", "integer", "float":
		return Number(), nil
	case "boolean", "bool":
		return Bool(), nil
	case "list", "array":
		return List(), nil
	case "object", "map":
		return Object(), nil
	default:
		return nil, fmt.Errorf("unsupported variable type: %s", name)
	}
}

// ToFloat converts numeric values (and numeric strings) to float64.
func ToFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}
