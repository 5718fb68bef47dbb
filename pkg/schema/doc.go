// Package schema implements the variable types a bot graph may declare.
//
// Graph variables optionally carry a "type" ("string", "number", "boolean",
// "list", "object"). Values written by set-variable nodes or patched from the
// debugger are coerced to that type, so a "42" typed in the editor becomes
// the number 42:
//
//	s, err := schema.ParseTypeMap(map[string]string{"age": "number"})
//	v, err := s.Coerce("age", "42") // float64(42)
//
// Undeclared variables are untyped and pass through unchanged.
package schema
