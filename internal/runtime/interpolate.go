package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/botflow/pkg/domain"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}]+?)\s*\}\}`)

// Interpolate replaces {{name}} and {{ user.name }} placeholders with values from scope.
// Any text between the braces names a variable, so {{имя}} and {{first name}} work too.
// Placeholders that do not resolve are left as literal text.
func Interpolate(_ context.Context, text string, scope domain.Scope) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		name := strings.TrimSpace(placeholderPattern.FindStringSubmatch(match)[1])
		v, ok := Lookup(scope, name)
		if !ok {
			return match
		}
		return Stringify(v)
	}), nil
}

// Lookup resolves a possibly dotted variable path against the scope.
// A key containing dots is tried verbatim before the path is walked.
func Lookup(scope domain.Scope, path string) (any, bool) {
	if v, ok := scope[path]; ok {
		return v, true
	}
	parts := strings.Split(path, ".")
	if len(parts) == 1 {
		return nil, false
	}

	var current any = map[string]any(scope)
	for _, p := range parts {
		switch m := current.(type) {
		case map[string]any:
			v, ok := m[p]
			if !ok {
				return nil, false
			}
			current = v
		case domain.Scope:
			v, ok := m[p]
			if !ok {
				return nil, false
			}
			current = v
		default:
			return nil, false
		}
	}
	return current, true
}

// Stringify renders a scope value the way it appears inside a message.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
	return fmt.Sprint(v)
}

func singlePlaceholder(s string) (string, bool) {
	m := placeholderPattern.FindStringSubmatchIndex(s)
	if m == nil || m[0] != 0 || m[1] != len(s) {
		return "", false
	}
	return strings.TrimSpace(s[m[2]:m[3]]), true
}
