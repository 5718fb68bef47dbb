package runtime

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/aretw0/botflow/pkg/schema"
)

// EvaluateCondition applies cond.Operator to the scope value of cond.Variable and cond.Value.
// Comparisons are numeric when both sides are numeric and textual otherwise.
// An operator outside the supported set is a MalformedGraph error.
func EvaluateCondition(ctx context.Context, cond *domain.ConditionData, scope domain.Scope) (bool, error) {
	actual, present := Lookup(scope, cond.Variable)

	expected := cond.Value
	if s, ok := expected.(string); ok {
		rendered, err := Interpolate(ctx, s, scope)
		if err != nil {
			return false, err
		}
		expected = rendered
	}

	op := strings.ToLower(strings.TrimSpace(cond.Operator))
	switch op {
	case "", "==", "===", "equals", "eq":
		return equal(actual, expected), nil
	case "!=", "!==", "not_equals", "ne":
		return !equal(actual, expected), nil
	case ">", "gt", "greater_than":
		c, ok := compare(actual, expected)
		return ok && c > 0, nil
	case ">=", "gte":
		c, ok := compare(actual, expected)
		return ok && c >= 0, nil
	case "<", "lt", "less_than":
		c, ok := compare(actual, expected)
		return ok && c < 0, nil
	case "<=", "lte":
		c, ok := compare(actual, expected)
		return ok && c <= 0, nil
	case "contains":
		return contains(actual, expected), nil
	case "not_contains":
		return !contains(actual, expected), nil
	case "exists":
		return present && actual != nil, nil
	case "not_exists":
		return !present || actual == nil, nil
	case "empty", "is_empty":
		return isEmpty(actual), nil
	case "not_empty", "is_not_empty":
		return !isEmpty(actual), nil
	}
	return false, &domain.GraphError{Reason: fmt.Sprintf("unknown condition operator '%s'", cond.Operator)}
}

func equal(a, b any) bool {
	if af, ok := schema.ToFloat(a); ok {
		if bf, ok := schema.ToFloat(b); ok {
			return af == bf
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Stringify(a) == Stringify(b)
}

// compare returns -1, 0 or 1; ok is false when a is absent.
func compare(a, b any) (int, bool) {
	if a == nil {
		return 0, false
	}
	if af, ok := schema.ToFloat(a); ok {
		if bf, ok := schema.ToFloat(b); ok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			}
			return 0, true
		}
	}
	return strings.Compare(Stringify(a), Stringify(b)), true
}

func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case nil:
		return false
	case []any:
		for _, item := range h {
			if equal(item, needle) {
				return true
			}
		}
		return false
	case map[string]any:
		_, ok := h[Stringify(needle)]
		return ok
	}
	return strings.Contains(strings.ToLower(Stringify(haystack)), strings.ToLower(Stringify(needle)))
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	}
	return false
}
