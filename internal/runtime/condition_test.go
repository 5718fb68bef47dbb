package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/botflow/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateCondition(t *testing.T) {
	scope := domain.Scope{
		"age":   int64(30),
		"name":  "Ana Maria",
		"tags":  []any{"vip", "beta"},
		"blank": "  ",
		"nil":   nil,
		"limit": "25",
	}

	tests := []struct {
		variable string
		operator string
		value    any
		want     bool
	}{
		{"age", "==", 30, true},
		{"age", "equals", "30", true},
		{"age", "!=", 31, true},
		{"age", ">", 29.5, true},
		{"age", ">=", 30, true},
		{"age", "<", 30, false},
		{"age", "<=", "{{limit}}", false},
		{"name", "contains", "maria", true},
		{"name", "not_contains", "joão", true},
		{"tags", "contains", "vip", true},
		{"tags", "contains", "gold", false},
		{"name", "exists", nil, true},
		{"nil", "exists", nil, false},
		{"ghost", "not_exists", nil, true},
		{"blank", "empty", nil, true},
		{"tags", "not_empty", nil, true},
		{"ghost", ">", 1, false},
		{"name", "==", "Ana Maria", true},
		{"ghost", "==", nil, true},
	}

	for _, tt := range tests {
		cond := &domain.ConditionData{Variable: tt.variable, Operator: tt.operator, Value: tt.value}
		got, err := EvaluateCondition(context.Background(), cond, scope)
		require.NoError(t, err, "%s %s %v", tt.variable, tt.operator, tt.value)
		assert.Equal(t, tt.want, got, "%s %s %v", tt.variable, tt.operator, tt.value)
	}
}

func TestEvaluateCondition_UnknownOperator(t *testing.T) {
	_, err := EvaluateCondition(context.Background(), &domain.ConditionData{Variable: "x", Operator: "~="}, domain.Scope{})
	assert.True(t, errors.Is(err, domain.ErrMalformedGraph))
}

func TestInterpolate(t *testing.T) {
	scope := domain.Scope{
		"name":       "Ana",
		"user":       map[string]any{"city": "Recife"},
		"n":          2.5,
		"dot.key":    "literal",
		"имя":        "Вася",
		"first name": "Ann",
	}

	tests := []struct {
		in   string
		want string
	}{
		{"Hi {{name}}", "Hi Ana"},
		{"Hi {{ name }}!", "Hi Ana!"},
		{"From {{user.city}}", "From Recife"},
		{"{{n}} items", "2.5 items"},
		{"{{dot.key}}", "literal"},
		{"Keep {{unknown}} and {{user.zip}}", "Keep {{unknown}} and {{user.zip}}"},
		{"no placeholders", "no placeholders"},
		{"Привет, {{имя}}! {{first name}}", "Привет, Вася! Ann"},
		{"{{ first name }}", "Ann"},
		{"{{  }} and {{}}", "{{  }} and {{}}"},
	}
	for _, tt := range tests {
		got, err := Interpolate(context.Background(), tt.in, scope)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
