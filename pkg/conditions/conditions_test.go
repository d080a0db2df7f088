package conditions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionOperators(t *testing.T) {
	data := map[string]any{
		"status": "paid",
		"amount": 42.5,
		"order": map[string]any{
			"items": []any{"a", "b"},
			"count": 2,
		},
	}

	cases := []struct {
		name      string
		condition Condition
		expected  bool
	}{
		{"eq string", Condition{Field: "status", Operator: OpEq, Value: "paid"}, true},
		{"neq string", Condition{Field: "status", Operator: OpNeq, Value: "pending"}, true},
		{"gt number", Condition{Field: "amount", Operator: OpGt, Value: 40}, true},
		{"lte number", Condition{Field: "amount", Operator: OpLte, Value: 42.5}, true},
		{"lt fails", Condition{Field: "amount", Operator: OpLt, Value: 10}, false},
		{"dotted path", Condition{Field: "order.count", Operator: OpGte, Value: 2}, true},
		{"contains array", Condition{Field: "order.items", Operator: OpContains, Value: "b"}, true},
		{"exists", Condition{Field: "order.items", Operator: OpExists}, true},
		{"exists missing", Condition{Field: "order.missing", Operator: OpExists}, false},
		{"eq missing field", Condition{Field: "nope", Operator: OpEq, Value: "x"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := tc.condition.Evaluate(data)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, result)
		})
	}
}

func TestConditionUnknownOperator(t *testing.T) {
	_, err := Condition{Field: "x", Operator: "regex"}.Evaluate(map[string]any{"x": 1})
	require.ErrorIs(t, err, ErrUnknownOperator)
}

func TestGroupEvaluate(t *testing.T) {
	data := map[string]any{"a": 1, "b": 2}

	all := Group{Mode: ModeAll, Conditions: []Condition{
		{Field: "a", Operator: OpEq, Value: 1},
		{Field: "b", Operator: OpEq, Value: 2},
	}}

	result, err := all.Evaluate(data)
	require.NoError(t, err)
	assert.True(t, result)

	any := Group{Mode: ModeAny, Conditions: []Condition{
		{Field: "a", Operator: OpEq, Value: 99},
		{Field: "b", Operator: OpEq, Value: 2},
	}}

	result, err = any.Evaluate(data)
	require.NoError(t, err)
	assert.True(t, result)

	empty := Group{}
	result, err = empty.Evaluate(data)
	require.NoError(t, err)
	assert.True(t, result, "empty group holds")
}

func TestParseGroup(t *testing.T) {
	group, err := ParseGroup(map[string]any{
		"mode": "any",
		"conditions": []any{
			map[string]any{"field": "status", "operator": "eq", "value": "paid"},
			map[string]any{"field": "amount", "value": 10},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, ModeAny, group.Mode)
	require.Len(t, group.Conditions, 2)
	assert.Equal(t, OpEq, group.Conditions[1].Operator, "operator defaults to eq")

	_, err = ParseGroup(map[string]any{
		"conditions": []any{map[string]any{"operator": "eq"}},
	})
	require.Error(t, err, "missing field rejected")
}
