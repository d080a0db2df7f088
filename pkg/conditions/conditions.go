// Package conditions provides a restricted, sandboxed condition grammar:
// comparisons and boolean connectives over named fields. There is no
// general-purpose expression evaluation on purpose.
package conditions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Supported comparison operators.
const (
	OpEq       = "eq"
	OpNeq      = "neq"
	OpGt       = "gt"
	OpGte      = "gte"
	OpLt       = "lt"
	OpLte      = "lte"
	OpContains = "contains"
	OpExists   = "exists"
)

// Connectives for grouping conditions.
const (
	ModeAll = "all"
	ModeAny = "any"
)

var (
	ErrUnknownOperator = errors.New("unknown condition operator")
	ErrUnknownMode     = errors.New("unknown condition mode")
)

// Condition compares one named field of the evaluated data against a value.
// Field uses dotted paths into nested objects.
type Condition struct {
	Field    string `json:"field"    validate:"required"`
	Operator string `json:"operator" validate:"required"`
	Value    any    `json:"value,omitempty"`
}

// Group combines conditions with a boolean connective.
type Group struct {
	Mode       string      `json:"mode"`
	Conditions []Condition `json:"conditions"`
}

// Evaluate checks a single condition against the data.
func (c Condition) Evaluate(data map[string]any) (bool, error) {
	actual, found := LookupPath(data, c.Field)

	switch c.Operator {
	case OpExists:
		return found, nil
	case OpEq:
		return found && equal(actual, c.Value), nil
	case OpNeq:
		return !found || !equal(actual, c.Value), nil
	case OpGt, OpGte, OpLt, OpLte:
		if !found {
			return false, nil
		}

		return compareNumbers(actual, c.Value, c.Operator)
	case OpContains:
		if !found {
			return false, nil
		}

		return contains(actual, c.Value), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, c.Operator)
	}
}

// Evaluate checks the group against the data. An empty group holds.
func (g Group) Evaluate(data map[string]any) (bool, error) {
	mode := g.Mode
	if mode == "" {
		mode = ModeAll
	}

	if mode != ModeAll && mode != ModeAny {
		return false, fmt.Errorf("%w: %q", ErrUnknownMode, g.Mode)
	}

	for _, condition := range g.Conditions {
		ok, err := condition.Evaluate(data)
		if err != nil {
			return false, err
		}

		if mode == ModeAll && !ok {
			return false, nil
		}

		if mode == ModeAny && ok {
			return true, nil
		}
	}

	return mode == ModeAll || len(g.Conditions) == 0, nil
}

// ParseGroup builds a Group from a decoded config map.
func ParseGroup(config map[string]any) (Group, error) {
	group := Group{Mode: ModeAll}

	if mode, ok := config["mode"].(string); ok && mode != "" {
		group.Mode = mode
	}

	rawConditions, _ := config["conditions"].([]any)
	for i, raw := range rawConditions {
		entry, ok := raw.(map[string]any)
		if !ok {
			return Group{}, fmt.Errorf("condition %d is not an object", i)
		}

		condition := Condition{}
		condition.Field, _ = entry["field"].(string)
		condition.Operator, _ = entry["operator"].(string)
		condition.Value = entry["value"]

		if condition.Field == "" {
			return Group{}, fmt.Errorf("condition %d is missing a field", i)
		}

		if condition.Operator == "" {
			condition.Operator = OpEq
		}

		group.Conditions = append(group.Conditions, condition)
	}

	return group, nil
}

// LookupPath resolves a dotted path into nested map data.
func LookupPath(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}

	parts := strings.Split(path, ".")

	var current any = data

	for _, part := range parts {
		object, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = object[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

func equal(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func compareNumbers(a, b any, op string) (bool, error) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)

	if !aok || !bok {
		return false, fmt.Errorf("operator %q requires numeric operands, got %T and %T", op, a, b)
	}

	switch op {
	case OpGt:
		return af > bf, nil
	case OpGte:
		return af >= bf, nil
	case OpLt:
		return af < bf, nil
	case OpLte:
		return af <= bf, nil
	}

	return false, fmt.Errorf("%w: %q", ErrUnknownOperator, op)
}

func contains(haystack, needle any) bool {
	switch v := haystack.(type) {
	case string:
		return strings.Contains(v, fmt.Sprintf("%v", needle))
	case []any:
		for _, item := range v {
			if equal(item, needle) {
				return true
			}
		}
	}

	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)

		return f, err == nil
	default:
		return 0, false
	}
}
