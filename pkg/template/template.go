// Package template resolves cross-node data references inside string
// configuration at execution time.
package template

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/flowmesh/flowmesh/pkg/conditions"
	"github.com/flowmesh/flowmesh/pkg/models"
)

const (
	openMarker  = "{{"
	closeMarker = "}}"

	// InputReference resolves to the serialized run input payload.
	InputReference = "input"

	// VariablePrefix marks references to named global variables.
	VariablePrefix = "vars."
)

// Resolve performs a single left-to-right pass over the template. Resolved
// substitutions are never re-scanned, so interpolation cannot loop. An
// unresolved reference (node not yet executed, field missing, or result
// swallowed by continue_on_error) is left as the literal placeholder text so
// failures remain visible downstream.
func Resolve(template string, execCtx *models.ExecutionContext) string {
	var out strings.Builder

	rest := template

	for {
		start := strings.Index(rest, openMarker)
		if start < 0 {
			out.WriteString(rest)

			break
		}

		end := strings.Index(rest[start:], closeMarker)
		if end < 0 {
			out.WriteString(rest)

			break
		}

		out.WriteString(rest[:start])

		placeholder := rest[start : start+end+len(closeMarker)]
		reference := strings.TrimSpace(rest[start+len(openMarker) : start+end])

		if value, ok := lookup(reference, execCtx); ok {
			out.WriteString(stringify(value))
		} else {
			out.WriteString(placeholder)
		}

		rest = rest[start+end+len(closeMarker):]
	}

	return out.String()
}

func lookup(reference string, execCtx *models.ExecutionContext) (any, bool) {
	if reference == "" {
		return nil, false
	}

	if reference == InputReference {
		return execCtx.Input, true
	}

	if name, ok := strings.CutPrefix(reference, VariablePrefix); ok {
		value, found := execCtx.Variables[name]

		return value, found
	}

	nodeID, field, hasField := strings.Cut(reference, ".")

	result, found := execCtx.Result(nodeID)
	if !found {
		return nil, false
	}

	if !hasField {
		return result, true
	}

	object, ok := result.(map[string]any)
	if !ok {
		return nil, false
	}

	return conditions.LookupPath(object, field)
}

// stringify inlines a resolved value: strings verbatim, everything else
// serialized as JSON.
func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return "null"
	default:
		serialized, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}

		return string(serialized)
	}
}
