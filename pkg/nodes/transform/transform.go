// Package transform provides the template-driven data reshaping node handler.
package transform

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/template"
	"github.com/flowmesh/flowmesh/pkg/workflow"
)

// Handler executes "transform" nodes: an expression template resolved
// against the execution context. Output that parses as JSON is returned
// structured, everything else as a string.
type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

func (h *Handler) Type() string { return "transform" }

func (h *Handler) Execute(_ context.Context, node *models.Node, execCtx *models.ExecutionContext) (any, error) {
	expression, ok := node.Config["expression"].(string)
	if !ok || expression == "" {
		return nil, workflow.NewConfigurationError(node.ID, errors.New("missing required field 'expression'"))
	}

	rendered := template.Resolve(expression, execCtx)

	trimmed := strings.TrimSpace(rendered)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var parsed any
		if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
			return map[string]any{"result": parsed}, nil
		}
	}

	return map[string]any{"result": rendered}, nil
}
