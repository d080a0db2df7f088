// Package merge provides the result-aggregation node handler.
package merge

import (
	"context"

	"github.com/flowmesh/flowmesh/pkg/models"
)

// Handler executes "merge" nodes, aggregating every prior node's result
// into one object.
type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

func (h *Handler) Type() string { return "merge" }

func (h *Handler) Execute(_ context.Context, node *models.Node, execCtx *models.ExecutionContext) (any, error) {
	merged := make(map[string]any, len(execCtx.NodeResults))
	for nodeID, result := range execCtx.NodeResults {
		merged[nodeID] = result
	}

	if include, ok := node.Config["include_input"].(bool); ok && include {
		merged["input"] = execCtx.Input
	}

	return map[string]any{
		"merged": merged,
		"count":  len(merged),
	}, nil
}
