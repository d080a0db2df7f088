// Package conditional provides the boolean branching node handler.
package conditional

import (
	"context"

	"github.com/flowmesh/flowmesh/pkg/conditions"
	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/workflow"
)

// Branch labels produced by the handler.
const (
	BranchTrue  = "true"
	BranchFalse = "false"
)

// Handler executes "conditional" nodes: a sandboxed condition group
// evaluated against the run's visible data, producing one of two labeled
// outputs.
type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

func (h *Handler) Type() string { return "conditional" }

func (h *Handler) Execute(_ context.Context, node *models.Node, execCtx *models.ExecutionContext) (any, error) {
	group, err := conditions.ParseGroup(node.Config)
	if err != nil {
		return nil, workflow.NewConfigurationError(node.ID, err)
	}

	matched, err := group.Evaluate(visibleData(execCtx))
	if err != nil {
		return nil, workflow.NewConfigurationError(node.ID, err)
	}

	branch := BranchFalse
	if matched {
		branch = BranchTrue
	}

	return map[string]any{
		"branch":  branch,
		"matched": matched,
	}, nil
}

// visibleData is what conditions can reference: the input payload, prior
// node results, and global variables.
func visibleData(execCtx *models.ExecutionContext) map[string]any {
	data := map[string]any{
		"input": execCtx.Input,
		"vars":  execCtx.Variables,
	}

	for nodeID, result := range execCtx.NodeResults {
		data[nodeID] = result
	}

	return data
}
