// Package flow provides the run boundary handlers: start, trigger and end.
package flow

import (
	"context"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/template"
)

// StartHandler passes the run input through unchanged.
type StartHandler struct{}

func NewStartHandler() *StartHandler { return &StartHandler{} }

func (h *StartHandler) Type() string { return "start" }

func (h *StartHandler) Execute(_ context.Context, _ *models.Node, execCtx *models.ExecutionContext) (any, error) {
	return map[string]any{"input": execCtx.Input}, nil
}

// TriggerHandler passes the trigger payload through unchanged.
type TriggerHandler struct{}

func NewTriggerHandler() *TriggerHandler { return &TriggerHandler{} }

func (h *TriggerHandler) Type() string { return "trigger" }

func (h *TriggerHandler) Execute(_ context.Context, _ *models.Node, execCtx *models.ExecutionContext) (any, error) {
	return map[string]any{
		"trigger_type": execCtx.TriggerType,
		"input":        execCtx.Input,
	}, nil
}

// EndHandler snapshots the run output. With an "output" template configured
// it resolves that template; otherwise it returns all prior node results.
type EndHandler struct{}

func NewEndHandler() *EndHandler { return &EndHandler{} }

func (h *EndHandler) Type() string { return "end" }

func (h *EndHandler) Execute(_ context.Context, node *models.Node, execCtx *models.ExecutionContext) (any, error) {
	if tmpl, ok := node.Config["output"].(string); ok && tmpl != "" {
		return map[string]any{"output": template.Resolve(tmpl, execCtx)}, nil
	}

	output := make(map[string]any, len(execCtx.NodeResults))
	for nodeID, result := range execCtx.NodeResults {
		output[nodeID] = result
	}

	return map[string]any{"output": output}, nil
}
