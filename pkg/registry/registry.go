// Package registry maps node type names to their execution handlers.
package registry

import (
	"context"
	"log/slog"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/protocol"
)

// Registry owns the handler map. It is an explicitly constructed service
// object injected wherever consumed, not a package-level singleton.
type Registry struct {
	logger   *slog.Logger
	handlers map[string]protocol.NodeHandler
	fallback protocol.NodeHandler
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:   logger.With("module", "registry"),
		handlers: make(map[string]protocol.NodeHandler),
		fallback: &fallbackHandler{},
	}
}

// Register adds a handler under its declared type, replacing any previous
// registration for that type.
func (r *Registry) Register(handler protocol.NodeHandler) {
	r.handlers[handler.Type()] = handler
}

// Has reports whether a handler is registered for the type.
func (r *Registry) Has(nodeType string) bool {
	_, ok := r.handlers[nodeType]

	return ok
}

// Types returns all registered handler type names.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for nodeType := range r.handlers {
		types = append(types, nodeType)
	}

	return types
}

// Dispatch invokes the handler for the node's type. Unknown types dispatch
// to a fallback handler returning a clearly flagged placeholder result
// instead of raising, so partially specified workflows remain runnable
// during iterative design.
func (r *Registry) Dispatch(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext) (any, error) {
	handler, ok := r.handlers[node.Type]
	if !ok {
		r.logger.Warn("No handler registered, using fallback",
			"node_id", node.ID, "node_type", node.Type)

		handler = r.fallback
	}

	return handler.Execute(ctx, node, execCtx)
}

type fallbackHandler struct{}

func (h *fallbackHandler) Type() string {
	return "unhandled"
}

func (h *fallbackHandler) Execute(_ context.Context, node *models.Node, _ *models.ExecutionContext) (any, error) {
	return map[string]any{
		"placeholder":    true,
		"unhandled_type": node.Type,
		"node_id":        node.ID,
	}, nil
}
