// Package protocol defines the interfaces and contracts for node handlers and triggers.
package protocol

import (
	"context"

	"github.com/flowmesh/flowmesh/pkg/models"
)

// NodeHandler executes one node type. Handlers surface configuration
// problems discovered at run time as *workflow.ConfigurationError, which is
// fatal regardless of the node's continue_on_error flag; any other error is
// a runtime failure and respects that flag.
type NodeHandler interface {
	// Type returns the node type name this handler serves
	Type() string

	// Execute runs the node against the shared execution context and
	// returns its result
	Execute(ctx context.Context, node *models.Node, execCtx *models.ExecutionContext) (any, error)
}
