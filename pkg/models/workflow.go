// Package models defines the core domain models for graph-based workflow execution.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Executable
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, not executable
)

// ErrorHandling controls what a node failure does to the rest of the run.
type ErrorHandling string

const (
	ErrorHandlingFailFast ErrorHandling = "fail_fast"
	ErrorHandlingContinue ErrorHandling = "continue"
)

// WorkflowSettings carries per-workflow execution policy.
type WorkflowSettings struct {
	TimeoutSeconds int           `json:"timeout_seconds"`
	RetryPolicy    string        `json:"retry_policy"`
	MaxRetries     int           `json:"max_retries"`
	ErrorHandling  ErrorHandling `json:"error_handling"`
	Parallelism    int           `json:"parallelism"`
}

// Workflow is a directed graph of typed nodes. It is owned by a user,
// mutated only through explicit update calls and never during execution.
type Workflow struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"        validate:"required,min=3"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Version     int              `json:"version"`
	Status      WorkflowStatus   `json:"status"      validate:"required"`
	Nodes       []*Node          `json:"nodes"`
	Edges       []*Edge          `json:"edges"`
	Variables   map[string]any   `json:"variables"`
	Settings    WorkflowSettings `json:"settings"`
	Owner       string           `json:"owner"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Node is a single typed unit of work within a workflow. The node id is
// unique per workflow; the type must exist in the handler registry before
// any run starts.
type Node struct {
	ID              string         `json:"id"   validate:"required"`
	Type            string         `json:"type" validate:"required"`
	Name            string         `json:"name"`
	Config          map[string]any `json:"config"`
	ContinueOnError bool           `json:"continue_on_error,omitempty"`
}

// Edge is a directed dependency between two nodes. Both ids must exist in
// the workflow's node set and the full edge set must be acyclic.
type Edge struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// NodeByID returns the node with the given id, if any.
func (w *Workflow) NodeByID(id string) (*Node, bool) {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return nil, false
}
