package models

import (
	"time"
)

// ExecutionLogEntry is one event in a run's ordered log.
type ExecutionLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	NodeID    string    `json:"node_id,omitempty"`
	Message   string    `json:"message"`
}

// ExecutionContext is the ephemeral per-run mutable state. It is created at
// run start, mutated incrementally by each completing node and discarded
// after the terminal summary is persisted. It belongs exclusively to one run
// and is never shared across runs.
type ExecutionContext struct {
	ID          string              `json:"id"`
	WorkflowID  string              `json:"workflow_id"`
	UserID      string              `json:"user_id,omitempty"`
	TriggerType string              `json:"trigger_type,omitempty"`
	Input       map[string]any      `json:"input,omitempty"`
	NodeResults map[string]any      `json:"node_results,omitempty"`
	Variables   map[string]any      `json:"variables,omitempty"`
	Logs        []ExecutionLogEntry `json:"logs,omitempty"`
	StartedAt   time.Time           `json:"started_at"`
}

// NewExecutionContext creates a fresh context for one run.
func NewExecutionContext(id, workflowID string, input, variables map[string]any) *ExecutionContext {
	if input == nil {
		input = make(map[string]any)
	}

	if variables == nil {
		variables = make(map[string]any)
	}

	return &ExecutionContext{
		ID:          id,
		WorkflowID:  workflowID,
		Input:       input,
		NodeResults: make(map[string]any),
		Variables:   variables,
		Logs:        make([]ExecutionLogEntry, 0),
		StartedAt:   time.Now().UTC(),
	}
}

// SetResult stores the result of a completed node.
func (c *ExecutionContext) SetResult(nodeID string, result any) {
	c.NodeResults[nodeID] = result
}

// Result returns the stored result of a prior node, if any. A node whose
// failure was swallowed has no stored result.
func (c *ExecutionContext) Result(nodeID string) (any, bool) {
	result, ok := c.NodeResults[nodeID]

	return result, ok
}

// Log appends one event to the run's ordered log.
func (c *ExecutionContext) Log(level, nodeID, message string) {
	c.Logs = append(c.Logs, ExecutionLogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		NodeID:    nodeID,
		Message:   message,
	})
}

// Duration returns the wall-clock time elapsed since the run started.
func (c *ExecutionContext) Duration() time.Duration {
	return time.Since(c.StartedAt)
}
