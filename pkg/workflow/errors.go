// Package workflow implements DAG ordering and dispatch of workflow runs.
package workflow

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCyclicGraph marks a structural cycle that escaped validation:
	// no node is ready while unexecuted nodes remain. This is a fatal
	// configuration error, never a silent hang.
	ErrCyclicGraph = errors.New("workflow graph contains a cycle that escaped validation")

	// ErrEmptyWorkflow is returned when a workflow has no nodes to run.
	ErrEmptyWorkflow = errors.New("workflow has no nodes")
)

// ConfigurationError marks a malformed or missing required node config
// discovered only at execution time. It is always fatal, ignoring the
// node's continue_on_error flag: a broken node must never silently degrade
// into a false success.
type ConfigurationError struct {
	NodeID string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("node %s configuration error: %v", e.NodeID, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps a config problem found at run time.
func NewConfigurationError(nodeID string, err error) *ConfigurationError {
	return &ConfigurationError{NodeID: nodeID, Err: err}
}

// IsConfigurationError reports whether any error in the chain is a
// configuration error.
func IsConfigurationError(err error) bool {
	var configurationError *ConfigurationError

	return errors.As(err, &configurationError)
}

// TimeoutError marks a run that exceeded its wall-clock budget.
type TimeoutError struct {
	WorkflowID string
	Timeout    time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("workflow %s exceeded its %s execution timeout", e.WorkflowID, e.Timeout)
}

// IsTimeoutError reports whether any error in the chain is a timeout error.
func IsTimeoutError(err error) bool {
	var timeoutError *TimeoutError

	return errors.As(err, &timeoutError)
}

// NodeExecutionError wraps a runtime failure of one node. Runtime failures
// respect the node's continue_on_error flag and the scheduler's retry
// policy.
type NodeExecutionError struct {
	NodeID string
	Err    error
}

func (e *NodeExecutionError) Error() string {
	return fmt.Sprintf("node %s failed: %v", e.NodeID, e.Err)
}

func (e *NodeExecutionError) Unwrap() error {
	return e.Err
}
