// Package services provides the application services tying persistence,
// validation and execution together.
package services

import (
	"errors"
	"fmt"

	"github.com/flowmesh/flowmesh/pkg/persistence"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

	// ErrWorkflowNotExecutable is returned when executing a workflow whose
	// status is not active.
	ErrWorkflowNotExecutable = errors.New("workflow is not executable")

	// ErrWorkflowNameRequired is returned for workflows without a name.
	ErrWorkflowNameRequired = errors.New("workflow name is required")
)

// ValidationError carries the validation issue list of a rejected run.
type ValidationError struct {
	WorkflowID string
	Issues     []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow %s failed validation: %d issue(s)", e.WorkflowID, len(e.Issues))
}

// IsValidationError reports whether err is a ValidationError.
func IsValidationError(err error) bool {
	var target *ValidationError

	return errors.As(err, &target)
}
