// Package file provides a file system backed persistence implementation.
// Each entity is stored as one JSON document under the root directory.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/flowmesh/flowmesh/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on top of
// a directory tree of JSON files.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	scheduleRepo  *ScheduleRepository
	executionRepo *ExecutionRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// A "file://" prefix on the root is accepted and stripped.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.TrimPrefix(root, "file://")

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  NewWorkflowRepository(cleanRoot),
		scheduleRepo:  NewScheduleRepository(cleanRoot),
		executionRepo: NewExecutionRepository(cleanRoot),
	}
}

// Workflows returns the workflow repository.
func (fp *Persistence) Workflows() persistence.WorkflowRepository {
	return fp.workflowRepo
}

// Schedules returns the schedule repository.
func (fp *Persistence) Schedules() persistence.ScheduleRepository {
	return fp.scheduleRepo
}

// Executions returns the execution ledger repository.
func (fp *Persistence) Executions() persistence.ExecutionRepository {
	return fp.executionRepo
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. There is nothing to release for
// file persistence.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
