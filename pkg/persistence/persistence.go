// Package persistence provides the data storage abstraction layer for
// workflows, schedules and execution records.
package persistence

import (
	"context"

	"github.com/flowmesh/flowmesh/pkg/models"
)

// Persistence is the top-level storage entry point. Implementations group
// the repositories behind a single connection lifecycle.
type Persistence interface {
	Workflows() WorkflowRepository
	Schedules() ScheduleRepository
	Executions() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	List(ctx context.Context) ([]*models.Workflow, error)
	ByID(ctx context.Context, id string) (*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

// ScheduleRepository stores schedule definitions.
type ScheduleRepository interface {
	List(ctx context.Context) ([]*models.Schedule, error)
	ByID(ctx context.Context, id string) (*models.Schedule, error)
	Save(ctx context.Context, schedule *models.Schedule) error
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores the execution ledger: one record per workflow
// run plus one entry per queue dispatch attempt.
type ExecutionRepository interface {
	Save(ctx context.Context, record *models.ExecutionRecord) error
	ByID(ctx context.Context, id string) (*models.ExecutionRecord, error)
	ByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error)

	RecordAttempt(ctx context.Context, attempt *models.DispatchAttempt) error
	Attempts(ctx context.Context, scheduleID string) ([]*models.DispatchAttempt, error)
}
