// Package postgresql provides the PostgreSQL persistence implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the postgres driver with database/sql.
	_ "github.com/lib/pq"

	"github.com/flowmesh/flowmesh/pkg/persistence"
	"github.com/flowmesh/flowmesh/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	workflowRepo  *WorkflowRepository
	scheduleRepo  *ScheduleRepository
	executionRepo *ExecutionRepository
}

// NewPersistence connects, runs migrations and returns a ready persistence.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		workflowRepo:  NewWorkflowRepository(database, logger),
		scheduleRepo:  NewScheduleRepository(database, logger),
		executionRepo: NewExecutionRepository(database, logger),
	}, nil
}

// Workflows returns the workflow repository.
func (p *Persistence) Workflows() persistence.WorkflowRepository {
	return p.workflowRepo
}

// Schedules returns the schedule repository.
func (p *Persistence) Schedules() persistence.ScheduleRepository {
	return p.scheduleRepo
}

// Executions returns the execution ledger repository.
func (p *Persistence) Executions() persistence.ExecutionRepository {
	return p.executionRepo
}

// HealthCheck pings the database.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	err := p.db.Close()
	if err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	return nil
}
