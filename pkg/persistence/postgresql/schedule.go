package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/persistence"
)

// ScheduleRepository handles schedule-related database operations.
type ScheduleRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sql.DB, logger *slog.Logger) *ScheduleRepository {
	return &ScheduleRepository{db: db, logger: logger}
}

const scheduleColumns = `
	id
  , workflow_id
  , type
  , config
  , is_active
  , priority
  , metadata
  , created_at
  , updated_at
`

// List returns all schedules ordered by creation time, newest first.
func (r *ScheduleRepository) List(ctx context.Context) ([]*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	schedules := make([]*models.Schedule, 0)

	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}

		schedules = append(schedules, schedule)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}

	return schedules, nil
}

// ByID loads a single schedule.
func (r *ScheduleRepository) ByID(ctx context.Context, id string) (*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`

	schedule, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrScheduleNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query schedule: %w", err)
	}

	return schedule, nil
}

// Save upserts the schedule.
func (r *ScheduleRepository) Save(ctx context.Context, schedule *models.Schedule) error {
	configJSON, err := json.Marshal(schedule.Config)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	metadataJSON, err := json.Marshal(schedule.Metadata)
	if err != nil {
		return fmt.Errorf("failed to serialize metadata: %w", err)
	}

	query := `
		INSERT INTO schedules (
			id, workflow_id, type, config, is_active, priority, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			workflow_id = EXCLUDED.workflow_id,
			type = EXCLUDED.type,
			config = EXCLUDED.config,
			is_active = EXCLUDED.is_active,
			priority = EXCLUDED.priority,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		schedule.ID,
		schedule.WorkflowID,
		schedule.Type,
		configJSON,
		schedule.IsActive,
		schedule.Priority,
		metadataJSON,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save schedule %s: %w", schedule.ID, err)
	}

	return nil
}

// Delete removes the schedule row.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %s", persistence.ErrScheduleNotFound, id)
	}

	return nil
}

func scanSchedule(row rowScanner) (*models.Schedule, error) {
	var (
		schedule     models.Schedule
		configJSON   []byte
		metadataJSON []byte
	)

	err := row.Scan(
		&schedule.ID,
		&schedule.WorkflowID,
		&schedule.Type,
		&configJSON,
		&schedule.IsActive,
		&schedule.Priority,
		&metadataJSON,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &schedule.Config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &schedule.Metadata); err != nil {
			return nil, fmt.Errorf("failed to parse metadata: %w", err)
		}
	}

	return &schedule, nil
}
