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

// ExecutionRepository handles execution ledger database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , workflow_id
  , user_id
  , status
  , trigger_type
  , input
  , output
  , logs
  , started_at
  , finished_at
  , execution_time_ms
  , node_count
  , success_node_count
  , failed_node_count
  , latency_bucket
  , error_message
  , failure_type
`

// Save upserts the execution record.
func (r *ExecutionRepository) Save(ctx context.Context, record *models.ExecutionRecord) error {
	inputJSON, err := json.Marshal(record.Input)
	if err != nil {
		return fmt.Errorf("failed to serialize input: %w", err)
	}

	outputJSON, err := json.Marshal(record.Output)
	if err != nil {
		return fmt.Errorf("failed to serialize output: %w", err)
	}

	logsJSON, err := json.Marshal(record.Logs)
	if err != nil {
		return fmt.Errorf("failed to serialize logs: %w", err)
	}

	query := `
		INSERT INTO executions (
			id, workflow_id, user_id, status, trigger_type, input, output, logs,
			started_at, finished_at, execution_time_ms, node_count,
			success_node_count, failed_node_count, latency_bucket,
			error_message, failure_type
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			output = EXCLUDED.output,
			logs = EXCLUDED.logs,
			finished_at = EXCLUDED.finished_at,
			execution_time_ms = EXCLUDED.execution_time_ms,
			node_count = EXCLUDED.node_count,
			success_node_count = EXCLUDED.success_node_count,
			failed_node_count = EXCLUDED.failed_node_count,
			latency_bucket = EXCLUDED.latency_bucket,
			error_message = EXCLUDED.error_message,
			failure_type = EXCLUDED.failure_type
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		record.WorkflowID,
		record.UserID,
		record.Status,
		record.TriggerType,
		inputJSON,
		outputJSON,
		logsJSON,
		record.StartedAt,
		record.FinishedAt,
		record.ExecutionTimeMs,
		record.NodeCount,
		record.SuccessNodeCount,
		record.FailedNodeCount,
		record.LatencyBucket,
		record.ErrorMessage,
		record.FailureType,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution %s: %w", record.ID, err)
	}

	return nil
}

// ByID loads a single execution record.
func (r *ExecutionRepository) ByID(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	record, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrExecutionNotFound, id)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to query execution: %w", err)
	}

	return record, nil
}

// ByWorkflow returns every execution record for the workflow, newest first.
func (r *ExecutionRepository) ByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE workflow_id = $1 ORDER BY started_at DESC`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*models.ExecutionRecord, 0)

	for rows.Next() {
		record, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return records, nil
}

// RecordAttempt appends one dispatch attempt row.
func (r *ExecutionRepository) RecordAttempt(ctx context.Context, attempt *models.DispatchAttempt) error {
	query := `
		INSERT INTO dispatch_attempts (id, schedule_id, workflow_id, attempt, status, error, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		attempt.ID,
		attempt.ScheduleID,
		attempt.WorkflowID,
		attempt.Attempt,
		attempt.Status,
		attempt.Error,
		attempt.At,
	)
	if err != nil {
		return fmt.Errorf("failed to record dispatch attempt: %w", err)
	}

	return nil
}

// Attempts returns the dispatch ledger for one schedule in append order.
func (r *ExecutionRepository) Attempts(ctx context.Context, scheduleID string) ([]*models.DispatchAttempt, error) {
	query := `
		SELECT id, schedule_id, workflow_id, attempt, status, error, at
		FROM dispatch_attempts
		WHERE schedule_id = $1
		ORDER BY at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dispatch attempts: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	attempts := make([]*models.DispatchAttempt, 0)

	for rows.Next() {
		var (
			attempt  models.DispatchAttempt
			errorMsg sql.NullString
		)

		err := rows.Scan(
			&attempt.ID,
			&attempt.ScheduleID,
			&attempt.WorkflowID,
			&attempt.Attempt,
			&attempt.Status,
			&errorMsg,
			&attempt.At,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dispatch attempt: %w", err)
		}

		attempt.Error = errorMsg.String
		attempts = append(attempts, &attempt)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating dispatch attempts: %w", err)
	}

	return attempts, nil
}

func scanExecution(row rowScanner) (*models.ExecutionRecord, error) {
	var (
		record     models.ExecutionRecord
		userID     sql.NullString
		inputJSON  []byte
		outputJSON []byte
		logsJSON   []byte
		finishedAt sql.NullTime
		bucket     sql.NullString
		errorMsg   sql.NullString
		failure    sql.NullString
	)

	err := row.Scan(
		&record.ID,
		&record.WorkflowID,
		&userID,
		&record.Status,
		&record.TriggerType,
		&inputJSON,
		&outputJSON,
		&logsJSON,
		&record.StartedAt,
		&finishedAt,
		&record.ExecutionTimeMs,
		&record.NodeCount,
		&record.SuccessNodeCount,
		&record.FailedNodeCount,
		&bucket,
		&errorMsg,
		&failure,
	)
	if err != nil {
		return nil, err
	}

	record.UserID = userID.String
	record.LatencyBucket = models.LatencyBucket(bucket.String)
	record.ErrorMessage = errorMsg.String
	record.FailureType = models.FailureType(failure.String)

	if finishedAt.Valid {
		record.FinishedAt = &finishedAt.Time
	}

	if len(inputJSON) > 0 {
		if err := json.Unmarshal(inputJSON, &record.Input); err != nil {
			return nil, fmt.Errorf("failed to parse input: %w", err)
		}
	}

	if len(outputJSON) > 0 {
		if err := json.Unmarshal(outputJSON, &record.Output); err != nil {
			return nil, fmt.Errorf("failed to parse output: %w", err)
		}
	}

	if len(logsJSON) > 0 {
		if err := json.Unmarshal(logsJSON, &record.Logs); err != nil {
			return nil, fmt.Errorf("failed to parse logs: %w", err)
		}
	}

	return &record, nil
}
