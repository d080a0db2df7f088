package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/persistence"
)

// Ledger records queue dispatch attempts in the execution repository. It
// satisfies the queue's AttemptRecorder contract: every attempt and its
// outcome is persisted, and exhausted items leave a terminal failure record.
type Ledger struct {
	executions persistence.ExecutionRepository
	logger     *slog.Logger
}

// NewLedger creates a ledger over the execution repository.
func NewLedger(executions persistence.ExecutionRepository, logger *slog.Logger) *Ledger {
	return &Ledger{
		executions: executions,
		logger:     logger.With("module", "dispatch_ledger"),
	}
}

// RecordAttempt persists one dispatch attempt and its outcome.
func (l *Ledger) RecordAttempt(ctx context.Context, item *models.QueueItem, attempt int, dispatchErr error) {
	entry := &models.DispatchAttempt{
		ID:         uuid.New().String(),
		ScheduleID: item.ScheduleID,
		WorkflowID: item.WorkflowID,
		Attempt:    attempt,
		Status:     models.AttemptStatusSucceeded,
		At:         time.Now().UTC(),
	}

	if dispatchErr != nil {
		entry.Status = models.AttemptStatusFailed
		entry.Error = dispatchErr.Error()
	}

	if err := l.executions.RecordAttempt(ctx, entry); err != nil {
		l.logger.ErrorContext(ctx, "Failed to persist dispatch attempt",
			"schedule_id", item.ScheduleID, "attempt", attempt, "error", err)
	}
}

// RecordTerminalFailure writes the failed execution record for an item
// whose retries are exhausted.
func (l *Ledger) RecordTerminalFailure(ctx context.Context, item *models.QueueItem, dispatchErr error) {
	now := time.Now().UTC()

	record := &models.ExecutionRecord{
		ID:           uuid.New().String(),
		WorkflowID:   item.WorkflowID,
		Status:       models.ExecutionStatusFailed,
		TriggerType:  string(item.TriggerType),
		Input:        item.TriggerContext,
		StartedAt:    item.ScheduledAt,
		ErrorMessage: dispatchErr.Error(),
		FailureType:  models.FailureTypeRuntime,
	}
	record.Finish(models.ExecutionStatusFailed, now)

	if err := l.executions.Save(ctx, record); err != nil {
		l.logger.ErrorContext(ctx, "Failed to persist terminal failure record",
			"schedule_id", item.ScheduleID, "error", err)
	}
}
