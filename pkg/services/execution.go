package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flowmesh/flowmesh/pkg/eventbus"
	"github.com/flowmesh/flowmesh/pkg/events"
	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/persistence"
	"github.com/flowmesh/flowmesh/pkg/validation"
	"github.com/flowmesh/flowmesh/pkg/workflow"
)

// ExecuteRequest describes one run to perform.
type ExecuteRequest struct {
	WorkflowID  string
	UserID      string
	TriggerType string
	Input       map[string]any
}

// Execution orchestrates one workflow run end to end: validation, the
// ledger record, graph execution, events and metrics. The record is
// created once and updated exactly once at terminal state.
type Execution struct {
	store     persistence.Persistence
	validator *validation.Validator
	executor  *workflow.Executor
	bus       eventbus.EventPublisher
	metrics   *Metrics
	logger    *slog.Logger
}

// NewExecution creates an execution service. The event bus may be nil; a
// nil bus disables event publishing.
func NewExecution(
	store persistence.Persistence,
	graphValidator *validation.Validator,
	executor *workflow.Executor,
	bus eventbus.EventPublisher,
	metrics *Metrics,
	logger *slog.Logger,
) *Execution {
	return &Execution{
		store:     store,
		validator: graphValidator,
		executor:  executor,
		bus:       bus,
		metrics:   metrics,
		logger:    logger.With("module", "execution_service"),
	}
}

// Execute runs a workflow and returns its terminal execution record. The
// record is also returned on failure, alongside the error.
func (s *Execution) Execute(ctx context.Context, req ExecuteRequest) (*models.ExecutionRecord, error) {
	wf, err := s.store.Workflows().ByID(ctx, req.WorkflowID)
	if err != nil {
		return nil, err
	}

	if wf.Status != models.WorkflowStatusActive {
		return nil, fmt.Errorf("%w: workflow %s has status %s",
			ErrWorkflowNotExecutable, wf.ID, wf.Status)
	}

	record := &models.ExecutionRecord{
		ID:          uuid.New().String(),
		WorkflowID:  wf.ID,
		UserID:      req.UserID,
		Status:      models.ExecutionStatusRunning,
		TriggerType: req.TriggerType,
		Input:       req.Input,
		StartedAt:   time.Now().UTC(),
		NodeCount:   len(wf.Nodes),
	}

	if err := s.store.Executions().Save(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create execution record: %w", err)
	}

	s.metrics.RecordStart()
	s.publish(ctx, events.ExecutionStarted{
		BaseEvent:   s.baseEvent(events.ExecutionStartedEvent, wf.ID),
		ExecutionID: record.ID,
		TriggerType: req.TriggerType,
	})

	logger := s.logger.With("workflow_id", wf.ID, "execution_id", record.ID)

	result := s.validator.Validate(wf)
	if !result.Valid {
		issues := make([]string, 0, len(result.Errors))
		for _, issue := range result.Errors {
			issues = append(issues, issue.Message)
		}

		validationErr := &ValidationError{WorkflowID: wf.ID, Issues: issues}
		s.finish(ctx, record, nil, models.FailureTypeValidation, validationErr)
		logger.Warn("Run rejected by validation", "issues", len(issues))

		return record, validationErr
	}

	execCtx := models.NewExecutionContext(record.ID, wf.ID, req.Input, wf.Variables)
	execCtx.UserID = req.UserID

	runResult, runErr := s.executor.Run(ctx, wf, execCtx)

	// The context dies with the run; results and logs survive on the
	// record, whether or not the run aborted.
	record.Logs = execCtx.Logs

	if runErr != nil {
		s.finish(ctx, record, runResult, classifyFailure(runErr), runErr)
		logger.Error("Run failed", "error", runErr)

		return record, runErr
	}

	s.finish(ctx, record, runResult, models.FailureTypeNone, nil)
	logger.Info("Run completed", "duration_ms", record.ExecutionTimeMs)

	return record, nil
}

// Get loads one execution record.
func (s *Execution) Get(ctx context.Context, id string) (*models.ExecutionRecord, error) {
	return s.store.Executions().ByID(ctx, id)
}

// ListByWorkflow returns the execution history of one workflow.
func (s *Execution) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	return s.store.Executions().ByWorkflow(ctx, workflowID)
}

// Metrics returns the aggregate counters.
func (s *Execution) Metrics() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// finish applies the single terminal update and emits the matching event.
func (s *Execution) finish(
	ctx context.Context,
	record *models.ExecutionRecord,
	result *workflow.RunResult,
	failureType models.FailureType,
	cause error,
) {
	if result != nil {
		record.SuccessNodeCount = result.SuccessCount
		record.FailedNodeCount = result.FailedCount
		record.Output = map[string]any{"results": result.NodeResults}
	}

	status := models.ExecutionStatusCompleted
	if cause != nil {
		status = models.ExecutionStatusFailed
		record.FailureType = failureType
		record.ErrorMessage = cause.Error()
	}

	record.Finish(status, time.Now().UTC())

	if err := s.store.Executions().Save(ctx, record); err != nil {
		s.logger.ErrorContext(ctx, "Failed to persist terminal execution record",
			"execution_id", record.ID, "error", err)
	}

	s.metrics.RecordFinish(record)

	if result != nil {
		for _, stat := range result.NodeStats {
			s.publish(ctx, events.NodeFinished{
				BaseEvent:   s.baseEvent(events.NodeFinishedEvent, record.WorkflowID),
				ExecutionID: record.ID,
				NodeID:      stat.NodeID,
				Success:     stat.Success,
				DurationMs:  stat.DurationMs,
			})
		}
	}

	if cause != nil {
		s.publish(ctx, events.ExecutionFailed{
			BaseEvent:   s.baseEvent(events.ExecutionFailedEvent, record.WorkflowID),
			ExecutionID: record.ID,
			Error:       cause.Error(),
			FailureType: failureType,
			DurationMs:  record.ExecutionTimeMs,
		})

		return
	}

	s.publish(ctx, events.ExecutionCompleted{
		BaseEvent:   s.baseEvent(events.ExecutionCompletedEvent, record.WorkflowID),
		ExecutionID: record.ID,
		DurationMs:  record.ExecutionTimeMs,
		Bucket:      record.LatencyBucket,
	})
}

func (s *Execution) baseEvent(eventType events.EventType, workflowID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

func (s *Execution) publish(ctx context.Context, event eventbus.Event) {
	if s.bus == nil {
		return
	}

	if err := s.bus.Publish(ctx, uuid.New().String(), event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event",
			"event_type", event.GetType(), "error", err)
	}
}

// classifyFailure maps a run error to its failure type. Configuration
// errors are always fatal and never retried as runtime failures.
func classifyFailure(err error) models.FailureType {
	switch {
	case workflow.IsConfigurationError(err):
		return models.FailureTypeConfiguration
	case workflow.IsTimeoutError(err):
		return models.FailureTypeTimeout
	case errors.Is(err, workflow.ErrCyclicGraph), errors.Is(err, workflow.ErrEmptyWorkflow):
		return models.FailureTypeValidation
	default:
		return models.FailureTypeRuntime
	}
}
