// Package cron provides the cron schedule trigger. Expressions are
// validated synchronously at creation, never deferred to first fire.
package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/protocol"
)

var (
	// ErrExpressionRequired is returned when the schedule carries no cron expression.
	ErrExpressionRequired = errors.New("cron trigger expression is required")
)

// Trigger fires on a standard 5-field cron expression. Each fire produces
// exactly one callback invocation.
type Trigger struct {
	ScheduleID string
	Expression string

	cron     *cron.Cron
	callback protocol.TriggerCallback
	logger   *slog.Logger
}

// NewTrigger builds and validates a cron trigger from the schedule config.
func NewTrigger(schedule *models.Schedule, logger *slog.Logger) (*Trigger, error) {
	expression, _ := schedule.Config["expression"].(string)

	trigger := &Trigger{
		ScheduleID: schedule.ID,
		Expression: expression,
		logger: logger.With(
			"module", "cron_trigger",
			"schedule_id", schedule.ID,
			"expression", expression,
		),
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return trigger, nil
}

// Validate rejects empty or unparsable expressions.
func (t *Trigger) Validate() error {
	if t.Expression == "" {
		return ErrExpressionRequired
	}

	if _, err := cron.ParseStandard(t.Expression); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	return nil
}

// Start schedules the cron job. Overlapping fires are skipped rather than
// stacked, and panics inside the job are recovered.
func (t *Trigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	t.logger.InfoContext(ctx, "Starting cron trigger")
	t.callback = callback

	t.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := t.cron.AddFunc(t.Expression, t.run)
	if err != nil {
		return fmt.Errorf("failed to add cron job for schedule %s: %w", t.ScheduleID, err)
	}

	t.cron.Start()

	return nil
}

func (t *Trigger) run() {
	t.logger.Info("Cron fire")

	data := map[string]any{
		"expression": t.Expression,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}

	if err := t.callback(context.Background(), data); err != nil {
		t.logger.Error("Error handling cron fire", "error", err)
	}
}

// Stop halts the cron scheduler. Already-running jobs finish.
func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping cron trigger")

	if t.cron != nil {
		t.cron.Stop()
	}

	return nil
}
