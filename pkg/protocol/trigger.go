package protocol

import (
	"context"
	"log/slog"

	"github.com/flowmesh/flowmesh/pkg/models"
)

// TriggerCallback receives the trigger context of one fire. Triggers only
// ever produce; the scheduler wraps the data into a queue item.
type TriggerCallback func(ctx context.Context, data map[string]any) error

// Trigger is a live per-schedule object producing fires until stopped.
// A trigger's configuration is never mutated in place; updates deactivate
// then reinitialize.
type Trigger interface {
	Start(ctx context.Context, callback TriggerCallback) error
	Stop(ctx context.Context) error
	Validate() error
}

// TriggerFactory creates trigger instances for one schedule type.
type TriggerFactory interface {
	ID() models.ScheduleType
	Create(schedule *models.Schedule, logger *slog.Logger) (Trigger, error)
}
