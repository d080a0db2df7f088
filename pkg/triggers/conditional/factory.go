package conditional

import (
	"fmt"
	"log/slog"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/protocol"
)

// Factory creates conditional triggers bound to one query evaluator.
type Factory struct {
	evaluator QueryEvaluator
}

// NewFactory returns the conditional trigger factory.
func NewFactory(evaluator QueryEvaluator) *Factory {
	return &Factory{evaluator: evaluator}
}

// ID returns the schedule type this factory serves.
func (f *Factory) ID() models.ScheduleType {
	return models.ScheduleTypeConditional
}

// Create builds a trigger for the given schedule.
func (f *Factory) Create(schedule *models.Schedule, logger *slog.Logger) (protocol.Trigger, error) {
	trigger, err := NewTrigger(schedule, f.evaluator, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create conditional trigger: %w", err)
	}

	return trigger, nil
}
