package batch

import (
	"fmt"
	"log/slog"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/protocol"
)

// Factory creates batch triggers sharing one candidate source.
type Factory struct {
	source Source
}

// NewFactory returns the batch trigger factory.
func NewFactory(source Source) *Factory {
	return &Factory{source: source}
}

// ID returns the schedule type this factory serves.
func (f *Factory) ID() models.ScheduleType {
	return models.ScheduleTypeBatch
}

// Create builds a trigger for the given schedule.
func (f *Factory) Create(schedule *models.Schedule, logger *slog.Logger) (protocol.Trigger, error) {
	trigger, err := NewTrigger(schedule, f.source, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create batch trigger: %w", err)
	}

	return trigger, nil
}
