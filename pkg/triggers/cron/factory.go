package cron

import (
	"fmt"
	"log/slog"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/protocol"
)

// Factory creates cron triggers.
type Factory struct{}

// NewFactory returns the cron trigger factory.
func NewFactory() *Factory {
	return &Factory{}
}

// ID returns the schedule type this factory serves.
func (f *Factory) ID() models.ScheduleType {
	return models.ScheduleTypeCron
}

// Create builds a trigger for the given schedule.
func (f *Factory) Create(schedule *models.Schedule, logger *slog.Logger) (protocol.Trigger, error) {
	trigger, err := NewTrigger(schedule, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cron trigger: %w", err)
	}

	return trigger, nil
}
