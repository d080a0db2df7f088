package event

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/protocol"
)

// Factory creates event triggers bound to one message bus subscriber.
type Factory struct {
	subscriber message.Subscriber
}

// NewFactory returns the event trigger factory.
func NewFactory(subscriber message.Subscriber) *Factory {
	return &Factory{subscriber: subscriber}
}

// ID returns the schedule type this factory serves.
func (f *Factory) ID() models.ScheduleType {
	return models.ScheduleTypeEvent
}

// Create builds a trigger for the given schedule.
func (f *Factory) Create(schedule *models.Schedule, logger *slog.Logger) (protocol.Trigger, error) {
	trigger, err := NewTrigger(schedule, f.subscriber, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create event trigger: %w", err)
	}

	return trigger, nil
}
