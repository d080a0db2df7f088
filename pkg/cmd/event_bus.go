package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/flowmesh/flowmesh/pkg/channels/gochannel"
	"github.com/flowmesh/flowmesh/pkg/channels/kafka"
	"github.com/flowmesh/flowmesh/pkg/eventbus"
)

// NewEventBus builds the engine event bus for the requested provider and
// returns the underlying subscriber alongside it so event triggers can
// share the same transport.
func NewEventBus(provider, kafkaBrokers, serviceName string, logger *slog.Logger) (eventbus.EventBus, message.Subscriber, error) {
	watermillLogger := watermill.NewSlogLogger(logger.With("module", "eventbus"))

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermillLogger, kafkaBrokers, serviceName)
		if err != nil {
			return nil, nil, fmt.Errorf("creating kafka channel: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), sub, nil
	case "", "gochannel":
		pub, sub, err := gochannel.CreateChannel(watermillLogger)
		if err != nil {
			return nil, nil, fmt.Errorf("creating gochannel channel: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub), sub, nil
	default:
		return nil, nil, fmt.Errorf("unknown event bus provider %q", provider)
	}
}
