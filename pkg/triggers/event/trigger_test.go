package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/pkg/channels/gochannel"
	"github.com/flowmesh/flowmesh/pkg/events"
	"github.com/flowmesh/flowmesh/pkg/models"
)

type fireCollector struct {
	mu    sync.Mutex
	fires []map[string]any
}

func (c *fireCollector) callback(_ context.Context, data map[string]any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fires = append(c.fires, data)

	return nil
}

func (c *fireCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.fires)
}

func eventSchedule(config map[string]any) *models.Schedule {
	return &models.Schedule{
		ID:         "sched-ev",
		WorkflowID: "wf-1",
		Type:       models.ScheduleTypeEvent,
		Priority:   5,
		Config:     config,
	}
}

func publishJSON(t *testing.T, publisher message.Publisher, topic string, payload map[string]any) {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	require.NoError(t, publisher.Publish(topic, message.NewMessage(watermill.NewUUID(), raw)))
}

func waitForFires(t *testing.T, collector *fireCollector, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if collector.count() >= want {
			return
		}

		time.Sleep(10 * time.Millisecond)
	}

	t.Fatalf("expected %d fires, got %d", want, collector.count())
}

func TestTriggerRequiresSource(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	publisher, _, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	_, err = NewTrigger(eventSchedule(map[string]any{}), publisher, logger)
	assert.ErrorIs(t, err, ErrSourceRequired)
}

func TestTriggerFiresOnMatchingEvent(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	publisher, subscriber, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	schedule := eventSchedule(map[string]any{
		"source": "orders",
		"conditions": map[string]any{
			"mode": "all",
			"conditions": []any{
				map[string]any{"field": "status", "operator": "eq", "value": "paid"},
			},
		},
	})

	trigger, err := NewTrigger(schedule, subscriber, logger)
	require.NoError(t, err)

	collector := &fireCollector{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, trigger.Start(ctx, collector.callback))

	defer func() { _ = trigger.Stop(ctx) }()

	topic := events.ExternalTopicPrefix + "orders"
	publishJSON(t, publisher, topic, map[string]any{"status": "pending"})
	publishJSON(t, publisher, topic, map[string]any{"status": "paid", "order_id": "o-1"})

	waitForFires(t, collector, 1)
	assert.Equal(t, "orders", collector.fires[0]["source"])
}

func TestTriggerHourlyRateCap(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	publisher, subscriber, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	schedule := eventSchedule(map[string]any{
		"source":       "alerts",
		"max_per_hour": 2,
	})

	trigger, err := NewTrigger(schedule, subscriber, logger)
	require.NoError(t, err)

	collector := &fireCollector{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, trigger.Start(ctx, collector.callback))

	defer func() { _ = trigger.Stop(ctx) }()

	topic := events.ExternalTopicPrefix + "alerts"
	for i := 0; i < 5; i++ {
		publishJSON(t, publisher, topic, map[string]any{"n": i})
	}

	waitForFires(t, collector, 2)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 2, collector.count())
}

func TestTriggerDebounceCollapsesBurst(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	publisher, subscriber, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	schedule := eventSchedule(map[string]any{
		"source":      "sensor",
		"debounce_ms": float64(50),
	})

	trigger, err := NewTrigger(schedule, subscriber, logger)
	require.NoError(t, err)

	collector := &fireCollector{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, trigger.Start(ctx, collector.callback))

	defer func() { _ = trigger.Stop(ctx) }()

	topic := events.ExternalTopicPrefix + "sensor"
	for i := 0; i < 3; i++ {
		publishJSON(t, publisher, topic, map[string]any{"n": i})
	}

	waitForFires(t, collector, 1)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, collector.count())
}
