// Package event provides the event schedule trigger. It consumes a named
// external event source from the message bus and fires when the payload
// matches the schedule's equality conditions.
package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/flowmesh/flowmesh/pkg/conditions"
	"github.com/flowmesh/flowmesh/pkg/events"
	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/protocol"
)

var (
	// ErrSourceRequired is returned when the schedule names no event source.
	ErrSourceRequired = errors.New("event trigger source is required")
)

// Trigger subscribes to one external topic. Matching events fire the
// callback, optionally debounced; an hourly rate cap silently drops the
// excess.
type Trigger struct {
	ScheduleID string
	Source     string
	Debounce   time.Duration
	MaxPerHour int

	subscriber message.Subscriber
	match      conditions.Group
	callback   protocol.TriggerCallback
	logger     *slog.Logger

	mu          sync.Mutex
	debounceT   *time.Timer
	windowStart time.Time
	windowCount int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewTrigger builds and validates an event trigger from the schedule config.
func NewTrigger(schedule *models.Schedule, subscriber message.Subscriber, logger *slog.Logger) (*Trigger, error) {
	source, _ := schedule.Config["source"].(string)

	var (
		match conditions.Group
		err   error
	)

	if raw, ok := schedule.Config["conditions"].(map[string]any); ok {
		match, err = conditions.ParseGroup(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid event conditions: %w", err)
		}
	}

	debounce := time.Duration(numberOr(schedule.Config["debounce_ms"], 0)) * time.Millisecond
	maxPerHour := int(numberOr(schedule.Config["max_per_hour"], 0))

	trigger := &Trigger{
		ScheduleID: schedule.ID,
		Source:     source,
		Debounce:   debounce,
		MaxPerHour: maxPerHour,
		subscriber: subscriber,
		match:      match,
		stopCh:     make(chan struct{}),
		logger: logger.With(
			"module", "event_trigger",
			"schedule_id", schedule.ID,
			"source", source,
		),
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return trigger, nil
}

// Validate rejects schedules without a source.
func (t *Trigger) Validate() error {
	if t.Source == "" {
		return ErrSourceRequired
	}

	return nil
}

// Start subscribes to the source topic and consumes until stopped.
func (t *Trigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	t.logger.InfoContext(ctx, "Starting event trigger")
	t.callback = callback

	messages, err := t.subscriber.Subscribe(ctx, events.ExternalTopicPrefix+t.Source)
	if err != nil {
		return fmt.Errorf("failed to subscribe to event source %s: %w", t.Source, err)
	}

	t.wg.Add(1)

	go t.consume(ctx, messages)

	return nil
}

func (t *Trigger) consume(ctx context.Context, messages <-chan *message.Message) {
	defer t.wg.Done()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			t.handleMessage(ctx, msg)
			msg.Ack()
		}
	}
}

func (t *Trigger) handleMessage(ctx context.Context, msg *message.Message) {
	var payload map[string]any
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		t.logger.WarnContext(ctx, "Discarding unparsable event payload", "error", err)

		return
	}

	if len(t.match.Conditions) > 0 {
		ok, err := t.match.Evaluate(payload)
		if err != nil {
			t.logger.WarnContext(ctx, "Event condition evaluation failed", "error", err)

			return
		}

		if !ok {
			return
		}
	}

	if !t.allowByRate() {
		t.logger.DebugContext(ctx, "Hourly rate cap reached, dropping event")

		return
	}

	if t.Debounce > 0 {
		t.fireDebounced(payload)

		return
	}

	t.fire(payload)
}

// allowByRate applies the hourly cap. The window is fixed, anchored at the
// first event after each reset.
func (t *Trigger) allowByRate() bool {
	if t.MaxPerHour <= 0 {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if t.windowStart.IsZero() || now.Sub(t.windowStart) >= time.Hour {
		t.windowStart = now
		t.windowCount = 0
	}

	if t.windowCount >= t.MaxPerHour {
		return false
	}

	t.windowCount++

	return true
}

// fireDebounced delays the fire until a quiet period elapses; each new
// matching event restarts the timer and replaces the pending payload.
func (t *Trigger) fireDebounced(payload map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.debounceT != nil {
		t.debounceT.Stop()
	}

	t.debounceT = time.AfterFunc(t.Debounce, func() {
		t.fire(payload)
	})
}

func (t *Trigger) fire(payload map[string]any) {
	data := map[string]any{
		"source":    t.Source,
		"payload":   payload,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := t.callback(context.Background(), data); err != nil {
		t.logger.Error("Error handling event fire", "error", err)
	}
}

// Stop halts consumption and cancels any pending debounce fire.
func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping event trigger")

	close(t.stopCh)
	t.wg.Wait()

	t.mu.Lock()
	if t.debounceT != nil {
		t.debounceT.Stop()
	}
	t.mu.Unlock()

	return nil
}

func numberOr(v any, fallback float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return fallback
	}
}
