// Package calendar provides the calendar schedule trigger. It polls an
// external calendar and fires a configurable lead time before each event
// start, optionally gated to business hours.
package calendar

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/protocol"
)

const (
	defaultPollSeconds   = 300
	defaultLookaheadMins = 120
	businessStartHour    = 9
	businessEndHour      = 17
)

var (
	// ErrCalendarRequired is returned when the schedule names no calendar.
	ErrCalendarRequired = errors.New("calendar trigger calendar id is required")
)

// Event is one upcoming calendar entry.
type Event struct {
	ID       string
	Title    string
	Start    time.Time
	Metadata map[string]any
}

// Source is the boundary to the external calendar collaborator.
type Source interface {
	UpcomingEvents(ctx context.Context, calendarID string, window time.Duration) ([]Event, error)
}

// Trigger polls the source and arms one timer per upcoming event at
// start minus the lead offset. Events already armed are not re-armed.
type Trigger struct {
	ScheduleID    string
	CalendarID    string
	Lead          time.Duration
	PollInterval  time.Duration
	BusinessHours bool

	source   Source
	callback protocol.TriggerCallback
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	armed  map[string]*time.Timer
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewTrigger builds and validates a calendar trigger from the schedule
// config.
func NewTrigger(schedule *models.Schedule, source Source, logger *slog.Logger) (*Trigger, error) {
	calendarID, _ := schedule.Config["calendar_id"].(string)
	businessHours, _ := schedule.Config["business_hours_only"].(bool)

	trigger := &Trigger{
		ScheduleID:    schedule.ID,
		CalendarID:    calendarID,
		Lead:          time.Duration(numberOr(schedule.Config["lead_minutes"], 0)) * time.Minute,
		PollInterval:  time.Duration(numberOr(schedule.Config["poll_seconds"], defaultPollSeconds)) * time.Second,
		BusinessHours: businessHours,
		source:        source,
		now:           time.Now,
		armed:         make(map[string]*time.Timer),
		stopCh:        make(chan struct{}),
		logger: logger.With(
			"module", "calendar_trigger",
			"schedule_id", schedule.ID,
			"calendar_id", calendarID,
		),
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return trigger, nil
}

// Validate rejects schedules without a calendar id.
func (t *Trigger) Validate() error {
	if t.CalendarID == "" {
		return ErrCalendarRequired
	}

	return nil
}

// Start begins the polling loop.
func (t *Trigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	t.logger.InfoContext(ctx, "Starting calendar trigger", "lead", t.Lead)
	t.callback = callback

	t.wg.Add(1)

	go t.poll(ctx)

	return nil
}

func (t *Trigger) poll(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.PollInterval)
	defer ticker.Stop()

	t.Refresh(ctx)

	for {
		select {
		case <-t.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Refresh(ctx)
		}
	}
}

// Refresh fetches upcoming events and arms a fire timer for each new one.
func (t *Trigger) Refresh(ctx context.Context) {
	window := t.Lead + time.Duration(defaultLookaheadMins)*time.Minute

	events, err := t.source.UpcomingEvents(ctx, t.CalendarID, window)
	if err != nil {
		t.logger.ErrorContext(ctx, "Calendar fetch failed", "error", err)

		return
	}

	for _, event := range events {
		t.arm(event)
	}
}

func (t *Trigger) arm(event Event) {
	if !event.Start.After(t.now()) {
		return
	}

	fireAt := event.Start.Add(-t.Lead)

	if t.BusinessHours && !withinBusinessHours(fireAt) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.armed[event.ID]; exists {
		return
	}

	delay := fireAt.Sub(t.now())
	if delay < 0 {
		delay = 0
	}

	t.armed[event.ID] = time.AfterFunc(delay, func() {
		t.fire(event)
	})

	t.logger.Info("Armed calendar fire", "event_id", event.ID, "fire_at", fireAt)
}

func (t *Trigger) fire(event Event) {
	data := map[string]any{
		"event_id":    event.ID,
		"event_title": event.Title,
		"event_start": event.Start.UTC().Format(time.RFC3339),
		"metadata":    event.Metadata,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}

	if err := t.callback(context.Background(), data); err != nil {
		t.logger.Error("Error handling calendar fire", "error", err)
	}

	// The entry stays in the map until the event actually starts, so an
	// overlapping refresh cannot re-arm a fired event; then it is dropped
	// to keep the map bounded on long-lived schedules.
	retain := event.Start.Sub(t.now())
	if retain < 0 {
		retain = 0
	}

	t.mu.Lock()
	t.armed[event.ID] = time.AfterFunc(retain, func() {
		t.mu.Lock()
		delete(t.armed, event.ID)
		t.mu.Unlock()
	})
	t.mu.Unlock()
}

// Stop halts polling and cancels every armed timer.
func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping calendar trigger")

	close(t.stopCh)
	t.wg.Wait()

	t.mu.Lock()
	for _, timer := range t.armed {
		timer.Stop()
	}
	t.mu.Unlock()

	return nil
}

// withinBusinessHours reports whether fireAt falls Monday to Friday between
// 09:00 and 17:00 local time.
func withinBusinessHours(fireAt time.Time) bool {
	switch fireAt.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	default:
	}

	hour := fireAt.Hour()

	return hour >= businessStartHour && hour < businessEndHour
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
