package calendar

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/pkg/models"
)

type stubSource struct {
	events []Event
}

func (s *stubSource) UpcomingEvents(_ context.Context, _ string, _ time.Duration) ([]Event, error) {
	return s.events, nil
}

func calendarSchedule(config map[string]any) *models.Schedule {
	return &models.Schedule{
		ID:         "sched-cal",
		WorkflowID: "wf-1",
		Type:       models.ScheduleTypeCalendar,
		Priority:   5,
		Config:     config,
	}
}

func TestTriggerRequiresCalendarID(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	_, err := NewTrigger(calendarSchedule(map[string]any{}), &stubSource{}, logger)
	assert.ErrorIs(t, err, ErrCalendarRequired)
}

func TestTriggerFiresBeforeEventStart(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	start := time.Now().Add(30 * time.Millisecond)
	source := &stubSource{events: []Event{
		{ID: "ev-1", Title: "standup", Start: start},
	}}

	config := map[string]any{"calendar_id": "team"}

	trigger, err := NewTrigger(calendarSchedule(config), source, logger)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		fires []map[string]any
	)

	trigger.callback = func(_ context.Context, data map[string]any) error {
		mu.Lock()
		defer mu.Unlock()

		fires = append(fires, data)

		return nil
	}

	trigger.Refresh(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(fires)
		mu.Unlock()

		if n > 0 {
			break
		}

		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, fires, 1)
	assert.Equal(t, "ev-1", fires[0]["event_id"])

	require.NoError(t, trigger.Stop(context.Background()))
}

func TestTriggerArmsEachEventOnce(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	source := &stubSource{events: []Event{
		{ID: "ev-1", Start: time.Now().Add(time.Hour)},
	}}

	trigger, err := NewTrigger(calendarSchedule(map[string]any{"calendar_id": "team"}), source, logger)
	require.NoError(t, err)

	trigger.callback = func(_ context.Context, _ map[string]any) error { return nil }

	trigger.Refresh(context.Background())
	trigger.Refresh(context.Background())

	trigger.mu.Lock()
	armed := len(trigger.armed)
	trigger.mu.Unlock()

	assert.Equal(t, 1, armed)

	require.NoError(t, trigger.Stop(context.Background()))
}

func TestFiredEventDropsFromArmedAfterStart(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	start := time.Now().Add(60 * time.Millisecond)
	source := &stubSource{events: []Event{
		{ID: "ev-1", Start: start},
	}}

	config := map[string]any{"calendar_id": "team", "lead_minutes": 0}

	trigger, err := NewTrigger(calendarSchedule(config), source, logger)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		fires int
	)

	trigger.callback = func(_ context.Context, _ map[string]any) error {
		mu.Lock()
		defer mu.Unlock()

		fires++

		return nil
	}

	trigger.Refresh(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := fires
		mu.Unlock()

		if n > 0 {
			break
		}

		time.Sleep(5 * time.Millisecond)
	}

	// An overlapping refresh between fire and event start must not
	// re-arm the fired event.
	trigger.Refresh(context.Background())

	// Past the event start the dedupe entry is dropped so the map stays
	// bounded on long-lived schedules.
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		trigger.mu.Lock()
		armed := len(trigger.armed)
		trigger.mu.Unlock()

		if armed == 0 && time.Now().After(start) {
			break
		}

		time.Sleep(5 * time.Millisecond)
	}

	trigger.mu.Lock()
	armed := len(trigger.armed)
	trigger.mu.Unlock()

	assert.Zero(t, armed)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, fires)

	require.NoError(t, trigger.Stop(context.Background()))
}

func TestBusinessHoursGate(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// Saturday.
	weekend := time.Date(2026, 3, 7, 11, 0, 0, 0, time.UTC)
	source := &stubSource{events: []Event{
		{ID: "ev-weekend", Start: weekend},
	}}

	config := map[string]any{
		"calendar_id":         "team",
		"business_hours_only": true,
	}

	trigger, err := NewTrigger(calendarSchedule(config), source, logger)
	require.NoError(t, err)

	trigger.callback = func(_ context.Context, _ map[string]any) error { return nil }

	trigger.Refresh(context.Background())

	trigger.mu.Lock()
	armed := len(trigger.armed)
	trigger.mu.Unlock()

	assert.Zero(t, armed)
}

func TestWithinBusinessHours(t *testing.T) {
	assert.True(t, withinBusinessHours(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)))  // Monday 10:00
	assert.False(t, withinBusinessHours(time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC))) // Monday 18:00
	assert.False(t, withinBusinessHours(time.Date(2026, 3, 8, 10, 0, 0, 0, time.UTC))) // Sunday
}
