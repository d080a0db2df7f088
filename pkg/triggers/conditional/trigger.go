// Package conditional provides the conditional schedule trigger. It polls
// on a fixed interval and fires only while every configured condition
// holds, outside quiet hours and under the daily fire cap.
package conditional

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/protocol"
)

const defaultIntervalSeconds = 60

var (
	// ErrNoConditions is returned when the schedule carries no condition list.
	ErrNoConditions = errors.New("conditional trigger requires at least one condition")

	// ErrUnknownConditionType is returned for condition entries that are
	// neither query nor time checks.
	ErrUnknownConditionType = errors.New("unknown condition type")
)

// QueryEvaluator answers external query conditions. Implementations are
// injected; the trigger never talks to a data source directly.
type QueryEvaluator interface {
	Query(ctx context.Context, query string, params map[string]any) (bool, error)
}

// check is one entry of the ordered condition list.
type check struct {
	kind   string // "query" or "time"
	query  string
	params map[string]any
	after  string // "HH:MM", time checks only
	before string
}

// Trigger polls and fires when all checks hold.
type Trigger struct {
	ScheduleID string
	Interval   time.Duration
	MaxPerDay  int

	checks     []check
	quietStart string
	quietEnd   string

	evaluator QueryEvaluator
	callback  protocol.TriggerCallback
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	fireDay   string
	fireCount int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewTrigger builds and validates a conditional trigger from the schedule
// config.
func NewTrigger(schedule *models.Schedule, evaluator QueryEvaluator, logger *slog.Logger) (*Trigger, error) {
	interval := time.Duration(numberOr(schedule.Config["interval_seconds"], defaultIntervalSeconds)) * time.Second

	checks, err := parseChecks(schedule.Config["conditions"])
	if err != nil {
		return nil, err
	}

	var quietStart, quietEnd string
	if quiet, ok := schedule.Config["quiet_hours"].(map[string]any); ok {
		quietStart, _ = quiet["start"].(string)
		quietEnd, _ = quiet["end"].(string)
	}

	trigger := &Trigger{
		ScheduleID: schedule.ID,
		Interval:   interval,
		MaxPerDay:  int(numberOr(schedule.Config["max_per_day"], 0)),
		checks:     checks,
		quietStart: quietStart,
		quietEnd:   quietEnd,
		evaluator:  evaluator,
		now:        time.Now,
		stopCh:     make(chan struct{}),
		logger: logger.With(
			"module", "conditional_trigger",
			"schedule_id", schedule.ID,
		),
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return trigger, nil
}

func parseChecks(raw any) ([]check, error) {
	entries, _ := raw.([]any)

	checks := make([]check, 0, len(entries))

	for _, entry := range entries {
		config, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		kind, _ := config["type"].(string)

		switch kind {
		case "query":
			query, _ := config["query"].(string)
			params, _ := config["params"].(map[string]any)
			checks = append(checks, check{kind: kind, query: query, params: params})
		case "time":
			after, _ := config["after"].(string)
			before, _ := config["before"].(string)
			checks = append(checks, check{kind: kind, after: after, before: before})
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownConditionType, kind)
		}
	}

	return checks, nil
}

// Validate rejects schedules without conditions.
func (t *Trigger) Validate() error {
	if len(t.checks) == 0 {
		return ErrNoConditions
	}

	return nil
}

// Start begins the polling loop.
func (t *Trigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	t.logger.InfoContext(ctx, "Starting conditional trigger", "interval", t.Interval)
	t.callback = callback

	t.wg.Add(1)

	go t.poll(ctx)

	return nil
}

func (t *Trigger) poll(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Evaluate(ctx)
		}
	}
}

// Evaluate runs one polling cycle: quiet hours and the daily cap gate
// first, then the ordered condition list. All conditions must hold.
func (t *Trigger) Evaluate(ctx context.Context) {
	now := t.now()

	if t.inQuietHours(now) {
		return
	}

	if !t.allowByDailyCap(now) {
		return
	}

	for _, c := range t.checks {
		ok, err := t.evaluateCheck(ctx, c, now)
		if err != nil {
			t.logger.WarnContext(ctx, "Condition evaluation failed", "error", err)

			return
		}

		if !ok {
			return
		}
	}

	t.recordFire(now)
	t.fire(ctx, now)
}

func (t *Trigger) evaluateCheck(ctx context.Context, c check, now time.Time) (bool, error) {
	switch c.kind {
	case "query":
		return t.evaluator.Query(ctx, c.query, c.params)
	case "time":
		return withinWindow(now, c.after, c.before), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownConditionType, c.kind)
	}
}

// inQuietHours reports whether now falls inside the configured window.
// Windows may wrap midnight, e.g. 22:00 to 06:00.
func (t *Trigger) inQuietHours(now time.Time) bool {
	if t.quietStart == "" || t.quietEnd == "" {
		return false
	}

	return withinWindow(now, t.quietStart, t.quietEnd)
}

func (t *Trigger) allowByDailyCap(now time.Time) bool {
	if t.MaxPerDay <= 0 {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	day := now.Format("2006-01-02")
	if day != t.fireDay {
		return true
	}

	return t.fireCount < t.MaxPerDay
}

func (t *Trigger) recordFire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	day := now.Format("2006-01-02")
	if day != t.fireDay {
		t.fireDay = day
		t.fireCount = 0
	}

	t.fireCount++
}

func (t *Trigger) fire(ctx context.Context, now time.Time) {
	data := map[string]any{
		"timestamp": now.UTC().Format(time.RFC3339),
	}

	if err := t.callback(ctx, data); err != nil {
		t.logger.ErrorContext(ctx, "Error handling conditional fire", "error", err)
	}
}

// Stop halts the polling loop.
func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping conditional trigger")

	close(t.stopCh)
	t.wg.Wait()

	return nil
}

// withinWindow reports whether now's clock time is inside [start, end).
// The window may wrap midnight.
func withinWindow(now time.Time, start, end string) bool {
	startMin, okStart := parseClock(start)
	endMin, okEnd := parseClock(end)

	if !okStart || !okEnd {
		return false
	}

	nowMin := now.Hour()*60 + now.Minute()

	if startMin <= endMin {
		return nowMin >= startMin && nowMin < endMin
	}

	return nowMin >= startMin || nowMin < endMin
}

func parseClock(value string) (int, bool) {
	var hour, minute int

	_, err := fmt.Sscanf(value, "%d:%d", &hour, &minute)
	if err != nil || hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, false
	}

	return hour*60 + minute, true
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
