// Package batch provides the batch schedule trigger. It polls an external
// source on a fixed interval and fires once per fetched candidate item.
package batch

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
	defaultIntervalSeconds = 60
	defaultBatchSize       = 10
)

var (
	// ErrQueueRequired is returned when the schedule names no source queue.
	ErrQueueRequired = errors.New("batch trigger queue is required")
)

// Trigger fetches a bounded batch per cycle and fires the callback per
// item, sequentially or with bounded-concurrency fan-out.
type Trigger struct {
	ScheduleID  string
	Queue       string
	Interval    time.Duration
	BatchSize   int
	Concurrency int
	Filter      map[string]any

	source   Source
	callback protocol.TriggerCallback
	logger   *slog.Logger

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewTrigger builds and validates a batch trigger from the schedule config.
func NewTrigger(schedule *models.Schedule, source Source, logger *slog.Logger) (*Trigger, error) {
	queue, _ := schedule.Config["queue"].(string)
	filter, _ := schedule.Config["filter"].(map[string]any)

	batchSize := int(numberOr(schedule.Config["batch_size"], defaultBatchSize))
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	concurrency := int(numberOr(schedule.Config["concurrency"], 1))
	if concurrency <= 0 {
		concurrency = 1
	}

	trigger := &Trigger{
		ScheduleID:  schedule.ID,
		Queue:       queue,
		Interval:    time.Duration(numberOr(schedule.Config["interval_seconds"], defaultIntervalSeconds)) * time.Second,
		BatchSize:   batchSize,
		Concurrency: concurrency,
		Filter:      filter,
		source:      source,
		stopCh:      make(chan struct{}),
		logger: logger.With(
			"module", "batch_trigger",
			"schedule_id", schedule.ID,
			"queue", queue,
		),
	}

	if err := trigger.Validate(); err != nil {
		return nil, err
	}

	return trigger, nil
}

// Validate rejects schedules without a source queue.
func (t *Trigger) Validate() error {
	if t.Queue == "" {
		return ErrQueueRequired
	}

	return nil
}

// Start begins the polling loop.
func (t *Trigger) Start(ctx context.Context, callback protocol.TriggerCallback) error {
	t.logger.InfoContext(ctx, "Starting batch trigger", "interval", t.Interval, "batch_size", t.BatchSize)
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
			t.Drain(ctx)
		}
	}
}

// Drain runs one polling cycle: fetch a bounded batch and fire per item.
func (t *Trigger) Drain(ctx context.Context) {
	items, err := t.source.Fetch(ctx, t.Queue, t.Filter, t.BatchSize)
	if err != nil {
		t.logger.ErrorContext(ctx, "Batch fetch failed", "error", err)

		return
	}

	if len(items) == 0 {
		return
	}

	t.logger.InfoContext(ctx, "Dispatching batch", "items", len(items))

	if t.Concurrency <= 1 {
		for _, item := range items {
			t.fire(ctx, item)
		}

		return
	}

	semaphore := make(chan struct{}, t.Concurrency)

	var wg sync.WaitGroup

	for _, item := range items {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(item map[string]any) {
			defer wg.Done()
			defer func() { <-semaphore }()

			t.fire(ctx, item)
		}(item)
	}

	wg.Wait()
}

func (t *Trigger) fire(ctx context.Context, item map[string]any) {
	data := map[string]any{
		"item":      item,
		"queue":     t.Queue,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := t.callback(ctx, data); err != nil {
		t.logger.ErrorContext(ctx, "Error handling batch fire", "error", err)
	}
}

// Stop halts the polling loop. The source is owned by the factory and not
// closed here.
func (t *Trigger) Stop(ctx context.Context) error {
	t.logger.InfoContext(ctx, "Stopping batch trigger")

	close(t.stopCh)
	t.wg.Wait()

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
