// Package queue provides the shared priority queue and its serialized
// consumer. Triggers only ever produce into the queue; consumers are the
// only removers.
package queue

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/flowmesh/flowmesh/pkg/models"
)

// DispatchFunc runs one queue item to completion.
type DispatchFunc func(ctx context.Context, item *models.QueueItem) error

// AttemptRecorder persists every dispatch attempt and its outcome. A nil
// recorder disables persistence.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, item *models.QueueItem, attempt int, err error)
	RecordTerminalFailure(ctx context.Context, item *models.QueueItem, err error)
}

// Config tunes the processor. Workers is the primary throughput control:
// it bounds centrally-dispatched concurrent runs, one by default so trigger
// storms cannot overwhelm downstream services.
type Config struct {
	Workers         int
	MaxRetries      int
	BackoffInterval time.Duration
}

const (
	defaultMaxRetries      = 3
	defaultBackoffInterval = 60 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 1
	}

	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}

	if c.BackoffInterval <= 0 {
		c.BackoffInterval = defaultBackoffInterval
	}

	return c
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Enqueued   int64 `json:"enqueued"`
	Dispatched int64 `json:"dispatched"`
	Succeeded  int64 `json:"succeeded"`
	Retried    int64 `json:"retried"`
	Failed     int64 `json:"failed"`
	Length     int   `json:"length"`
}

type queuedItem struct {
	item *models.QueueItem
	seq  uint64
}

// Processor drains the shared queue. The queue re-sorts on every insertion:
// higher numeric priority first, ties broken by insertion order. An
// in-flight run is never preempted by a higher-priority item.
type Processor struct {
	dispatch DispatchFunc
	recorder AttemptRecorder
	logger   *slog.Logger
	cfg      Config

	mu     sync.Mutex
	items  []queuedItem
	seq    uint64
	stats  Stats
	timers []*time.Timer

	signal chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func NewProcessor(dispatch DispatchFunc, recorder AttemptRecorder, cfg Config, logger *slog.Logger) *Processor {
	return &Processor{
		dispatch: dispatch,
		recorder: recorder,
		logger:   logger.With("module", "queue"),
		cfg:      cfg.withDefaults(),
		signal:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// Enqueue inserts an item and re-sorts the queue.
func (p *Processor) Enqueue(item *models.QueueItem) {
	p.mu.Lock()

	p.seq++
	p.items = append(p.items, queuedItem{item: item, seq: p.seq})

	sort.SliceStable(p.items, func(i, j int) bool {
		if p.items[i].item.Priority != p.items[j].item.Priority {
			return p.items[i].item.Priority > p.items[j].item.Priority
		}

		return p.items[i].seq < p.items[j].seq
	})

	p.stats.Enqueued++
	p.mu.Unlock()

	p.notify()
}

// Len returns the current queue length.
func (p *Processor) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.items)
}

// Snapshot returns current counters.
func (p *Processor) Snapshot() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := p.stats
	stats.Length = len(p.items)

	return stats
}

// Start launches the consumer workers.
func (p *Processor) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)

		go p.worker(ctx)
	}
}

// Stop halts consumption and cancels pending retry timers. Items left in
// the queue stay queued; at-least-once delivery across restarts is not a
// goal here.
func (p *Processor) Stop() {
	p.once.Do(func() { close(p.stopCh) })

	p.mu.Lock()
	for _, timer := range p.timers {
		timer.Stop()
	}
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Processor) notify() {
	select {
	case p.signal <- struct{}{}:
	default:
	}
}

func (p *Processor) pop() (*models.QueueItem, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.items) == 0 {
		return nil, false
	}

	head := p.items[0]
	p.items = p.items[1:]

	return head.item, true
}

func (p *Processor) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		item, ok := p.pop()
		if !ok {
			select {
			case <-p.signal:
				continue
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}

		p.process(ctx, item)

		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (p *Processor) process(ctx context.Context, item *models.QueueItem) {
	attempt := item.Retries + 1

	p.mu.Lock()
	p.stats.Dispatched++
	p.mu.Unlock()

	err := p.dispatch(ctx, item)

	if p.recorder != nil {
		p.recorder.RecordAttempt(ctx, item, attempt, err)
	}

	if err == nil {
		p.mu.Lock()
		p.stats.Succeeded++
		p.mu.Unlock()

		return
	}

	item.Retries++

	logger := p.logger.With(
		"schedule_id", item.ScheduleID,
		"workflow_id", item.WorkflowID,
		"retries", item.Retries,
	)

	if item.Retries > p.cfg.MaxRetries {
		logger.Error("Dispatch retries exhausted, recording terminal failure", "error", err)

		p.mu.Lock()
		p.stats.Failed++
		p.mu.Unlock()

		if p.recorder != nil {
			p.recorder.RecordTerminalFailure(ctx, item, err)
		}

		return
	}

	// Linearly increasing backoff: the nth failure schedules attempt n+1
	// no earlier than (n+1) backoff intervals out.
	delay := time.Duration(item.Retries+1) * p.cfg.BackoffInterval

	logger.Warn("Dispatch failed, scheduling retry", "delay", delay, "error", err)

	p.mu.Lock()
	p.stats.Retried++

	timer := time.AfterFunc(delay, func() { p.Enqueue(item) })
	p.timers = append(p.timers, timer)
	p.mu.Unlock()
}
