// Package scheduler manages schedule lifecycles and their live triggers.
// Every schedule follows Inactive -> Live -> Inactive -> Removed; updates
// always deactivate then reinitialize, never mutate a live trigger.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flowmesh/flowmesh/pkg/eventbus"
	"github.com/flowmesh/flowmesh/pkg/events"
	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/persistence"
	"github.com/flowmesh/flowmesh/pkg/protocol"
	"github.com/flowmesh/flowmesh/pkg/queue"
)

var (
	// ErrUnsupportedScheduleType is returned when no factory serves the
	// schedule's type.
	ErrUnsupportedScheduleType = errors.New("unsupported schedule type")

	// ErrScheduleInactive is returned when deactivating a schedule with no
	// live trigger.
	ErrScheduleInactive = errors.New("schedule is not active")
)

// Status is the live view of one schedule.
type Status struct {
	ScheduleID  string              `json:"schedule_id"`
	Type        models.ScheduleType `json:"type"`
	IsActive    bool                `json:"is_active"`
	FireCount   int64               `json:"fire_count"`
	LastFireAt  *time.Time          `json:"last_fire_at,omitempty"`
	QueueLength int                 `json:"queue_length"`
	LiveData    map[string]any      `json:"live_data,omitempty"`
}

type liveTrigger struct {
	trigger protocol.Trigger
	cancel  context.CancelFunc

	mu         sync.Mutex
	fireCount  int64
	lastFireAt *time.Time
}

// Scheduler owns the schedule repository, the trigger factories and the
// map of live triggers. It is an explicitly constructed service, injected
// wherever consumed.
type Scheduler struct {
	schedules persistence.ScheduleRepository
	workflows persistence.WorkflowRepository
	factories map[models.ScheduleType]protocol.TriggerFactory
	queue     *queue.Processor
	bus       eventbus.EventPublisher
	logger    *slog.Logger

	mu   sync.Mutex
	live map[string]*liveTrigger
}

// NewScheduler builds a scheduler from its dependencies. The event bus
// may be nil; a nil bus disables fire event publishing.
func NewScheduler(
	schedules persistence.ScheduleRepository,
	workflows persistence.WorkflowRepository,
	factories []protocol.TriggerFactory,
	processor *queue.Processor,
	bus eventbus.EventPublisher,
	logger *slog.Logger,
) *Scheduler {
	byType := make(map[models.ScheduleType]protocol.TriggerFactory, len(factories))
	for _, factory := range factories {
		byType[factory.ID()] = factory
	}

	return &Scheduler{
		schedules: schedules,
		workflows: workflows,
		factories: byType,
		queue:     processor,
		bus:       bus,
		live:      make(map[string]*liveTrigger),
		logger:    logger.With("module", "scheduler"),
	}
}

// Initialize restores the live trigger map from persisted state: every
// schedule marked active is reactivated.
func (s *Scheduler) Initialize(ctx context.Context) error {
	schedules, err := s.schedules.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list schedules: %w", err)
	}

	for _, schedule := range schedules {
		if !schedule.IsActive {
			continue
		}

		err := s.activate(ctx, schedule)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to restore schedule",
				"schedule_id", schedule.ID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "Scheduler initialized", "live", len(s.live))

	return nil
}

// Create validates and persists a new schedule. The schedule starts
// inactive; activation is a separate call.
func (s *Scheduler) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.New().String()
	}

	if err := schedule.Validate(); err != nil {
		return err
	}

	if _, ok := s.factories[schedule.Type]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedScheduleType, schedule.Type)
	}

	if _, err := s.workflows.ByID(ctx, schedule.WorkflowID); err != nil {
		return fmt.Errorf("schedule references unknown workflow: %w", err)
	}

	now := time.Now().UTC()
	schedule.IsActive = false
	schedule.CreatedAt = now
	schedule.UpdatedAt = now

	return s.schedules.Save(ctx, schedule)
}

// Activate brings a schedule live, creating its trigger.
func (s *Scheduler) Activate(ctx context.Context, id string) error {
	schedule, err := s.schedules.ByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.activate(ctx, schedule); err != nil {
		return err
	}

	schedule.IsActive = true
	schedule.UpdatedAt = time.Now().UTC()

	return s.schedules.Save(ctx, schedule)
}

func (s *Scheduler) activate(ctx context.Context, schedule *models.Schedule) error {
	s.mu.Lock()
	if _, exists := s.live[schedule.ID]; exists {
		s.mu.Unlock()

		return nil
	}
	s.mu.Unlock()

	factory, ok := s.factories[schedule.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedScheduleType, schedule.Type)
	}

	trigger, err := factory.Create(schedule, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create trigger for schedule %s: %w", schedule.ID, err)
	}

	triggerCtx, cancel := context.WithCancel(context.Background())
	entry := &liveTrigger{trigger: trigger, cancel: cancel}

	err = trigger.Start(triggerCtx, s.fireCallback(schedule, entry))
	if err != nil {
		cancel()

		return fmt.Errorf("failed to start trigger for schedule %s: %w", schedule.ID, err)
	}

	s.mu.Lock()
	s.live[schedule.ID] = entry
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Schedule activated",
		"schedule_id", schedule.ID, "type", schedule.Type)

	return nil
}

// fireCallback wraps one trigger fire into a queue item. Triggers only
// produce; the queue owns dispatch, retry and the attempt ledger.
func (s *Scheduler) fireCallback(schedule *models.Schedule, entry *liveTrigger) protocol.TriggerCallback {
	return func(ctx context.Context, data map[string]any) error {
		now := time.Now().UTC()

		entry.mu.Lock()
		entry.fireCount++
		entry.lastFireAt = &now
		entry.mu.Unlock()

		s.queue.Enqueue(&models.QueueItem{
			ScheduleID:     schedule.ID,
			WorkflowID:     schedule.WorkflowID,
			Priority:       schedule.Priority,
			TriggerType:    schedule.Type,
			TriggerContext: data,
			ScheduledAt:    now,
		})

		if s.bus != nil {
			event := events.ScheduleFired{
				BaseEvent: events.BaseEvent{
					ID:         uuid.New().String(),
					Type:       events.ScheduleFiredEvent,
					Timestamp:  now,
					WorkflowID: schedule.WorkflowID,
				},
				ScheduleID:  schedule.ID,
				TriggerType: schedule.Type,
				Priority:    schedule.Priority,
			}
			if err := s.bus.Publish(ctx, schedule.WorkflowID, event); err != nil {
				s.logger.ErrorContext(ctx, "Failed to publish schedule fire",
					"schedule_id", schedule.ID, "error", err)
			}
		}

		return nil
	}
}

// Deactivate stops the live trigger and marks the schedule inactive.
func (s *Scheduler) Deactivate(ctx context.Context, id string) error {
	schedule, err := s.schedules.ByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.deactivate(ctx, id); err != nil {
		return err
	}

	schedule.IsActive = false
	schedule.UpdatedAt = time.Now().UTC()

	return s.schedules.Save(ctx, schedule)
}

func (s *Scheduler) deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	entry, exists := s.live[id]
	if exists {
		delete(s.live, id)
	}
	s.mu.Unlock()

	if !exists {
		return ErrScheduleInactive
	}

	entry.cancel()

	err := entry.trigger.Stop(ctx)
	if err != nil {
		return fmt.Errorf("failed to stop trigger for schedule %s: %w", id, err)
	}

	s.logger.InfoContext(ctx, "Schedule deactivated", "schedule_id", id)

	return nil
}

// Update replaces a schedule's configuration. A live schedule is taken
// down first and reinitialized from the new config.
func (s *Scheduler) Update(ctx context.Context, schedule *models.Schedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}

	current, err := s.schedules.ByID(ctx, schedule.ID)
	if err != nil {
		return err
	}

	wasLive := false

	s.mu.Lock()
	_, wasLive = s.live[schedule.ID]
	s.mu.Unlock()

	if wasLive {
		if err := s.deactivate(ctx, schedule.ID); err != nil {
			return err
		}
	}

	schedule.CreatedAt = current.CreatedAt
	schedule.UpdatedAt = time.Now().UTC()
	schedule.IsActive = wasLive

	if err := s.schedules.Save(ctx, schedule); err != nil {
		return err
	}

	if wasLive {
		return s.activate(ctx, schedule)
	}

	return nil
}

// Delete removes a schedule, deactivating it first when live.
func (s *Scheduler) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	_, isLive := s.live[id]
	s.mu.Unlock()

	if isLive {
		if err := s.deactivate(ctx, id); err != nil {
			return err
		}
	}

	return s.schedules.Delete(ctx, id)
}

// Get returns the persisted schedule.
func (s *Scheduler) Get(ctx context.Context, id string) (*models.Schedule, error) {
	return s.schedules.ByID(ctx, id)
}

// List returns all persisted schedules.
func (s *Scheduler) List(ctx context.Context) ([]*models.Schedule, error) {
	return s.schedules.List(ctx)
}

// Status reports the live view of one schedule.
func (s *Scheduler) Status(ctx context.Context, id string) (*Status, error) {
	schedule, err := s.schedules.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	status := &Status{
		ScheduleID:  schedule.ID,
		Type:        schedule.Type,
		QueueLength: s.queue.Len(),
	}

	s.mu.Lock()
	entry, isLive := s.live[id]
	s.mu.Unlock()

	if isLive {
		status.IsActive = true

		entry.mu.Lock()
		status.FireCount = entry.fireCount
		status.LastFireAt = entry.lastFireAt
		entry.mu.Unlock()

		status.LiveData = map[string]any{
			"workflow_id": schedule.WorkflowID,
			"priority":    schedule.Priority,
			"config":      schedule.Config,
		}
	}

	return status, nil
}

// LiveCount returns the number of live triggers.
func (s *Scheduler) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.live)
}

// Shutdown deactivates every live trigger. Persisted IsActive flags are
// left untouched so Initialize can restore them on the next start.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	entries := make(map[string]*liveTrigger, len(s.live))
	for id, entry := range s.live {
		entries[id] = entry
	}
	s.live = make(map[string]*liveTrigger)
	s.mu.Unlock()

	var errs []error

	for id, entry := range entries {
		entry.cancel()

		if err := entry.trigger.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop trigger %s: %w", id, err))
		}
	}

	s.logger.InfoContext(ctx, "Scheduler shut down", "stopped", len(entries))

	return errors.Join(errs...)
}
