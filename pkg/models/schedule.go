package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleType identifies the trigger mechanism backing a schedule.
type ScheduleType string

const (
	ScheduleTypeCron        ScheduleType = "cron"
	ScheduleTypeEvent       ScheduleType = "event"
	ScheduleTypeConditional ScheduleType = "conditional"
	ScheduleTypeBatch       ScheduleType = "batch"
	ScheduleTypeCalendar    ScheduleType = "calendar"
)

var scheduleTypes = map[ScheduleType]bool{
	ScheduleTypeCron:        true,
	ScheduleTypeEvent:       true,
	ScheduleTypeConditional: true,
	ScheduleTypeBatch:       true,
	ScheduleTypeCalendar:    true,
}

var (
	// ErrInvalidSchedule is returned when schedule validation fails.
	ErrInvalidSchedule = errors.New("invalid schedule configuration")

	// ErrInvalidPriority is returned when a schedule priority is out of range.
	ErrInvalidPriority = errors.New("schedule priority must be between 1 and 10")
)

// Schedule binds a workflow to one trigger mechanism. IsActive and the live
// in-memory trigger object must always be consistent; updates always
// deactivate then reinitialize, never mutate a live trigger in place.
type Schedule struct {
	ID         string         `json:"id"          validate:"required"`
	WorkflowID string         `json:"workflow_id" validate:"required"`
	Type       ScheduleType   `json:"type"        validate:"required"`
	Config     map[string]any `json:"config"`
	IsActive   bool           `json:"is_active"`
	Priority   int            `json:"priority"    validate:"min=1,max=10"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Validate performs synchronous validation on the schedule. Invalid cron
// expressions are rejected here, at creation, never deferred to first fire.
func (s *Schedule) Validate() error {
	if s.ID == "" || s.WorkflowID == "" {
		return ErrInvalidSchedule
	}

	if !scheduleTypes[s.Type] {
		return fmt.Errorf("%w: unknown schedule type %q", ErrInvalidSchedule, s.Type)
	}

	if s.Priority < 1 || s.Priority > 10 {
		return ErrInvalidPriority
	}

	if s.Type == ScheduleTypeCron {
		expr, _ := s.Config["expression"].(string)
		if expr == "" {
			return fmt.Errorf("%w: cron schedule requires an expression", ErrInvalidSchedule)
		}

		if _, err := cron.ParseStandard(expr); err != nil {
			return fmt.Errorf("%w: invalid cron expression: %w", ErrInvalidSchedule, err)
		}
	}

	return nil
}

// QueueItem is one pending run produced by a firing trigger. It is consumed
// exactly once, re-enqueued with an incremented retries counter and a backoff
// delay on failure, and discarded with a terminal failure record once retries
// are exhausted.
type QueueItem struct {
	ScheduleID     string         `json:"schedule_id"`
	WorkflowID     string         `json:"workflow_id"`
	Priority       int            `json:"priority"`
	TriggerType    ScheduleType   `json:"trigger_type"`
	TriggerContext map[string]any `json:"trigger_context,omitempty"`
	ScheduledAt    time.Time      `json:"scheduled_at"`
	Retries        int            `json:"retries"`
}
