// Package events defines the typed events published on the engine bus.
package events

import (
	"time"

	"github.com/flowmesh/flowmesh/pkg/models"
)

type EventType string

// Topic carries every engine lifecycle event.
const Topic = "flowmesh.events"

// ExternalTopicPrefix namespaces topics carrying third-party events
// consumed by event triggers.
const ExternalTopicPrefix = "flowmesh.external."

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent   EventType = "execution.started"
	ExecutionCompletedEvent EventType = "execution.completed"
	ExecutionFailedEvent    EventType = "execution.failed"
	NodeFinishedEvent       EventType = "node.finished"
	ScheduleFiredEvent      EventType = "schedule.fired"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	TriggerType string `json:"trigger_type,omitempty"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionCompleted struct {
	BaseEvent

	ExecutionID string               `json:"execution_id"`
	DurationMs  int64                `json:"duration_ms"`
	Bucket      models.LatencyBucket `json:"latency_bucket"`
}

func (e ExecutionCompleted) GetType() EventType {
	return ExecutionCompletedEvent
}

type ExecutionFailed struct {
	BaseEvent

	ExecutionID string             `json:"execution_id"`
	Error       string             `json:"error"`
	FailureType models.FailureType `json:"failure_type"`
	DurationMs  int64              `json:"duration_ms"`
}

func (e ExecutionFailed) GetType() EventType {
	return ExecutionFailedEvent
}

type NodeFinished struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	Success     bool   `json:"success"`
	DurationMs  int64  `json:"duration_ms"`
}

func (e NodeFinished) GetType() EventType {
	return NodeFinishedEvent
}

type ScheduleFired struct {
	BaseEvent

	ScheduleID  string              `json:"schedule_id"`
	TriggerType models.ScheduleType `json:"trigger_type"`
	Priority    int                 `json:"priority"`
}

func (e ScheduleFired) GetType() EventType {
	return ScheduleFiredEvent
}
