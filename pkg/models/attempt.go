package models

import "time"

// AttemptStatus is the outcome of a single queue dispatch attempt.
type AttemptStatus string

const (
	AttemptStatusSucceeded AttemptStatus = "succeeded"
	AttemptStatusFailed    AttemptStatus = "failed"
)

// DispatchAttempt is one ledger entry for a queue item dispatch. Every
// attempt is recorded, including the retries that precede a terminal
// failure.
type DispatchAttempt struct {
	ID         string        `json:"id"`
	ScheduleID string        `json:"schedule_id"`
	WorkflowID string        `json:"workflow_id"`
	Attempt    int           `json:"attempt"`
	Status     AttemptStatus `json:"status"`
	Error      string        `json:"error,omitempty"`
	At         time.Time     `json:"at"`
}
