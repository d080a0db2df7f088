package models

import "time"

// ExecutionStatus represents the lifecycle state of one run.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// FailureType is the coarse classification of a failed run.
type FailureType string

const (
	FailureTypeNone          FailureType = ""
	FailureTypeValidation    FailureType = "validation_error"
	FailureTypeConfiguration FailureType = "configuration_error"
	FailureTypeRuntime       FailureType = "runtime_error"
	FailureTypeTimeout       FailureType = "timeout"
)

// LatencyBucket is a coarse categorical grouping of run duration for
// aggregate reporting.
type LatencyBucket string

const (
	LatencySub500ms LatencyBucket = "sub500ms"
	LatencySub1s    LatencyBucket = "sub1s"
	LatencySub3s    LatencyBucket = "sub3s"
	LatencySub5s    LatencyBucket = "sub5s"
	LatencySub10s   LatencyBucket = "sub10s"
	LatencyGt10s    LatencyBucket = "gt10s"
)

// BucketForDuration maps a run duration to its latency bucket.
func BucketForDuration(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()

	switch {
	case ms < 500:
		return LatencySub500ms
	case ms < 1000:
		return LatencySub1s
	case ms < 3000:
		return LatencySub3s
	case ms < 5000:
		return LatencySub5s
	case ms < 10000:
		return LatencySub10s
	default:
		return LatencyGt10s
	}
}

// ExecutionRecord is the durable, queryable summary of one run. It is
// created once when the run starts and updated exactly once at terminal
// state.
type ExecutionRecord struct {
	ID               string              `json:"id"`
	WorkflowID       string              `json:"workflow_id"`
	UserID           string              `json:"user_id"`
	Status           ExecutionStatus     `json:"status"`
	TriggerType      string              `json:"trigger_type"`
	Input            map[string]any      `json:"input,omitempty"`
	Output           map[string]any      `json:"output,omitempty"`
	Logs             []ExecutionLogEntry `json:"logs,omitempty"`
	StartedAt        time.Time           `json:"started_at"`
	FinishedAt       *time.Time          `json:"finished_at,omitempty"`
	ExecutionTimeMs  int64               `json:"execution_time_ms"`
	NodeCount        int                 `json:"node_count"`
	SuccessNodeCount int                 `json:"success_node_count"`
	FailedNodeCount  int                 `json:"failed_node_count"`
	LatencyBucket    LatencyBucket       `json:"latency_bucket,omitempty"`
	ErrorMessage     string              `json:"error_message,omitempty"`
	FailureType      FailureType         `json:"failure_type,omitempty"`
}

// Finish marks the record terminal, deriving duration metrics. It must be
// called exactly once per record.
func (r *ExecutionRecord) Finish(status ExecutionStatus, finishedAt time.Time) {
	elapsed := finishedAt.Sub(r.StartedAt)

	r.Status = status
	r.FinishedAt = &finishedAt
	r.ExecutionTimeMs = elapsed.Milliseconds()
	r.LatencyBucket = BucketForDuration(elapsed)
}
