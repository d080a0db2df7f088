package services

import (
	"sync"

	"github.com/flowmesh/flowmesh/pkg/models"
)

const rollingWindow = 100

// Metrics aggregates execution outcomes in memory: totals, a rolling
// average over the most recent runs and the live gauge of in-flight runs.
type Metrics struct {
	mu sync.Mutex

	started   int64
	completed int64
	failed    int64
	active    int64

	byFailure map[models.FailureType]int64
	byBucket  map[models.LatencyBucket]int64

	recentMs []int64
	recentAt int
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Started          int64                          `json:"started"`
	Completed        int64                          `json:"completed"`
	Failed           int64                          `json:"failed"`
	ActiveExecutions int64                          `json:"active_executions"`
	AvgExecutionMs   float64                        `json:"avg_execution_ms"`
	ByFailureType    map[models.FailureType]int64   `json:"by_failure_type"`
	ByLatencyBucket  map[models.LatencyBucket]int64 `json:"by_latency_bucket"`
}

// NewMetrics returns zeroed metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		byFailure: make(map[models.FailureType]int64),
		byBucket:  make(map[models.LatencyBucket]int64),
		recentMs:  make([]int64, 0, rollingWindow),
	}
}

// RecordStart counts a run entering flight.
func (m *Metrics) RecordStart() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started++
	m.active++
}

// RecordFinish counts a terminal run and folds its duration into the
// rolling average.
func (m *Metrics) RecordFinish(record *models.ExecutionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active--

	switch record.Status {
	case models.ExecutionStatusCompleted:
		m.completed++
	case models.ExecutionStatusFailed:
		m.failed++
		m.byFailure[record.FailureType]++
	case models.ExecutionStatusRunning:
	}

	if record.LatencyBucket != "" {
		m.byBucket[record.LatencyBucket]++
	}

	if len(m.recentMs) < rollingWindow {
		m.recentMs = append(m.recentMs, record.ExecutionTimeMs)
	} else {
		m.recentMs[m.recentAt] = record.ExecutionTimeMs
		m.recentAt = (m.recentAt + 1) % rollingWindow
	}
}

// Snapshot returns a copy of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := MetricsSnapshot{
		Started:          m.started,
		Completed:        m.completed,
		Failed:           m.failed,
		ActiveExecutions: m.active,
		ByFailureType:    make(map[models.FailureType]int64, len(m.byFailure)),
		ByLatencyBucket:  make(map[models.LatencyBucket]int64, len(m.byBucket)),
	}

	for failureType, count := range m.byFailure {
		snapshot.ByFailureType[failureType] = count
	}

	for bucket, count := range m.byBucket {
		snapshot.ByLatencyBucket[bucket] = count
	}

	if len(m.recentMs) > 0 {
		var total int64
		for _, ms := range m.recentMs {
			total += ms
		}

		snapshot.AvgExecutionMs = float64(total) / float64(len(m.recentMs))
	}

	return snapshot
}
