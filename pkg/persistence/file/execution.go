package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/persistence"
)

// ExecutionRepository stores execution records and the dispatch attempt
// ledger on the file system. Attempts for one schedule live in a single
// document, so appends are serialized with a mutex.
type ExecutionRepository struct {
	executionsDir string
	attemptsDir   string

	mu sync.Mutex
}

// NewExecutionRepository creates an execution repository under root.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{
		executionsDir: filepath.Join(root, "executions"),
		attemptsDir:   filepath.Join(root, "attempts"),
	}
}

// Save writes the execution record, replacing any previous version.
func (er *ExecutionRepository) Save(_ context.Context, record *models.ExecutionRecord) error {
	return writeDocument(er.executionsDir, record.ID, record)
}

// ByID loads a single execution record.
func (er *ExecutionRepository) ByID(_ context.Context, id string) (*models.ExecutionRecord, error) {
	var record models.ExecutionRecord

	err := readDocument(er.executionsDir, id, &record)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrExecutionNotFound, id)
	}

	if err != nil {
		return nil, err
	}

	return &record, nil
}

// ByWorkflow returns every execution record for the given workflow, most
// recent first.
func (er *ExecutionRepository) ByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	ids, err := listDocumentIDs(er.executionsDir)
	if err != nil {
		return nil, err
	}

	records := make([]*models.ExecutionRecord, 0)

	for _, id := range ids {
		record, err := er.ByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load execution %s: %w", id, err)
		}

		if record.WorkflowID == workflowID {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})

	return records, nil
}

// RecordAttempt appends one dispatch attempt to the schedule's ledger.
func (er *ExecutionRepository) RecordAttempt(ctx context.Context, attempt *models.DispatchAttempt) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	attempts, err := er.loadAttempts(attempt.ScheduleID)
	if err != nil {
		return err
	}

	attempts = append(attempts, attempt)

	return writeDocument(er.attemptsDir, attempt.ScheduleID, attempts)
}

// Attempts returns the dispatch ledger for one schedule in append order.
func (er *ExecutionRepository) Attempts(_ context.Context, scheduleID string) ([]*models.DispatchAttempt, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	return er.loadAttempts(scheduleID)
}

func (er *ExecutionRepository) loadAttempts(scheduleID string) ([]*models.DispatchAttempt, error) {
	var attempts []*models.DispatchAttempt

	err := readDocument(er.attemptsDir, scheduleID, &attempts)
	if os.IsNotExist(err) {
		return []*models.DispatchAttempt{}, nil
	}

	if err != nil {
		return nil, err
	}

	return attempts, nil
}
