package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/persistence/file"
)

func testItem() *models.QueueItem {
	return &models.QueueItem{
		ScheduleID:  "sched-1",
		WorkflowID:  "wf-1",
		Priority:    5,
		TriggerType: models.ScheduleTypeCron,
		ScheduledAt: time.Now().UTC(),
	}
}

func TestLedgerRecordsEveryAttempt(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := file.NewPersistence(t.TempDir())
	ledger := NewLedger(store.Executions(), logger)
	ctx := context.Background()

	ledger.RecordAttempt(ctx, testItem(), 1, errors.New("connection refused"))
	ledger.RecordAttempt(ctx, testItem(), 2, nil)

	attempts, err := store.Executions().Attempts(ctx, "sched-1")
	require.NoError(t, err)
	require.Len(t, attempts, 2)

	assert.Equal(t, models.AttemptStatusFailed, attempts[0].Status)
	assert.Equal(t, "connection refused", attempts[0].Error)
	assert.Equal(t, 1, attempts[0].Attempt)

	assert.Equal(t, models.AttemptStatusSucceeded, attempts[1].Status)
	assert.Empty(t, attempts[1].Error)
}

func TestLedgerTerminalFailureRecord(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := file.NewPersistence(t.TempDir())
	ledger := NewLedger(store.Executions(), logger)
	ctx := context.Background()

	ledger.RecordTerminalFailure(ctx, testItem(), errors.New("still down"))

	records, err := store.Executions().ByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	record := records[0]
	assert.Equal(t, models.ExecutionStatusFailed, record.Status)
	assert.Equal(t, models.FailureTypeRuntime, record.FailureType)
	assert.Contains(t, record.ErrorMessage, "still down")
	assert.Equal(t, "cron", record.TriggerType)
	assert.NotNil(t, record.FinishedAt)
}
