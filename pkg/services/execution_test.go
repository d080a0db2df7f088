package services

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/pkg/catalog"
	"github.com/flowmesh/flowmesh/pkg/eventbus"
	"github.com/flowmesh/flowmesh/pkg/events"
	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/nodes/flow"
	"github.com/flowmesh/flowmesh/pkg/persistence/file"
	"github.com/flowmesh/flowmesh/pkg/registry"
	"github.com/flowmesh/flowmesh/pkg/validation"
	"github.com/flowmesh/flowmesh/pkg/workflow"
)

type failingHandler struct{}

func (h *failingHandler) Type() string { return "transform" }

func (h *failingHandler) Execute(_ context.Context, _ *models.Node, _ *models.ExecutionContext) (any, error) {
	return nil, errors.New("transform blew up")
}

func newTestExecution(t *testing.T) (*Execution, *file.Persistence) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(logger)
	reg.Register(flow.NewStartHandler())
	reg.Register(flow.NewEndHandler())
	reg.Register(&failingHandler{})

	graphValidator := validation.NewValidator(catalog.Default(), reg, logger)
	executor := workflow.NewExecutor(reg, nil, logger)

	return NewExecution(store, graphValidator, executor, nil, NewMetrics(), logger), store
}

func activeWorkflow(id string, nodes []*models.Node, edges []*models.Edge) *models.Workflow {
	return &models.Workflow{
		ID:     id,
		Name:   "test workflow",
		Status: models.WorkflowStatusActive,
		Nodes:  nodes,
		Edges:  edges,
	}
}

func TestExecuteHappyPath(t *testing.T) {
	svc, store := newTestExecution(t)
	ctx := context.Background()

	wf := activeWorkflow("wf-1",
		[]*models.Node{
			{ID: "start", Type: "start"},
			{ID: "end", Type: "end"},
		},
		[]*models.Edge{{Source: "start", Target: "end"}},
	)
	require.NoError(t, store.Workflows().Save(ctx, wf))

	record, err := svc.Execute(ctx, ExecuteRequest{
		WorkflowID:  "wf-1",
		TriggerType: "manual",
		Input:       map[string]any{"order": "o-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, record.Status)
	assert.Equal(t, 2, record.SuccessNodeCount)
	assert.Zero(t, record.FailedNodeCount)
	assert.NotNil(t, record.FinishedAt)
	assert.NotEmpty(t, record.LatencyBucket)

	// The terminal record is what persistence sees.
	stored, err := store.Executions().ByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, stored.Status)

	snapshot := svc.Metrics()
	assert.Equal(t, int64(1), snapshot.Started)
	assert.Equal(t, int64(1), snapshot.Completed)
	assert.Zero(t, snapshot.ActiveExecutions)
}

func TestExecuteRejectsInactiveWorkflow(t *testing.T) {
	svc, store := newTestExecution(t)
	ctx := context.Background()

	wf := activeWorkflow("wf-1", []*models.Node{{ID: "start", Type: "start"}, {ID: "end", Type: "end"}}, nil)
	wf.Status = models.WorkflowStatusDraft
	require.NoError(t, store.Workflows().Save(ctx, wf))

	_, err := svc.Execute(ctx, ExecuteRequest{WorkflowID: "wf-1"})
	assert.ErrorIs(t, err, ErrWorkflowNotExecutable)
}

func TestExecuteValidationFailure(t *testing.T) {
	svc, store := newTestExecution(t)
	ctx := context.Background()

	// Unknown node type fails validation before any node runs.
	wf := activeWorkflow("wf-1",
		[]*models.Node{
			{ID: "start", Type: "start"},
			{ID: "mystery", Type: "no_such_type"},
			{ID: "end", Type: "end"},
		},
		[]*models.Edge{
			{Source: "start", Target: "mystery"},
			{Source: "mystery", Target: "end"},
		},
	)
	require.NoError(t, store.Workflows().Save(ctx, wf))

	record, err := svc.Execute(ctx, ExecuteRequest{WorkflowID: "wf-1"})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	assert.Equal(t, models.ExecutionStatusFailed, record.Status)
	assert.Equal(t, models.FailureTypeValidation, record.FailureType)
	assert.Zero(t, record.SuccessNodeCount)
}

func TestExecuteRuntimeFailure(t *testing.T) {
	svc, store := newTestExecution(t)
	ctx := context.Background()

	wf := activeWorkflow("wf-1",
		[]*models.Node{
			{ID: "start", Type: "start"},
			{ID: "boom", Type: "transform", Config: map[string]any{"expression": "x"}},
			{ID: "end", Type: "end"},
		},
		[]*models.Edge{
			{Source: "start", Target: "boom"},
			{Source: "boom", Target: "end"},
		},
	)
	require.NoError(t, store.Workflows().Save(ctx, wf))

	record, err := svc.Execute(ctx, ExecuteRequest{WorkflowID: "wf-1"})
	require.Error(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, record.Status)
	assert.Equal(t, models.FailureTypeRuntime, record.FailureType)
	assert.Contains(t, record.ErrorMessage, "transform blew up")

	snapshot := svc.Metrics()
	assert.Equal(t, int64(1), snapshot.Failed)
	assert.Equal(t, int64(1), snapshot.ByFailureType[models.FailureTypeRuntime])
}

func TestAbortedRunKeepsPartialResultsAndLogs(t *testing.T) {
	svc, store := newTestExecution(t)
	ctx := context.Background()

	wf := activeWorkflow("wf-1",
		[]*models.Node{
			{ID: "start", Type: "start"},
			{ID: "boom", Type: "transform", Config: map[string]any{"expression": "x"}},
			{ID: "end", Type: "end"},
		},
		[]*models.Edge{
			{Source: "start", Target: "boom"},
			{Source: "boom", Target: "end"},
		},
	)
	require.NoError(t, store.Workflows().Save(ctx, wf))

	record, err := svc.Execute(ctx, ExecuteRequest{WorkflowID: "wf-1"})
	require.Error(t, err)
	require.Equal(t, models.ExecutionStatusFailed, record.Status)

	// Completed nodes stay retrievable on the terminal record.
	require.NotNil(t, record.Output)
	results, ok := record.Output["results"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, results, "start")
	assert.NotContains(t, results, "end")

	require.NotEmpty(t, record.Logs)

	var failureLogged bool

	for _, entry := range record.Logs {
		if entry.NodeID == "boom" && entry.Level == "error" {
			failureLogged = true
		}
	}

	assert.True(t, failureLogged)

	// The persisted record carries both, not just the in-memory copy.
	stored, err := store.Executions().ByID(ctx, record.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.Output)
	assert.NotEmpty(t, stored.Logs)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]events.EventType, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.GetType())
	}

	return types
}

func TestExecutePublishesNodeLifecycleEvents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(logger)
	reg.Register(flow.NewStartHandler())
	reg.Register(flow.NewEndHandler())

	bus := &recordingPublisher{}
	svc := NewExecution(
		store,
		validation.NewValidator(catalog.Default(), reg, logger),
		workflow.NewExecutor(reg, nil, logger),
		bus,
		NewMetrics(),
		logger,
	)

	ctx := context.Background()
	wf := activeWorkflow("wf-1",
		[]*models.Node{
			{ID: "start", Type: "start"},
			{ID: "end", Type: "end"},
		},
		[]*models.Edge{{Source: "start", Target: "end"}},
	)
	require.NoError(t, store.Workflows().Save(ctx, wf))

	record, err := svc.Execute(ctx, ExecuteRequest{WorkflowID: "wf-1", TriggerType: "manual"})
	require.NoError(t, err)

	types := bus.types()
	assert.Equal(t, []events.EventType{
		events.ExecutionStartedEvent,
		events.NodeFinishedEvent,
		events.NodeFinishedEvent,
		events.ExecutionCompletedEvent,
	}, types)

	var nodeIDs []string

	for _, published := range bus.events {
		if finished, ok := published.(events.NodeFinished); ok {
			require.Equal(t, record.ID, finished.ExecutionID)
			require.True(t, finished.Success)
			nodeIDs = append(nodeIDs, finished.NodeID)
		}
	}

	assert.Equal(t, []string{"start", "end"}, nodeIDs)
}

func TestExecuteMissingWorkflow(t *testing.T) {
	svc, _ := newTestExecution(t)

	_, err := svc.Execute(context.Background(), ExecuteRequest{WorkflowID: "ghost"})
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}
