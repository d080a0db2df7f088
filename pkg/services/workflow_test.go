package services

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowmesh/flowmesh/pkg/catalog"
	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/nodes/flow"
	"github.com/flowmesh/flowmesh/pkg/nodes/merge"
	"github.com/flowmesh/flowmesh/pkg/persistence/file"
	"github.com/flowmesh/flowmesh/pkg/registry"
	"github.com/flowmesh/flowmesh/pkg/validation"
)

func newTestWorkflowService(t *testing.T) *Workflow {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := file.NewPersistence(t.TempDir())

	reg := registry.NewRegistry(logger)
	reg.Register(flow.NewStartHandler())
	reg.Register(flow.NewEndHandler())
	reg.Register(merge.NewHandler())

	return NewWorkflow(store, validation.NewValidator(catalog.Default(), reg, logger))
}

func TestCreateAssignsDefaults(t *testing.T) {
	svc := newTestWorkflowService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &models.Workflow{Name: "fresh workflow"})
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.WorkflowStatusDraft, created.Status)
	assert.Equal(t, 1, created.Version)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestCreateRejectsShortName(t *testing.T) {
	svc := newTestWorkflowService(t)

	_, err := svc.Create(context.Background(), &models.Workflow{Name: "ab"})
	assert.Error(t, err)
}

func TestUpdateBumpsVersion(t *testing.T) {
	svc := newTestWorkflowService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &models.Workflow{Name: "versioned workflow"})
	require.NoError(t, err)

	created.Description = "second draft"

	updated, err := svc.Update(ctx, created)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)

	loaded, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "second draft", loaded.Description)
}

func TestValidateWithoutExecuting(t *testing.T) {
	svc := newTestWorkflowService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &models.Workflow{
		Name: "cyclic workflow",
		Nodes: []*models.Node{
			{ID: "start", Type: "start"},
			{ID: "a", Type: "merge"},
			{ID: "b", Type: "merge"},
			{ID: "end", Type: "end"},
		},
		Edges: []*models.Edge{
			{Source: "start", Target: "a"},
			{Source: "a", Target: "b"},
			{Source: "b", Target: "a"},
			{Source: "b", Target: "end"},
		},
	})
	require.NoError(t, err)

	result, err := svc.Validate(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, result.Valid)
}

func TestDeleteRemovesWorkflow(t *testing.T) {
	svc := newTestWorkflowService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &models.Workflow{Name: "doomed workflow"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID))

	_, err = svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrWorkflowNotFound)
}
