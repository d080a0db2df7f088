package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/persistence"
)

// WorkflowRepository handles workflow storage on the file system.
type WorkflowRepository struct {
	dir string
}

// NewWorkflowRepository creates a workflow repository under root/workflows.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{dir: filepath.Join(root, "workflows")}
}

// List returns all stored workflows sorted by identifier.
func (wr *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	ids, err := listDocumentIDs(wr.dir)
	if err != nil {
		return nil, err
	}

	sort.Strings(ids)

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := wr.ByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

// ByID loads a single workflow.
func (wr *WorkflowRepository) ByID(_ context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	err := readDocument(wr.dir, id, &workflow)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", persistence.ErrWorkflowNotFound, id)
	}

	if err != nil {
		return nil, err
	}

	return &workflow, nil
}

// Save writes the workflow document, replacing any previous version.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	return writeDocument(wr.dir, workflow.ID, workflow)
}

// Delete removes the workflow document.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	err := removeDocument(wr.dir, id)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", persistence.ErrWorkflowNotFound, id)
	}

	return err
}
