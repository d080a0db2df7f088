package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/persistence"
	"github.com/flowmesh/flowmesh/pkg/validation"
)

// Workflow is the workflow definition service: CRUD plus graph validation.
type Workflow struct {
	store     persistence.Persistence
	validator *validation.Validator
	validate  *validator.Validate
}

// NewWorkflow creates a new workflow service.
func NewWorkflow(store persistence.Persistence, graphValidator *validation.Validator) *Workflow {
	return &Workflow{
		store:     store,
		validator: graphValidator,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	err := w.store.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Create persists a new workflow. New workflows start as drafts with an
// assigned id and version 1.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	if workflow.Status == "" {
		workflow.Status = models.WorkflowStatusDraft
	}

	workflow.Version = 1

	now := time.Now().UTC()
	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if err := w.validate.Struct(workflow); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	if err := w.store.Workflows().Save(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Update replaces a workflow definition and bumps its version. Workflow
// definitions are never mutated by running executions; this is the only
// write path.
func (w *Workflow) Update(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	current, err := w.store.Workflows().ByID(ctx, workflow.ID)
	if err != nil {
		return nil, err
	}

	workflow.Version = current.Version + 1
	workflow.CreatedAt = current.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	if workflow.Status == "" {
		workflow.Status = current.Status
	}

	if err := w.validate.Struct(workflow); err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}

	if err := w.store.Workflows().Save(ctx, workflow); err != nil {
		return nil, err
	}

	return workflow, nil
}

// Get loads one workflow.
func (w *Workflow) Get(ctx context.Context, id string) (*models.Workflow, error) {
	return w.store.Workflows().ByID(ctx, id)
}

// List returns all workflows.
func (w *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	return w.store.Workflows().List(ctx)
}

// Delete removes a workflow.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	return w.store.Workflows().Delete(ctx, id)
}

// Validate runs graph validation without executing.
func (w *Workflow) Validate(ctx context.Context, id string) (*validation.Result, error) {
	workflow, err := w.store.Workflows().ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	return w.validator.Validate(workflow), nil
}
