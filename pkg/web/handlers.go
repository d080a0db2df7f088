// Package web provides the HTTP handlers for workflow, schedule and
// execution management.
package web

import (
	"github.com/gofiber/fiber/v3"

	"github.com/flowmesh/flowmesh/pkg/catalog"
	"github.com/flowmesh/flowmesh/pkg/models"
	"github.com/flowmesh/flowmesh/pkg/queue"
	"github.com/flowmesh/flowmesh/pkg/scheduler"
	"github.com/flowmesh/flowmesh/pkg/services"
)

type APIHandlers struct {
	workflowService  *services.Workflow
	executionService *services.Execution
	scheduler        *scheduler.Scheduler
	catalog          *catalog.Catalog
	queue            *queue.Processor
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	executionService *services.Execution,
	sched *scheduler.Scheduler,
	cat *catalog.Catalog,
	processor *queue.Processor,
) *APIHandlers {
	return &APIHandlers{
		workflowService:  workflowService,
		executionService: executionService,
		scheduler:        sched,
		catalog:          cat,
		queue:            processor,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, healthy := h.workflowService.HealthCheck(c.Context())
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy", "detail": message,
		})
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}

// ---- Workflows ----

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.workflowService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"workflows": workflows, "count": len(workflows)})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var workflow models.Workflow
	if err := c.Bind().JSON(&workflow); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	created, err := h.workflowService.Create(c.Context(), &workflow)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	var workflow models.Workflow
	if err := c.Bind().JSON(&workflow); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	workflow.ID = c.Params("id")

	updated, err := h.workflowService.Update(c.Context(), &workflow)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	if err := h.workflowService.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	result, err := h.workflowService.Validate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

// ---- Executions ----

type executeRequest struct {
	Input  map[string]any `json:"input"`
	UserID string         `json:"user_id"`
}

func (h *APIHandlers) ExecuteWorkflow(c fiber.Ctx) error {
	var req executeRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	record, err := h.executionService.Execute(c.Context(), services.ExecuteRequest{
		WorkflowID:  c.Params("id"),
		UserID:      req.UserID,
		TriggerType: "manual",
		Input:       req.Input,
	})
	if err != nil {
		// The terminal record carries the failure detail; surface both.
		if record != nil {
			return c.Status(statusForFailedRun(err)).JSON(record)
		}

		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func statusForFailedRun(err error) int {
	if services.IsValidationError(err) {
		return fiber.StatusUnprocessableEntity
	}

	return fiber.StatusInternalServerError
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	record, err := h.executionService.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(record)
}

func (h *APIHandlers) GetWorkflowExecutions(c fiber.Ctx) error {
	records, err := h.executionService.ListByWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"executions": records, "count": len(records)})
}

// ---- Schedules ----

func (h *APIHandlers) GetSchedules(c fiber.Ctx) error {
	schedules, err := h.scheduler.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"schedules": schedules, "count": len(schedules)})
}

func (h *APIHandlers) GetSchedule(c fiber.Ctx) error {
	schedule, err := h.scheduler.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(schedule)
}

func (h *APIHandlers) CreateSchedule(c fiber.Ctx) error {
	var schedule models.Schedule
	if err := c.Bind().JSON(&schedule); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.scheduler.Create(c.Context(), &schedule); err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(schedule)
}

func (h *APIHandlers) UpdateSchedule(c fiber.Ctx) error {
	var schedule models.Schedule
	if err := c.Bind().JSON(&schedule); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	schedule.ID = c.Params("id")

	if err := h.scheduler.Update(c.Context(), &schedule); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(schedule)
}

func (h *APIHandlers) DeleteSchedule(c fiber.Ctx) error {
	if err := h.scheduler.Delete(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) ActivateSchedule(c fiber.Ctx) error {
	if err := h.scheduler.Activate(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"schedule_id": c.Params("id"), "is_active": true})
}

func (h *APIHandlers) DeactivateSchedule(c fiber.Ctx) error {
	if err := h.scheduler.Deactivate(c.Context(), c.Params("id")); err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"schedule_id": c.Params("id"), "is_active": false})
}

func (h *APIHandlers) GetScheduleStatus(c fiber.Ctx) error {
	status, err := h.scheduler.Status(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(status)
}

// ---- Introspection ----

func (h *APIHandlers) GetNodeTypes(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version":    h.catalog.Version(),
		"node_types": h.catalog.Types(),
	})
}

func (h *APIHandlers) GetMetrics(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"executions": h.executionService.Metrics(),
		"queue":      h.queue.Snapshot(),
		"queued":     h.queue.Len(),
		"schedules":  h.scheduler.LiveCount(),
	})
}
