package web

import (
	"context"
	"net/http"
	"time"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/models/schema"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Runner is the part of the engine the API drives.
type Runner interface {
	Dispatch(ctx context.Context, triggerType models.TriggerType, payload map[string]any) (int, error)
	TriggerManual(ctx context.Context, workflowID, leadID string) error
}

type APIHandlers struct {
	runner    Runner
	store     persistence.Persistence
	validator *validator.Validate
}

func NewAPIHandlers(runner Runner, store persistence.Persistence, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		runner:    runner,
		store:     store,
		validator: validator,
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	workflows, err := h.store.WorkflowRepository().GetAll(c.Context())
	if err != nil {
		return handleError(c, err)
	}

	summaries := make([]WorkflowSummary, 0, len(workflows))
	for _, workflow := range workflows {
		summaries = append(summaries, SummarizeWorkflow(workflow))
	}

	return c.JSON(fiber.Map{
		"workflows":   summaries,
		"total_count": len(summaries),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.store.WorkflowRepository().GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(workflow)
}

// SaveWorkflow validates a workflow document and stores it. The document id must match the path.
func (h *APIHandlers) SaveWorkflow(c fiber.Ctx) error {
	workflow, err := schema.Parse(c.Body())
	if err != nil {
		return handleError(c, err)
	}

	if workflow.ID != c.Params("id") {
		return badRequest(c, "workflow id does not match the path")
	}

	err = h.validator.Struct(workflow)
	if err != nil {
		return badRequest(c, err.Error())
	}

	err = h.store.WorkflowRepository().Save(c.Context(), workflow)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(workflow)
}

func (h *APIHandlers) TriggerWorkflow(c fiber.Ctx) error {
	var req TriggerWorkflowRequest

	err := c.Bind().JSON(&req)
	if err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	err = h.validator.Struct(req)
	if err != nil {
		return badRequest(c, err.Error())
	}

	err = h.runner.TriggerManual(c.Context(), c.Params("id"), req.LeadID)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"workflowId": c.Params("id"),
		"leadId":     req.LeadID,
	})
}

func (h *APIHandlers) DispatchEvent(c fiber.Ctx) error {
	var req DispatchEventRequest

	err := c.Bind().JSON(&req)
	if err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	err = h.validator.Struct(req)
	if err != nil {
		return badRequest(c, err.Error())
	}

	if req.Payload == nil {
		req.Payload = map[string]any{}
	}

	started, err := h.runner.Dispatch(c.Context(), req.TriggerType, req.Payload)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(DispatchEventResponse{
		TriggerType: req.TriggerType,
		Started:     started,
	})
}

func (h *APIHandlers) GetExecutionState(c fiber.Ctx) error {
	state, err := h.store.ExecutionStateRepository().Get(c.Context(), c.Params("id"), c.Params("leadId"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(state)
}

func (h *APIHandlers) GetActionLogs(c fiber.Ctx) error {
	entries, err := h.store.ActionLogRepository().ListByWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	if leadID := c.Query("leadId"); leadID != "" {
		filtered := make([]*models.ActionLogEntry, 0, len(entries))

		for _, entry := range entries {
			if entry.LeadID == leadID {
				filtered = append(filtered, entry)
			}
		}

		entries = filtered
	}

	return c.JSON(fiber.Map{
		"logs":        entries,
		"total_count": len(entries),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Leadflow API is healthy"
	httpStatus := http.StatusOK
	repository := "ok"

	err := h.store.HealthCheck(c.Context())
	if err != nil {
		status = "unhealthy"
		message = "Leadflow API is unhealthy"
		httpStatus = http.StatusInternalServerError
		repository = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repository,
		},
		"timestamp": time.Now().UTC(),
	})
}
