package web

import (
	"errors"

	"github.com/dukex/leadflow/pkg/engine"
	"github.com/dukex/leadflow/pkg/models/schema"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func problem(c fiber.Ctx, status int, problemType, detail string) error {
	p := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(problemType).
		WithDetail(detail)

	return c.Status(status).JSON(p)
}

func badRequest(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusBadRequest, "validation_error", detail)
}

func internalError(c fiber.Ctx, err error) error {
	p := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(p)
}

// handleError maps engine and storage errors to problem responses.
func handleError(c fiber.Ctx, err error) error {
	var invalid *schema.ValidationError

	switch {
	case errors.As(err, &invalid):
		return badRequest(c, invalid.Error())

	case errors.Is(err, engine.ErrUnknownTriggerType), errors.Is(err, engine.ErrMissingLeadID):
		return badRequest(c, err.Error())

	case errors.Is(err, engine.ErrNoManualTrigger):
		return problem(c, fiber.StatusUnprocessableEntity, "no_manual_trigger", err.Error())

	case errors.Is(err, engine.ErrWorkflowInactive):
		return problem(c, fiber.StatusConflict, "workflow_inactive", err.Error())

	case errors.Is(err, engine.ErrNotStarted):
		return problem(c, fiber.StatusConflict, "run_not_started", err.Error())

	case persistence.IsWorkflowNotFound(err):
		return problem(c, fiber.StatusNotFound, "workflow_not_found", "workflow not found")

	case persistence.IsExecutionStateNotFound(err):
		return problem(c, fiber.StatusNotFound, "execution_state_not_found", "execution state not found")

	case persistence.IsLeadNotFound(err):
		return problem(c, fiber.StatusNotFound, "lead_not_found", "lead not found")

	default:
		return internalError(c, err)
	}
}
