package web

import (
	"log/slog"

	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
)

// NewApp builds the HTTP application around the engine.
func NewApp(log *slog.Logger, runner Runner, store persistence.Persistence) *fiber.App {
	handlers := NewAPIHandlers(runner, store, validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New(fiber.Config{
		AppName:     "leadflow",
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})
	app.Use(recoverer.New())
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())
	app.Get("/health", handlers.HealthCheck)

	api := app.Group("/api/v1")
	api.Post("/events", handlers.DispatchEvent)

	w := api.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Get("/:id", handlers.GetWorkflow)
	w.Put("/:id", handlers.SaveWorkflow)
	w.Post("/:id/trigger", handlers.TriggerWorkflow)
	w.Get("/:id/logs", handlers.GetActionLogs)
	w.Get("/:id/leads/:leadId/state", handlers.GetExecutionState)

	log.Debug("http application ready", "module", "web")

	return app
}
