// Package actions runs the side effects of action nodes.
//
// Every action type has one registered Handler. The Executor owns the audit trail:
// each call to Execute appends exactly one ActionLogEntry, whatever the outcome.
package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/protocol"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	ErrNoHandler     = errors.New("no handler registered for action type")
	ErrInvalidConfig = errors.New("invalid action config")
	ErrNoLead        = errors.New("action needs a lead")
)

// Request is the context an action runs in.
type Request struct {
	WorkflowID string
	NodeID     string
	LeadID     string
	// Lead is nil for administrative runs that carry no lead.
	Lead      *models.Lead
	Variables map[string]any
}

// Outcome is the result of one action attempt. Output holds the variables the action produced.
type Outcome struct {
	Success bool
	Output  map[string]any
	Err     error
}

// Handler performs one action type.
type Handler interface {
	Handle(ctx context.Context, request Request, config models.ActionConfig) (map[string]any, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, request Request, config models.ActionConfig) (map[string]any, error)

func (f HandlerFunc) Handle(ctx context.Context, request Request, config models.ActionConfig) (map[string]any, error) {
	return f(ctx, request, config)
}

// typed checks the config variant before calling fn.
func typed[C models.ActionConfig](fn func(ctx context.Context, request Request, config C) (map[string]any, error)) Handler {
	return HandlerFunc(func(ctx context.Context, request Request, config models.ActionConfig) (map[string]any, error) {
		c, ok := config.(C)
		if !ok {
			return nil, fmt.Errorf("%w: got %T", ErrInvalidConfig, config)
		}

		return fn(ctx, request, c)
	})
}

// Collaborators are the external services actions delegate to.
type Collaborators struct {
	EmailSender      protocol.EmailSender
	ContentGenerator protocol.ContentGenerator
	EmailAnalyzer    protocol.EmailAnalyzer
}

// Executor dispatches action nodes to their handlers.
type Executor struct {
	logger   *slog.Logger
	clock    clockwork.Clock
	logs     persistence.ActionLogRepository
	handlers map[models.ActionType]Handler
}

// NewExecutor registers the built-in handler of every action type.
func NewExecutor(logger *slog.Logger, clock clockwork.Clock, store persistence.Persistence, collaborators Collaborators) *Executor {
	executor := &Executor{
		logger:   logger.With("module", "action_executor"),
		clock:    clock,
		logs:     store.ActionLogRepository(),
		handlers: make(map[models.ActionType]Handler),
	}

	emails := &emailHandler{
		clock:  clock,
		sender: collaborators.EmailSender,
		emails: store.EmailRepository(),
		leads:  store.LeadRepository(),
	}
	records := &recordHandler{
		clock:         clock,
		tasks:         store.TaskRepository(),
		appointments:  store.AppointmentRepository(),
		notifications: store.NotificationRepository(),
	}
	analysis := &analysisHandler{
		logger:    executor.logger,
		clock:     clock,
		analyzer:  collaborators.EmailAnalyzer,
		generator: collaborators.ContentGenerator,
		emails:    store.EmailRepository(),
		leads:     store.LeadRepository(),
		sender:    emails,
	}
	leads := &leadHandler{clock: clock, leads: store.LeadRepository()}

	executor.Register(models.ActionSendEmail, typed(emails.sendEmail))
	executor.Register(models.ActionUpdateLead, typed(leads.updateLead))
	executor.Register(models.ActionCreateTask, typed(records.createTask))
	executor.Register(models.ActionCreateAppointment, typed(records.createAppointment))
	executor.Register(models.ActionNotifyUser, typed(records.notifyUser))
	executor.Register(models.ActionGenerateAIContent, typed(analysis.generateContent))
	executor.Register(models.ActionAnalyzeEmail, typed(analysis.analyzeEmail))
	executor.Register(models.ActionCategorizeLead, typed(analysis.categorizeLead))

	return executor
}

// Register replaces the handler of actionType.
func (e *Executor) Register(actionType models.ActionType, handler Handler) {
	e.handlers[actionType] = handler
}

// Execute runs the action and records its outcome. It never panics and never returns an error:
// failures are reported through Outcome and the action log.
func (e *Executor) Execute(ctx context.Context, request Request, data *models.ActionData) Outcome {
	logger := e.logger.With(
		"workflow_id", request.WorkflowID,
		"node_id", request.NodeID,
		"lead_id", request.LeadID,
		"action_type", data.ActionType,
	)

	output, err := e.run(ctx, request, data)

	outcome := Outcome{Success: err == nil, Output: output, Err: err}

	entry := &models.ActionLogEntry{
		WorkflowID: request.WorkflowID,
		NodeID:     request.NodeID,
		LeadID:     request.LeadID,
		ActionType: string(data.ActionType),
		Data:       maps.Clone(output),
		Status:     models.LogStatusSuccess,
		Timestamp:  e.clock.Now().UTC(),
	}

	if err != nil {
		entry.Status = models.LogStatusFailed
		entry.Error = err.Error()

		logger.ErrorContext(ctx, "action failed", "error", err)
	} else {
		logger.InfoContext(ctx, "action succeeded")
	}

	e.append(ctx, logger, entry)

	return outcome
}

func (e *Executor) run(ctx context.Context, request Request, data *models.ActionData) (output map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()

	if data.DecodeError != "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, data.DecodeError)
	}

	if data.Config == nil {
		return nil, fmt.Errorf("%w: %s has no config", ErrInvalidConfig, data.ActionType)
	}

	handler, ok := e.handlers[data.ActionType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, data.ActionType)
	}

	return handler.Handle(ctx, request, data.Config)
}

func (e *Executor) append(ctx context.Context, logger *slog.Logger, entry *models.ActionLogEntry) {
	id, err := uuid.NewV7()
	if err != nil {
		logger.ErrorContext(ctx, "failed to generate action log ID", "error", err)

		return
	}

	entry.ID = id.String()

	err = e.logs.Append(ctx, entry)
	if err != nil {
		logger.ErrorContext(ctx, "failed to append action log entry", "error", err)
	}
}
