// Package engine walks workflow graphs for leads.
//
// A run starts when a trigger event matches an active workflow. The engine then visits nodes
// depth first: conditions pick edges, actions run through the action executor, delays suspend
// the branch on the scheduler and splits fan out into concurrent branches. Every visit is
// appended to the execution state history of the (workflow, lead) pair.
package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dukex/leadflow/pkg/actions"
	"github.com/dukex/leadflow/pkg/condition"
	"github.com/dukex/leadflow/pkg/eventbus"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/otelhelper"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/scheduler"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxHops bounds the number of nodes one synchronous walk may visit,
// so a cycle without a delay cannot recurse forever.
const DefaultMaxHops = 1000

var (
	ErrUnknownTriggerType = errors.New("unknown trigger type")
	ErrMissingLeadID      = errors.New("event has no leadId")
	ErrWorkflowInactive   = errors.New("workflow is inactive")
	ErrNoManualTrigger    = errors.New("workflow has no manual trigger")
	ErrNotStarted         = errors.New("workflow run was not started")
	ErrTooManyHops        = errors.New("too many consecutive node visits")
)

// Engine executes workflows. It is safe for concurrent use.
type Engine struct {
	logger    *slog.Logger
	clock     clockwork.Clock
	tracer    trace.Tracer
	publisher eventbus.EventPublisher

	workflows persistence.WorkflowRepository
	states    persistence.ExecutionStateRepository
	logs      persistence.ActionLogRepository
	leads     persistence.LeadRepository
	emails    persistence.EmailRepository

	conditions *condition.Evaluator
	actions    *actions.Executor
	scheduler  scheduler.DelayScheduler

	policy  models.ReentryPolicy
	maxHops int
}

type Option func(*Engine)

// WithReentryPolicy selects what happens when a lead re-enters a workflow. Defaults to overwrite.
func WithReentryPolicy(policy models.ReentryPolicy) Option {
	return func(e *Engine) { e.policy = policy }
}

// WithPublisher publishes lifecycle events. Publishing is best effort.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(e *Engine) { e.publisher = publisher }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) { e.tracer = tracer }
}

func WithMaxHops(hops int) Option {
	return func(e *Engine) { e.maxHops = hops }
}

func New(
	logger *slog.Logger,
	clock clockwork.Clock,
	store persistence.Persistence,
	conditions *condition.Evaluator,
	executor *actions.Executor,
	delays scheduler.DelayScheduler,
	opts ...Option,
) *Engine {
	e := &Engine{
		logger:     logger.With("module", "engine"),
		clock:      clock,
		tracer:     otelhelper.NoopTracer(),
		workflows:  store.WorkflowRepository(),
		states:     store.ExecutionStateRepository(),
		logs:       store.ActionLogRepository(),
		leads:      store.LeadRepository(),
		emails:     store.EmailRepository(),
		conditions: conditions,
		actions:    executor,
		scheduler:  delays,
		policy:     models.ReentryOverwrite,
		maxHops:    DefaultMaxHops,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Start connects the engine to its scheduler so suspended branches resume.
func (e *Engine) Start(ctx context.Context) error {
	return e.scheduler.Start(ctx, e.resume)
}

func (e *Engine) resume(ctx context.Context, continuation scheduler.Continuation) {
	e.logger.InfoContext(ctx, "resuming delayed branch",
		"workflow_id", continuation.WorkflowID,
		"lead_id", continuation.LeadID,
		"node_id", continuation.NodeID)

	e.ExecuteNode(ctx, continuation.WorkflowID, continuation.NodeID, continuation.LeadID)
}
