package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/leadflow/pkg/actions"
	"github.com/dukex/leadflow/pkg/cmd"
	"github.com/dukex/leadflow/pkg/condition"
	"github.com/dukex/leadflow/pkg/engine"
	"github.com/dukex/leadflow/pkg/eventbus"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/otelhelper"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/providers/dev"
	"github.com/dukex/leadflow/pkg/scheduler"
	"github.com/jonboulle/clockwork"
	cli "github.com/urfave/cli/v3"
)

// runtime holds the wired components of one process.
type runtime struct {
	logger *slog.Logger
	store  persistence.Persistence
	delays scheduler.DelayScheduler
	bus    eventbus.EventBus
	engine *engine.Engine

	shutdownTracer func(context.Context) error
}

func newRuntime(ctx context.Context, logger *slog.Logger, command *cli.Command) (_ *runtime, err error) {
	r := &runtime{logger: logger}

	defer func() {
		if err != nil {
			r.close(ctx)
		}
	}()

	policy, err := models.ParseReentryPolicy(command.String("reentry-policy"))
	if err != nil {
		return nil, err
	}

	r.store, err = cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, fmt.Errorf("failed to open persistence: %w", err)
	}

	err = seedWorkflows(ctx, logger, r.store.WorkflowRepository(), command.String("workflows-dir"))
	if err != nil {
		return nil, err
	}

	clock := clockwork.NewRealClock()

	r.delays, err = cmd.NewDelayScheduler(ctx, logger, clock, command.String("scheduler"))
	if err != nil {
		return nil, fmt.Errorf("failed to create delay scheduler: %w", err)
	}

	r.bus, err = cmd.NewEventBus(logger, command.String("event-bus"), command.String("kafka-brokers"))
	if err != nil {
		return nil, err
	}

	tracer := otelhelper.NoopTracer()

	if command.Bool("otel") {
		tracer, r.shutdownTracer, err = otelhelper.NewTracer(ctx, "leadflow")
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
	}

	executor := actions.NewExecutor(logger, clock, r.store, actions.Collaborators{
		EmailSender:      dev.NewLogEmailSender(logger),
		ContentGenerator: dev.NewTemplateGenerator(),
		EmailAnalyzer:    dev.NewKeywordAnalyzer(r.store.EmailRepository()),
	})

	r.engine = engine.New(logger, clock, r.store, condition.NewEvaluator(logger, clock), executor, r.delays,
		engine.WithReentryPolicy(policy),
		engine.WithPublisher(r.bus),
		engine.WithTracer(tracer),
	)

	err = r.engine.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start engine: %w", err)
	}

	return r, nil
}

// close releases components in reverse construction order.
func (r *runtime) close(ctx context.Context) {
	var errs []error

	if r.delays != nil {
		errs = append(errs, r.delays.Close(ctx))
	}

	if r.bus != nil {
		errs = append(errs, r.bus.Close())
	}

	if r.shutdownTracer != nil {
		errs = append(errs, r.shutdownTracer(ctx))
	}

	if r.store != nil {
		errs = append(errs, r.store.Close(ctx))
	}

	err := errors.Join(errs...)
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to shut down cleanly", "error", err)
	}
}
