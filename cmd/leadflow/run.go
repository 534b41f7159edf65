package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/dukex/leadflow/pkg/log"
	"github.com/dukex/leadflow/pkg/protocol"
	"github.com/dukex/leadflow/pkg/triggers/schedule"
	"github.com/dukex/leadflow/pkg/web"
	cli "github.com/urfave/cli/v3"
)

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Serve the HTTP API, consume trigger events and fire schedules",
		Flags: append(append(engineFlags(), eventBusFlags()...),
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("leadflow")
			logger.InfoContext(ctx, "Initializing leadflow")

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, logger, command)
			if err != nil {
				return err
			}
			defer rt.close(context.WithoutCancel(ctx))

			err = rt.engine.Listen(rt.bus)
			if err != nil {
				return fmt.Errorf("failed to register trigger handler: %w", err)
			}

			err = rt.bus.Subscribe(ctx)
			if err != nil {
				return fmt.Errorf("failed to subscribe to events: %w", err)
			}

			triggers, err := startSchedules(ctx, rt)
			if err != nil {
				return err
			}

			defer func() {
				for _, trigger := range triggers {
					_ = trigger.Stop(context.WithoutCancel(ctx))
				}
			}()

			app := web.NewApp(logger, rt.engine, rt.store)

			go func() {
				<-ctx.Done()

				err := app.Shutdown()
				if err != nil {
					logger.Error("Failed to shut down HTTP server", "error", err)
				}
			}()

			err = app.Listen(":" + strconv.Itoa(int(command.Int("port"))))
			if err != nil {
				return fmt.Errorf("http server failed: %w", err)
			}

			logger.Info("leadflow stopped")

			return nil
		},
	}
}

// startSchedules starts the cron triggers declared by the stored workflows.
func startSchedules(ctx context.Context, rt *runtime) ([]protocol.Trigger, error) {
	workflows, err := rt.store.WorkflowRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	triggers, err := schedule.FromWorkflows(workflows, rt.logger)
	if err != nil {
		return nil, err
	}

	callback := schedule.Callback(rt.engine)

	for i, trigger := range triggers {
		err = trigger.Start(ctx, callback)
		if err != nil {
			for _, started := range triggers[:i] {
				_ = started.Stop(ctx)
			}

			return nil, err
		}
	}

	rt.logger.InfoContext(ctx, "schedules started", "count", len(triggers))

	return triggers, nil
}
