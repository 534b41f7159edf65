package main

import (
	"context"
	"fmt"

	"github.com/dukex/leadflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func NewTriggerCommand() *cli.Command {
	return &cli.Command{
		Name:  "trigger",
		Usage: "Run a workflow by hand for one lead in this process",
		Flags: append(append(engineFlags(), eventBusFlags()...),
			&cli.StringFlag{
				Name:     "workflow-id",
				Usage:    "Workflow to start",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "lead-id",
				Usage:    "Lead the workflow runs for",
				Required: true,
			},
		),
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("leadflow").With("action", "trigger")

			rt, err := newRuntime(ctx, logger, command)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			workflowID := command.String("workflow-id")
			leadID := command.String("lead-id")

			err = rt.engine.TriggerManual(ctx, workflowID, leadID)
			if err != nil {
				return fmt.Errorf("failed to trigger workflow: %w", err)
			}

			state, err := rt.store.ExecutionStateRepository().Get(ctx, workflowID, leadID)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "workflow triggered",
				"workflow_id", workflowID,
				"lead_id", leadID,
				"status", state.Status,
				"current_node", state.CurrentNode)

			if state.Status.Active() && command.String("scheduler") == "memory" {
				logger.WarnContext(ctx, "run is waiting on an in-process delay that ends with this process")
			}

			return nil
		},
	}
}
