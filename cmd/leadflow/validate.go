package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/leadflow/pkg/log"
	cli "github.com/urfave/cli/v3"
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate workflow documents",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "workflows-dir",
				Usage:    "Directory of workflow JSON documents",
				Required: true,
				Sources:  cli.EnvVars("WORKFLOWS_DIR"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := slog.With("module", "leadflow", "action", "validate")

			workflows, err := loadWorkflows(command.String("workflows-dir"))
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			for _, workflow := range workflows {
				logger.InfoContext(ctx, "workflow is valid",
					"workflow_id", workflow.ID,
					"nodes", len(workflow.Nodes),
					"edges", len(workflow.Edges))
			}

			return nil
		},
	}
}
