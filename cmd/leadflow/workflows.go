package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/models/schema"
	"github.com/dukex/leadflow/pkg/persistence"
)

// loadWorkflows parses every *.json document of dir, sorted by file name.
func loadWorkflows(dir string) ([]*models.Workflow, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)

	workflows := make([]*models.Workflow, 0, len(paths))

	for _, path := range paths {
		document, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		workflow, err := schema.Parse(document)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}

		workflows = append(workflows, workflow)
	}

	return workflows, nil
}

func seedWorkflows(ctx context.Context, logger *slog.Logger, repository persistence.WorkflowRepository, dir string) error {
	if dir == "" {
		return nil
	}

	workflows, err := loadWorkflows(dir)
	if err != nil {
		return err
	}

	for _, workflow := range workflows {
		err = repository.Save(ctx, workflow)
		if err != nil {
			return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
		}
	}

	logger.InfoContext(ctx, "workflows loaded", "dir", dir, "count", len(workflows))

	return nil
}
