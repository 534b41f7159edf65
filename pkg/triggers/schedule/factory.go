package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/protocol"
)

var ErrConfigNil = errors.New("config cannot be nil")

// Dispatcher starts workflows for a trigger event.
type Dispatcher interface {
	Dispatch(ctx context.Context, triggerType models.TriggerType, payload map[string]any) (int, error)
}

// Callback dispatches every tick as a SCHEDULED event.
func Callback(dispatcher Dispatcher) protocol.TriggerCallback {
	return func(ctx context.Context, payload map[string]any) error {
		_, err := dispatcher.Dispatch(ctx, models.TriggerScheduled, payload)

		return err
	}
}

// FromWorkflows builds one trigger per SCHEDULED trigger node of the active workflows.
// The node config holds "cron", optional "leadIds" and "enabled".
func FromWorkflows(workflows []*models.Workflow, logger *slog.Logger) ([]protocol.Trigger, error) {
	var triggers []protocol.Trigger

	for _, workflow := range workflows {
		if !workflow.IsActive {
			continue
		}

		for _, node := range workflow.TriggerNodes(models.TriggerScheduled) {
			data, _ := node.Data.(*models.TriggerData)

			config := make(map[string]any, len(data.Config)+2)
			maps.Copy(config, data.Config)
			config["id"] = workflow.ID + "/" + node.ID
			config["workflowId"] = workflow.ID

			trigger, err := Create(config, logger)
			if err != nil {
				return nil, fmt.Errorf("workflow %s node %s: %w", workflow.ID, node.ID, err)
			}

			triggers = append(triggers, trigger)
		}
	}

	return triggers, nil
}

func Create(config map[string]any, logger *slog.Logger) (protocol.Trigger, error) {
	if config == nil {
		return nil, ErrConfigNil
	}

	trigger, err := NewScheduleTrigger(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create schedule trigger: %w", err)
	}

	return trigger, nil
}
