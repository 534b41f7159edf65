package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// Payload keys understood by Dispatch.
const (
	leadIDKey         = "leadId"
	workflowIDKey     = "workflowId"
	eventTimestampKey = "eventTimestamp"
	triggerTypeKey    = "triggerType"
	scheduleIDKey     = "scheduleId"
)

// Dispatch starts every active workflow listening for triggerType. The payload must carry a
// leadId unless the trigger is administrative. A workflowId in the payload restricts the
// dispatch to that workflow. It returns the number of runs started.
func (e *Engine) Dispatch(ctx context.Context, triggerType models.TriggerType, payload map[string]any) (int, error) {
	if !triggerType.Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnknownTriggerType, triggerType)
	}

	leadID, _ := payload[leadIDKey].(string)
	if leadID == "" && !triggerType.Administrative() {
		return 0, fmt.Errorf("%s: %w", triggerType, ErrMissingLeadID)
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.dispatch",
		attribute.String(otelhelper.TriggerTypeKey, string(triggerType)),
		attribute.String(otelhelper.LeadIDKey, leadID))
	defer span.End()

	workflows, err := e.workflows.ListActiveWithTrigger(ctx, triggerType)
	if err != nil {
		otelhelper.SetError(span, err)

		return 0, fmt.Errorf("failed to list workflows for %s: %w", triggerType, err)
	}

	only, _ := payload[workflowIDKey].(string)

	var (
		wg      sync.WaitGroup
		started atomic.Int64
	)

	for _, workflow := range workflows {
		if only != "" && workflow.ID != only {
			continue
		}

		wg.Add(1)

		go func() {
			defer wg.Done()

			ok, err := e.StartWorkflow(ctx, workflow, triggerType, payload)
			if err != nil {
				e.logger.ErrorContext(ctx, "failed to start workflow",
					"workflow_id", workflow.ID,
					"trigger_type", triggerType,
					"error", err)

				return
			}

			if ok {
				started.Add(1)
			}
		}()
	}

	wg.Wait()

	e.logger.InfoContext(ctx, "trigger dispatched",
		"trigger_type", triggerType,
		"lead_id", leadID,
		"workflows", len(workflows),
		"started", started.Load())

	return int(started.Load()), nil
}

// StartWorkflow runs workflow for the lead of the payload, starting from each of its
// triggerType trigger nodes. It returns false when the reentry policy skipped the run.
// The run outlives ctx cancellation.
func (e *Engine) StartWorkflow(
	ctx context.Context,
	workflow *models.Workflow,
	triggerType models.TriggerType,
	payload map[string]any,
) (bool, error) {
	ctx = context.WithoutCancel(ctx)

	triggers := firedTriggers(workflow, triggerType, payload)
	if len(triggers) == 0 {
		return false, fmt.Errorf("workflow %s has no %s trigger", workflow.ID, triggerType)
	}

	leadID, _ := payload[leadIDKey].(string)

	variables := make(map[string]any, len(payload)+2)
	maps.Copy(variables, payload)

	if _, ok := variables[eventTimestampKey]; !ok {
		variables[eventTimestampKey] = e.clock.Now().UTC().Format(time.RFC3339Nano)
	}

	variables[triggerTypeKey] = string(triggerType)

	started, err := e.states.Begin(ctx, models.ExecutionStart{
		WorkflowID: workflow.ID,
		LeadID:     leadID,
		Variables:  variables,
		Policy:     e.policy,
		StartedAt:  e.clock.Now().UTC(),
	})
	if err != nil {
		return false, fmt.Errorf("failed to begin run of %s: %w", workflow.ID, err)
	}

	if !started {
		e.logger.InfoContext(ctx, "lead already has an active run, skipping",
			"workflow_id", workflow.ID,
			"lead_id", leadID,
			"policy", e.policy)

		return false, nil
	}

	e.publish(ctx, workflow.ID, events.WorkflowStarted{
		BaseEvent:   e.baseEvent(events.WorkflowStartedEvent, workflow.ID, leadID),
		TriggerType: triggerType,
		Variables:   variables,
	})

	for _, trigger := range triggers {
		e.ExecuteNode(ctx, workflow.ID, trigger.ID, leadID)
	}

	return true, nil
}

// firedTriggers returns the trigger nodes a payload starts. A schedule tick names its node
// as "<workflowId>/<nodeId>" and starts only that node.
func firedTriggers(workflow *models.Workflow, triggerType models.TriggerType, payload map[string]any) []*models.WorkflowNode {
	triggers := workflow.TriggerNodes(triggerType)

	scheduleID, _ := payload[scheduleIDKey].(string)
	if triggerType != models.TriggerScheduled || scheduleID == "" {
		return triggers
	}

	nodeID, ok := strings.CutPrefix(scheduleID, workflow.ID+"/")
	if !ok {
		return triggers
	}

	return slices.DeleteFunc(triggers, func(node *models.WorkflowNode) bool {
		return node.ID != nodeID
	})
}

// TriggerManual starts workflowID for leadID from its MANUAL trigger.
func (e *Engine) TriggerManual(ctx context.Context, workflowID, leadID string) error {
	workflow, err := e.workflows.GetByID(ctx, workflowID)
	if err != nil {
		return err
	}

	if !workflow.IsActive {
		return fmt.Errorf("%s: %w", workflowID, ErrWorkflowInactive)
	}

	if !workflow.HasTrigger(models.TriggerManual) {
		return fmt.Errorf("%s: %w", workflowID, ErrNoManualTrigger)
	}

	started, err := e.Dispatch(ctx, models.TriggerManual, map[string]any{
		workflowIDKey: workflowID,
		leadIDKey:     leadID,
	})
	if err != nil {
		return err
	}

	if started == 0 {
		return fmt.Errorf("%s for lead %s: %w", workflowID, leadID, ErrNotStarted)
	}

	return nil
}
