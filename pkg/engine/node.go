package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/dukex/leadflow/pkg/actions"
	"github.com/dukex/leadflow/pkg/condition"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/otelhelper"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/scheduler"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type hopsKey struct{}

func hopsFrom(ctx context.Context) int {
	hops, _ := ctx.Value(hopsKey{}).(int)

	return hops
}

// visit is one node visit of a branch.
type visit struct {
	logger   *slog.Logger
	workflow *models.Workflow
	node     *models.WorkflowNode
	nodeID   string
	leadID   string
	lead     *models.Lead
}

// ExecuteNode visits nodeID of the workflow for the lead and continues along the edges it selects.
// Failures end the branch: they are recorded in the action log and the execution history
// and never reach the caller, so sibling branches are unaffected.
func (e *Engine) ExecuteNode(ctx context.Context, workflowID, nodeID, leadID string) {
	v := &visit{
		logger: e.logger.With("workflow_id", workflowID, "node_id", nodeID, "lead_id", leadID),
		nodeID: nodeID,
		leadID: leadID,
		workflow: &models.Workflow{
			ID: workflowID,
		},
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.execute_node",
		attribute.String(otelhelper.WorkflowIDKey, workflowID),
		attribute.String(otelhelper.NodeIDKey, nodeID),
		attribute.String(otelhelper.LeadIDKey, leadID))
	defer span.End()

	var next []string

	func() {
		defer func() {
			if r := recover(); r != nil {
				err := fmt.Errorf("node execution panicked: %v", r)
				otelhelper.SetError(span, err)
				e.fail(ctx, v, err)
				next = nil
			}
		}()

		var err error

		next, err = e.visit(ctx, v)
		if err != nil {
			otelhelper.SetError(span, err)
		}
	}()

	e.follow(ctx, workflowID, leadID, next)
}

func (e *Engine) visit(ctx context.Context, v *visit) ([]string, error) {
	if hopsFrom(ctx) >= e.maxHops {
		err := fmt.Errorf("%w: %d", ErrTooManyHops, e.maxHops)
		e.fail(ctx, v, err)

		return nil, err
	}

	workflow, err := e.workflows.GetByID(ctx, v.workflow.ID)
	if err != nil {
		v.logger.ErrorContext(ctx, "failed to load workflow, branch stops", "error", err)

		return nil, err
	}

	v.workflow = workflow

	if !workflow.IsActive {
		v.logger.InfoContext(ctx, "workflow is inactive, branch stops")

		return nil, nil
	}

	node, ok := workflow.Node(v.nodeID)
	if !ok {
		err = persistence.NewWorkflowError("execute_node", workflow.ID,
			fmt.Errorf("node %s: %w", v.nodeID, persistence.ErrNodeNotFound))
		e.fail(ctx, v, err)

		return nil, err
	}

	v.node = node
	v.logger = v.logger.With("node_type", node.Type)
	trace.SpanFromContext(ctx).SetAttributes(attribute.String(otelhelper.NodeTypeKey, string(node.Type)))

	if node.Data == nil {
		err = fmt.Errorf("node %s: %w %q", node.ID, models.ErrUnknownNodeType, node.Type)
		e.fail(ctx, v, err)

		return nil, err
	}

	if v.leadID != "" {
		v.lead, err = e.leads.Get(ctx, v.leadID)
		if err != nil {
			err = fmt.Errorf("failed to load lead: %w", err)
			e.fail(ctx, v, err)

			return nil, err
		}
	}

	switch data := node.Data.(type) {
	case *models.TriggerData, *models.SplitData:
		e.record(ctx, v, models.VisitSuccess, "", models.ExecutionStatusRunning)

		return e.targets(workflow, node, nil), nil
	case *models.ConditionData:
		return e.visitCondition(ctx, v, data), nil
	case *models.ActionData:
		return e.visitAction(ctx, v, data)
	case *models.DelayData:
		return e.visitDelay(ctx, v, data)
	case *models.EndData:
		e.record(ctx, v, models.VisitSuccess, "", models.ExecutionStatusCompleted)
		e.publish(ctx, workflow.ID, events.WorkflowCompleted{
			BaseEvent: e.baseEvent(events.WorkflowCompletedEvent, workflow.ID, v.leadID),
			NodeID:    node.ID,
		})

		return nil, nil
	default:
		err = fmt.Errorf("node %s: %w %T", node.ID, models.ErrUnknownNodeType, data)
		e.fail(ctx, v, err)

		return nil, err
	}
}

// targets lists the nodes reached from node. A non nil result keeps only the edges matching it.
func (e *Engine) targets(workflow *models.Workflow, node *models.WorkflowNode, result *bool) []string {
	var targets []string

	for _, edge := range workflow.OutgoingEdges(node.ID) {
		if result != nil && !edge.Matches(*result) {
			continue
		}

		targets = append(targets, edge.Target)
	}

	return targets
}

func (e *Engine) visitCondition(ctx context.Context, v *visit, data *models.ConditionData) []string {
	subject := condition.Subject{
		Lead:      v.lead,
		Email:     e.latestEmail(ctx, v),
		Variables: e.variables(ctx, v),
	}

	result, err := e.conditions.Check(data, subject)
	if err != nil {
		result = false

		v.logger.ErrorContext(ctx, "condition evaluation failed, taking the false branch", "error", err)
		e.audit(ctx, v, models.LogTypeCondition, err)
		e.record(ctx, v, models.VisitFailed, "false: "+err.Error(), models.ExecutionStatusRunning)
	} else {
		v.logger.InfoContext(ctx, "condition evaluated",
			"condition_type", data.ConditionType,
			"property", data.Property,
			"operator", data.Operator,
			"result", result)
		e.record(ctx, v, models.VisitSuccess, strconv.FormatBool(result), models.ExecutionStatusRunning)
	}

	return e.targets(v.workflow, v.node, &result)
}

func (e *Engine) visitAction(ctx context.Context, v *visit, data *models.ActionData) ([]string, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "engine.action",
		attribute.String(otelhelper.ActionTypeKey, string(data.ActionType)))
	defer span.End()

	outcome := e.actions.Execute(ctx, actions.Request{
		WorkflowID: v.workflow.ID,
		NodeID:     v.node.ID,
		LeadID:     v.leadID,
		Lead:       v.lead,
		Variables:  e.variables(ctx, v),
	}, data)

	if !outcome.Success {
		otelhelper.SetError(span, outcome.Err)

		e.record(ctx, v, models.VisitFailed, outcome.Err.Error(), models.ExecutionStatusFailed)
		e.publish(ctx, v.workflow.ID, events.ActionFailed{
			BaseEvent:  e.baseEvent(events.ActionFailedEvent, v.workflow.ID, v.leadID),
			NodeID:     v.node.ID,
			ActionType: data.ActionType,
			Error:      outcome.Err.Error(),
		})

		return nil, outcome.Err
	}

	if len(outcome.Output) > 0 {
		err := e.states.MergeVariables(ctx, v.workflow.ID, v.leadID, outcome.Output, e.clock.Now())
		if err != nil {
			v.logger.ErrorContext(ctx, "failed to store action output", "error", err)
		}
	}

	e.record(ctx, v, models.VisitSuccess, "", models.ExecutionStatusRunning)

	return e.targets(v.workflow, v.node, nil), nil
}

func (e *Engine) visitDelay(ctx context.Context, v *visit, data *models.DelayData) ([]string, error) {
	now := e.clock.Now()
	remaining := time.Duration(data.Duration) * time.Second

	if data.DelayType == models.DelayRelativeToEvent {
		if eventTime, ok := eventTimestamp(e.variables(ctx, v)); ok {
			remaining -= now.Sub(eventTime)
		}
	}

	targets := e.targets(v.workflow, v.node, nil)

	if remaining <= 0 || len(targets) == 0 {
		e.record(ctx, v, models.VisitSuccess, "", models.ExecutionStatusRunning)

		return targets, nil
	}

	due := now.Add(remaining).UTC()

	e.record(ctx, v, models.VisitWaiting, "until "+due.Format(time.RFC3339), models.ExecutionStatusWaiting)

	for _, target := range targets {
		err := e.scheduler.Schedule(ctx, remaining, scheduler.Continuation{
			WorkflowID: v.workflow.ID,
			LeadID:     v.leadID,
			NodeID:     target,
			DueAt:      due,
		})
		if err != nil {
			err = fmt.Errorf("failed to schedule continuation to %s: %w", target, err)
			e.fail(ctx, v, err)

			return nil, err
		}
	}

	v.logger.InfoContext(ctx, "branch suspended", "delay", remaining, "targets", targets)

	return nil, nil
}

// follow continues the branch. Several targets run as concurrent branches.
func (e *Engine) follow(ctx context.Context, workflowID, leadID string, targets []string) {
	if len(targets) == 0 {
		return
	}

	ctx = context.WithValue(ctx, hopsKey{}, hopsFrom(ctx)+1)

	if len(targets) == 1 {
		e.ExecuteNode(ctx, workflowID, targets[0], leadID)

		return
	}

	var wg sync.WaitGroup

	for _, target := range targets {
		wg.Add(1)

		go func() {
			defer wg.Done()

			e.ExecuteNode(ctx, workflowID, target, leadID)
		}()
	}

	wg.Wait()
}

// record appends the visit to the execution history.
func (e *Engine) record(ctx context.Context, v *visit, status models.VisitStatus, detail string, execution models.ExecutionStatus) {
	entry := models.HistoryEntry{
		NodeID:    v.nodeID,
		Timestamp: e.clock.Now().UTC(),
		Status:    status,
		Detail:    detail,
	}

	if v.node != nil {
		entry.NodeType = v.node.Type
	}

	err := e.states.Upsert(ctx, v.workflow.ID, v.leadID, entry, execution)
	if err != nil {
		v.logger.ErrorContext(ctx, "failed to record node visit", "error", err)
	}

	e.publish(ctx, v.workflow.ID, events.NodeVisited{
		BaseEvent: e.baseEvent(events.NodeVisitedEvent, v.workflow.ID, v.leadID),
		NodeID:    entry.NodeID,
		NodeType:  entry.NodeType,
		Status:    status,
		Detail:    detail,
	})
}

// fail ends the branch on an engine error.
func (e *Engine) fail(ctx context.Context, v *visit, err error) {
	v.logger.ErrorContext(ctx, "branch failed", "error", err)

	e.audit(ctx, v, models.LogTypeEngine, err)
	e.record(ctx, v, models.VisitFailed, err.Error(), models.ExecutionStatusFailed)
}

// audit appends a FAILED entry to the action log.
func (e *Engine) audit(ctx context.Context, v *visit, kind string, cause error) {
	id, err := uuid.NewV7()
	if err != nil {
		v.logger.ErrorContext(ctx, "failed to generate action log ID", "error", err)

		return
	}

	err = e.logs.Append(ctx, &models.ActionLogEntry{
		ID:         id.String(),
		WorkflowID: v.workflow.ID,
		NodeID:     v.nodeID,
		LeadID:     v.leadID,
		ActionType: kind,
		Status:     models.LogStatusFailed,
		Error:      cause.Error(),
		Timestamp:  e.clock.Now().UTC(),
	})
	if err != nil {
		v.logger.ErrorContext(ctx, "failed to append action log entry", "error", err)
	}
}

func (e *Engine) variables(ctx context.Context, v *visit) map[string]any {
	state, err := e.states.Get(ctx, v.workflow.ID, v.leadID)
	if err != nil {
		if !persistence.IsExecutionStateNotFound(err) {
			v.logger.ErrorContext(ctx, "failed to load run variables", "error", err)
		}

		return map[string]any{}
	}

	if state.Variables == nil {
		return map[string]any{}
	}

	return state.Variables
}

func (e *Engine) latestEmail(ctx context.Context, v *visit) *models.Email {
	if v.leadID == "" {
		return nil
	}

	email, err := e.emails.LatestByLead(ctx, v.leadID)
	if err != nil {
		if !errors.Is(err, persistence.ErrEmailNotFound) {
			v.logger.ErrorContext(ctx, "failed to load latest email", "error", err)
		}

		return nil
	}

	return email
}

func eventTimestamp(variables map[string]any) (time.Time, bool) {
	switch value := variables[eventTimestampKey].(type) {
	case time.Time:
		return value, true
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, value)

		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}
