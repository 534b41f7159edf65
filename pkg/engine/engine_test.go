package engine

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dukex/leadflow/pkg/actions"
	"github.com/dukex/leadflow/pkg/condition"
	"github.com/dukex/leadflow/pkg/eventbus"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/mocks"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/otelhelper"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/persistence/memory"
	"github.com/dukex/leadflow/pkg/providers/dev"
	"github.com/dukex/leadflow/pkg/scheduler"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var start = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]events.EventType, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.GetType())
	}

	return types
}

type harness struct {
	store     *memory.Persistence
	clock     *clockwork.FakeClock
	delays    *scheduler.TimerScheduler
	executor  *actions.Executor
	publisher *recordingPublisher
	engine    *Engine
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()

	logger := slog.Default()
	store := memory.NewPersistence()
	clock := clockwork.NewFakeClockAt(start)
	delays := scheduler.NewTimerScheduler(logger, clock)
	publisher := &recordingPublisher{}

	executor := actions.NewExecutor(logger, clock, store, actions.Collaborators{
		EmailSender:      dev.NewLogEmailSender(logger),
		ContentGenerator: dev.NewTemplateGenerator(),
		EmailAnalyzer:    dev.NewKeywordAnalyzer(store.EmailRepository()),
	})

	opts = append([]Option{WithPublisher(publisher)}, opts...)
	e := New(logger, clock, store, condition.NewEvaluator(logger, clock), executor, delays, opts...)

	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() { _ = delays.Close(context.Background()) })

	return &harness{
		store:     store,
		clock:     clock,
		delays:    delays,
		executor:  executor,
		publisher: publisher,
		engine:    e,
	}
}

func (h *harness) lead(t *testing.T, id, status string) {
	t.Helper()

	require.NoError(t, h.store.LeadRepository().Save(context.Background(), &models.Lead{
		ID:      id,
		Name:    "Ada Lovelace",
		Email:   id + "@example.com",
		Status:  status,
		OwnerID: "user-1",
	}))
}

func (h *harness) workflow(t *testing.T, workflow *models.Workflow) {
	t.Helper()

	require.NoError(t, h.store.WorkflowRepository().Save(context.Background(), workflow))
}

func (h *harness) state(t *testing.T, workflowID, leadID string) *models.ExecutionState {
	t.Helper()

	state, err := h.store.ExecutionStateRepository().Get(context.Background(), workflowID, leadID)
	require.NoError(t, err)

	return state
}

func (h *harness) logs(t *testing.T, workflowID string) []*models.ActionLogEntry {
	t.Helper()

	entries, err := h.store.ActionLogRepository().ListByWorkflow(context.Background(), workflowID)
	require.NoError(t, err)

	return entries
}

func (h *harness) tasks(t *testing.T, leadID string) []*models.Task {
	t.Helper()

	tasks, err := h.store.TaskRepository().ListByLead(context.Background(), leadID)
	require.NoError(t, err)

	return tasks
}

func node(id string, data models.NodeData) *models.WorkflowNode {
	return &models.WorkflowNode{ID: id, Type: data.NodeType(), Data: data}
}

func edge(source, target string) *models.WorkflowEdge {
	return &models.WorkflowEdge{ID: source + "-" + target, Source: source, Target: target}
}

func branch(source, target string, condition bool) *models.WorkflowEdge {
	e := edge(source, target)
	e.Condition = &condition

	return e
}

func trigger(triggerType models.TriggerType) *models.TriggerData {
	return &models.TriggerData{TriggerType: triggerType}
}

func task(title string) *models.ActionData {
	return &models.ActionData{ActionType: models.ActionCreateTask, Config: &models.CreateTaskConfig{Title: title}}
}

func visited(state *models.ExecutionState) []string {
	ids := make([]string, 0, len(state.History))
	for _, entry := range state.History {
		ids = append(ids, entry.NodeID)
	}

	return ids
}

// Trigger(LEAD_CREATED) -> Condition(status equals NEW) -> [true: SendEmail -> End] [false: End]
func welcomeWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:       "wf-welcome",
		Name:     "Welcome",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			node("t1", trigger(models.TriggerLeadCreated)),
			node("c1", &models.ConditionData{
				ConditionType: models.ConditionLeadProperty,
				Property:      "status",
				Operator:      models.OperatorEquals,
				Value:         "NEW",
			}),
			node("a1", &models.ActionData{
				ActionType: models.ActionSendEmail,
				Config:     &models.SendEmailConfig{Subject: "Welcome {{lead.firstName}}", Body: "Hello"},
			}),
			node("e1", &models.EndData{}),
			node("e2", &models.EndData{}),
		},
		Edges: []*models.WorkflowEdge{
			edge("t1", "c1"),
			branch("c1", "a1", true),
			branch("c1", "e2", false),
			edge("a1", "e1"),
		},
	}
}

func TestDispatch_ConditionTrueSendsEmail(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")
	h.workflow(t, welcomeWorkflow())

	started, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{"leadId": "lead-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, started)

	logs := h.logs(t, "wf-welcome")
	require.Len(t, logs, 1)
	assert.Equal(t, string(models.ActionSendEmail), logs[0].ActionType)
	assert.Equal(t, models.LogStatusSuccess, logs[0].Status)

	state := h.state(t, "wf-welcome", "lead-1")
	assert.Equal(t, []string{"t1", "c1", "a1", "e1"}, visited(state))
	assert.Equal(t, "true", state.History[1].Detail)
	assert.Equal(t, "e1", state.CurrentNode)
	assert.Equal(t, models.ExecutionStatusCompleted, state.Status)
	assert.Equal(t, "lead-1@example.com", state.Variables["lastEmailTo"])

	assert.Contains(t, h.publisher.types(), events.WorkflowCompletedEvent)
}

func TestDispatch_ConditionFalseSkipsAction(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-2", "QUALIFIED")
	h.workflow(t, welcomeWorkflow())

	_, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{"leadId": "lead-2"})
	require.NoError(t, err)

	assert.Empty(t, h.logs(t, "wf-welcome"))

	state := h.state(t, "wf-welcome", "lead-2")
	assert.Equal(t, []string{"t1", "c1", "e2"}, visited(state))
	assert.Equal(t, "false", state.History[1].Detail)
}

func TestExecuteNode_ConditionFollowsMatchingAndUnconditionalEdges(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")
	h.workflow(t, &models.Workflow{
		ID:       "wf-edges",
		Name:     "Edges",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			node("t1", trigger(models.TriggerLeadUpdated)),
			node("c1", &models.ConditionData{
				ConditionType: models.ConditionLeadProperty,
				Property:      "status",
				Operator:      models.OperatorEquals,
				Value:         "NEW",
			}),
			node("yes", task("yes")),
			node("no", task("no")),
			node("always", task("always")),
		},
		Edges: []*models.WorkflowEdge{
			edge("t1", "c1"),
			branch("c1", "yes", true),
			branch("c1", "no", false),
			edge("c1", "always"),
		},
	})

	_, err := h.engine.Dispatch(context.Background(), models.TriggerLeadUpdated, map[string]any{"leadId": "lead-1"})
	require.NoError(t, err)

	titles := make([]string, 0)
	for _, created := range h.tasks(t, "lead-1") {
		titles = append(titles, created.Title)
	}

	assert.ElementsMatch(t, []string{"yes", "always"}, titles)
	assert.NotContains(t, visited(h.state(t, "wf-edges", "lead-1")), "no")
}

func TestExecuteNode_ConditionErrorTakesFalseBranch(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")
	h.workflow(t, &models.Workflow{
		ID:       "wf-broken-condition",
		Name:     "Broken condition",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			node("t1", trigger(models.TriggerLeadCreated)),
			node("c1", &models.ConditionData{
				ConditionType: models.ConditionLeadProperty,
				Property:      "status",
				Operator:      "matches",
				Value:         "NEW",
			}),
			node("yes", task("yes")),
			node("no", task("no")),
		},
		Edges: []*models.WorkflowEdge{
			edge("t1", "c1"),
			branch("c1", "yes", true),
			branch("c1", "no", false),
		},
	})

	_, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{"leadId": "lead-1"})
	require.NoError(t, err)

	state := h.state(t, "wf-broken-condition", "lead-1")
	assert.Equal(t, []string{"t1", "c1", "no"}, visited(state))
	assert.Equal(t, models.VisitFailed, state.History[1].Status)
	assert.Contains(t, state.History[1].Detail, "false: ")

	logs := h.logs(t, "wf-broken-condition")
	require.Len(t, logs, 2)
	assert.Equal(t, models.LogTypeCondition, logs[0].ActionType)
	assert.Equal(t, models.LogStatusFailed, logs[0].Status)
}

func TestExecuteNode_FailedActionHaltsBranch(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")
	h.workflow(t, &models.Workflow{
		ID:       "wf-halt",
		Name:     "Halt",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			node("t1", trigger(models.TriggerLeadCreated)),
			node("a1", task("")),
			node("a2", task("never")),
		},
		Edges: []*models.WorkflowEdge{edge("t1", "a1"), edge("a1", "a2")},
	})

	_, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{"leadId": "lead-1"})
	require.NoError(t, err)

	state := h.state(t, "wf-halt", "lead-1")
	assert.Equal(t, []string{"t1", "a1"}, visited(state))
	assert.Equal(t, models.VisitFailed, state.History[1].Status)
	assert.Equal(t, models.ExecutionStatusFailed, state.Status)
	assert.Empty(t, h.tasks(t, "lead-1"))

	logs := h.logs(t, "wf-halt")
	require.Len(t, logs, 1)
	assert.Equal(t, models.LogStatusFailed, logs[0].Status)
	assert.Contains(t, h.publisher.types(), events.ActionFailedEvent)
}

func delayWorkflow(duration int64) *models.Workflow {
	return &models.Workflow{
		ID:       "wf-delay",
		Name:     "Delayed follow-up",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			node("t1", trigger(models.TriggerLeadCreated)),
			node("a1", task("first")),
			node("d1", &models.DelayData{Duration: duration, DelayType: models.DelayFixed}),
			node("a2", task("second")),
		},
		Edges: []*models.WorkflowEdge{edge("t1", "a1"), edge("a1", "d1"), edge("d1", "a2")},
	}
}

func TestExecuteNode_DelaySuspendsUntilClockAdvances(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")
	h.workflow(t, delayWorkflow(2))

	_, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{"leadId": "lead-1"})
	require.NoError(t, err)

	require.Len(t, h.logs(t, "wf-delay"), 1)

	state := h.state(t, "wf-delay", "lead-1")
	assert.Equal(t, models.ExecutionStatusWaiting, state.Status)
	assert.Equal(t, "d1", state.CurrentNode)
	assert.Equal(t, 1, h.delays.Pending())

	h.clock.Advance(1999 * time.Millisecond)
	assert.Never(t, func() bool { return len(h.logs(t, "wf-delay")) > 1 }, 100*time.Millisecond, 10*time.Millisecond)

	h.clock.Advance(time.Millisecond)
	assert.Eventually(t, func() bool { return len(h.logs(t, "wf-delay")) == 2 }, time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return h.state(t, "wf-delay", "lead-1").CurrentNode == "a2"
	}, time.Second, 10*time.Millisecond)
}

func TestExecuteNode_ZeroDelayContinuesSynchronously(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")
	h.workflow(t, delayWorkflow(0))

	_, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{"leadId": "lead-1"})
	require.NoError(t, err)

	assert.Len(t, h.logs(t, "wf-delay"), 2)
	assert.Zero(t, h.delays.Pending())
	assert.Equal(t, []string{"t1", "a1", "d1", "a2"}, visited(h.state(t, "wf-delay", "lead-1")))
}

func TestExecuteNode_RelativeDelayDiscountsElapsedTime(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")

	workflow := delayWorkflow(60)
	workflow.Nodes[2].Data = &models.DelayData{Duration: 60, DelayType: models.DelayRelativeToEvent}
	h.workflow(t, workflow)

	_, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{
		"leadId":         "lead-1",
		"eventTimestamp": start.Add(-2 * time.Minute).Format(time.RFC3339Nano),
	})
	require.NoError(t, err)

	assert.Len(t, h.logs(t, "wf-delay"), 2, "the event is older than the delay")
	assert.Zero(t, h.delays.Pending())
}

func TestExecuteNode_DeactivatedWorkflowStopsDelayedBranch(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")

	workflow := delayWorkflow(2)
	h.workflow(t, workflow)

	_, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{"leadId": "lead-1"})
	require.NoError(t, err)

	workflow.IsActive = false
	h.workflow(t, workflow)

	h.clock.Advance(2 * time.Second)

	assert.Eventually(t, func() bool { return h.delays.Pending() == 0 }, time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return len(h.logs(t, "wf-delay")) > 1 }, 100*time.Millisecond, 10*time.Millisecond)
	assert.Equal(t, "d1", h.state(t, "wf-delay", "lead-1").CurrentNode)
}

func TestDispatch_TwiceAppendsToOneState(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")
	h.workflow(t, welcomeWorkflow())

	payload := map[string]any{"leadId": "lead-1"}

	_, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, payload)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)

	_, err = h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, payload)
	require.NoError(t, err)

	states, err := h.store.ExecutionStateRepository().ListByWorkflow(context.Background(), "wf-welcome")
	require.NoError(t, err)
	require.Len(t, states, 1)

	state := states[0]
	assert.Equal(t, "e1", state.CurrentNode)
	assert.Equal(t, []string{"t1", "c1", "a1", "e1", "t1", "c1", "a1", "e1"}, visited(state))

	for i := 1; i < len(state.History); i++ {
		assert.False(t, state.History[i].Timestamp.Before(state.History[i-1].Timestamp))
	}

	assert.True(t, state.History[4].Timestamp.After(state.History[3].Timestamp))
}

func TestDispatch_SkipActiveKeepsWaitingRun(t *testing.T) {
	h := newHarness(t, WithReentryPolicy(models.ReentrySkipActive))
	h.lead(t, "lead-1", "NEW")
	h.workflow(t, delayWorkflow(60))

	payload := map[string]any{"leadId": "lead-1"}

	started, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, payload)
	require.NoError(t, err)
	assert.Equal(t, 1, started)

	started, err = h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, payload)
	require.NoError(t, err)
	assert.Zero(t, started)

	assert.Len(t, h.logs(t, "wf-delay"), 1)
	assert.Len(t, h.state(t, "wf-delay", "lead-1").History, 3)
}

func TestDispatch_SplitBranchesKeepEveryHistoryEntry(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")

	const arms = 20

	workflow := &models.Workflow{
		ID:       "wf-split",
		Name:     "Split",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			node("t1", trigger(models.TriggerLeadCreated)),
			node("s1", &models.SplitData{}),
		},
		Edges: []*models.WorkflowEdge{edge("t1", "s1")},
	}

	for i := range arms {
		id := "arm-" + string(rune('a'+i))
		workflow.Nodes = append(workflow.Nodes, node(id, task(id)))
		workflow.Edges = append(workflow.Edges, edge("s1", id))
	}

	h.workflow(t, workflow)

	_, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{"leadId": "lead-1"})
	require.NoError(t, err)

	state := h.state(t, "wf-split", "lead-1")
	assert.Len(t, state.History, arms+2)
	assert.Len(t, h.tasks(t, "lead-1"), arms)
}

func TestDispatch_PanickingArmDoesNotStopSiblings(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")
	h.executor.Register(models.ActionNotifyUser, actions.HandlerFunc(
		func(context.Context, actions.Request, models.ActionConfig) (map[string]any, error) {
			panic("notification service exploded")
		}))

	h.workflow(t, &models.Workflow{
		ID:       "wf-panic",
		Name:     "Panic",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			node("t1", trigger(models.TriggerLeadCreated)),
			node("s1", &models.SplitData{}),
			node("boom", &models.ActionData{ActionType: models.ActionNotifyUser, Config: &models.NotifyUserConfig{Title: "x"}}),
			node("fine", task("fine")),
		},
		Edges: []*models.WorkflowEdge{edge("t1", "s1"), edge("s1", "boom"), edge("s1", "fine")},
	})

	_, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{"leadId": "lead-1"})
	require.NoError(t, err)

	assert.Len(t, h.tasks(t, "lead-1"), 1)

	statuses := map[string]models.LogStatus{}
	for _, entry := range h.logs(t, "wf-panic") {
		statuses[entry.NodeID] = entry.Status
	}

	assert.Equal(t, models.LogStatusFailed, statuses["boom"])
	assert.Equal(t, models.LogStatusSuccess, statuses["fine"])
}

func TestExecuteNode_MissingNodeIsRecorded(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")
	h.workflow(t, &models.Workflow{
		ID:       "wf-dangling",
		Name:     "Dangling",
		IsActive: true,
		Nodes:    []*models.WorkflowNode{node("t1", trigger(models.TriggerLeadCreated))},
		Edges:    []*models.WorkflowEdge{edge("t1", "ghost")},
	})

	_, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{"leadId": "lead-1"})
	require.NoError(t, err)

	state := h.state(t, "wf-dangling", "lead-1")
	assert.Equal(t, []string{"t1", "ghost"}, visited(state))
	assert.Equal(t, models.VisitFailed, state.History[1].Status)

	logs := h.logs(t, "wf-dangling")
	require.Len(t, logs, 1)
	assert.Equal(t, models.LogTypeEngine, logs[0].ActionType)
	assert.Contains(t, logs[0].Error, "node not found")
}

func TestExecuteNode_CycleIsBounded(t *testing.T) {
	h := newHarness(t, WithMaxHops(5))
	h.lead(t, "lead-1", "NEW")
	h.workflow(t, &models.Workflow{
		ID:       "wf-loop",
		Name:     "Loop",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			node("t1", trigger(models.TriggerLeadCreated)),
			node("a1", task("again")),
		},
		Edges: []*models.WorkflowEdge{edge("t1", "a1"), edge("a1", "a1")},
	})

	_, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{"leadId": "lead-1"})
	require.NoError(t, err)

	state := h.state(t, "wf-loop", "lead-1")
	assert.Equal(t, models.ExecutionStatusFailed, state.Status)
	assert.Len(t, h.tasks(t, "lead-1"), 4)
}

func TestDispatch_ScheduledTickStartsOnlyItsNode(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")
	h.workflow(t, &models.Workflow{
		ID:       "wf-sched",
		Name:     "Digests",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			node("daily", trigger(models.TriggerScheduled)),
			node("weekly", trigger(models.TriggerScheduled)),
			node("a1", task("daily digest")),
			node("a2", task("weekly review")),
		},
		Edges: []*models.WorkflowEdge{edge("daily", "a1"), edge("weekly", "a2")},
	})

	titles := func() []string {
		var titles []string
		for _, task := range h.tasks(t, "lead-1") {
			titles = append(titles, task.Title)
		}

		slices.Sort(titles)

		return titles
	}

	started, err := h.engine.Dispatch(context.Background(), models.TriggerScheduled, map[string]any{
		"leadId":     "lead-1",
		"workflowId": "wf-sched",
		"scheduleId": "wf-sched/daily",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, started)
	assert.Equal(t, []string{"daily digest"}, titles())

	_, err = h.engine.Dispatch(context.Background(), models.TriggerScheduled, map[string]any{
		"leadId":     "lead-1",
		"workflowId": "wf-sched",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"daily digest", "daily digest", "weekly review"}, titles(),
		"without a schedule id every scheduled trigger starts")
}

func TestExecuteNode_SpanCarriesNodeType(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	h := newHarness(t, WithTracer(provider.Tracer("test")))
	h.lead(t, "lead-1", "QUALIFIED")
	h.workflow(t, welcomeWorkflow())

	_, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{"leadId": "lead-1"})
	require.NoError(t, err)

	types := map[string]string{}

	for _, span := range recorder.Ended() {
		if span.Name() != "engine.execute_node" {
			continue
		}

		var nodeID, nodeType string

		for _, attr := range span.Attributes() {
			switch attr.Key {
			case otelhelper.NodeIDKey:
				nodeID = attr.Value.AsString()
			case otelhelper.NodeTypeKey:
				nodeType = attr.Value.AsString()
			}
		}

		types[nodeID] = nodeType
	}

	assert.Equal(t, map[string]string{"t1": "trigger", "c1": "condition", "e2": "end"}, types)
}

func TestDispatch_Validation(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Dispatch(context.Background(), "WEBHOOK", map[string]any{"leadId": "lead-1"})
	require.ErrorIs(t, err, ErrUnknownTriggerType)

	_, err = h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{})
	require.ErrorIs(t, err, ErrMissingLeadID)

	started, err := h.engine.Dispatch(context.Background(), models.TriggerScheduled, map[string]any{})
	require.NoError(t, err)
	assert.Zero(t, started)
}

func TestDispatch_IsolatesWorkflows(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")

	broken := &models.Workflow{
		ID:       "wf-a-broken",
		Name:     "Broken",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			node("t1", trigger(models.TriggerLeadCreated)),
			node("a1", &models.ActionData{ActionType: "SEND_FAX", DecodeError: `unknown action type "SEND_FAX"`}),
		},
		Edges: []*models.WorkflowEdge{edge("t1", "a1")},
	}
	h.workflow(t, broken)
	h.workflow(t, welcomeWorkflow())

	started, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{"leadId": "lead-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, started)

	assert.Equal(t, models.ExecutionStatusFailed, h.state(t, "wf-a-broken", "lead-1").Status)
	assert.Equal(t, models.ExecutionStatusCompleted, h.state(t, "wf-welcome", "lead-1").Status)
}

func TestTriggerManual(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")

	manual := &models.Workflow{
		ID:       "wf-manual",
		Name:     "Manual",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			node("t1", trigger(models.TriggerManual)),
			node("a1", task("called by hand")),
		},
		Edges: []*models.WorkflowEdge{edge("t1", "a1")},
	}
	h.workflow(t, manual)
	h.workflow(t, welcomeWorkflow())

	require.NoError(t, h.engine.TriggerManual(context.Background(), "wf-manual", "lead-1"))
	assert.Len(t, h.tasks(t, "lead-1"), 1)
	assert.Equal(t, "MANUAL", h.state(t, "wf-manual", "lead-1").Variables["triggerType"])

	err := h.engine.TriggerManual(context.Background(), "wf-welcome", "lead-1")
	require.ErrorIs(t, err, ErrNoManualTrigger)

	err = h.engine.TriggerManual(context.Background(), "wf-missing", "lead-1")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	manual.IsActive = false
	h.workflow(t, manual)

	err = h.engine.TriggerManual(context.Background(), "wf-manual", "lead-1")
	require.ErrorIs(t, err, ErrWorkflowInactive)
}

func TestDispatch_CategorizesInterestedLead(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")
	require.NoError(t, h.store.EmailRepository().Save(context.Background(), &models.Email{
		ID:        "email-1",
		LeadID:    "lead-1",
		Direction: models.EmailInbound,
		Subject:   "Re: our product",
		Body:      "We are very interested, please send pricing.",
		SentAt:    start.Add(-time.Hour),
	}))

	h.workflow(t, &models.Workflow{
		ID:       "wf-categorize",
		Name:     "Categorize replies",
		IsActive: true,
		Nodes: []*models.WorkflowNode{
			node("t1", trigger(models.TriggerEmailReceived)),
			node("a1", &models.ActionData{
				ActionType: models.ActionCategorizeLead,
				Config:     &models.CategorizeLeadConfig{AutoDetect: true},
			}),
			node("c1", &models.ConditionData{
				ConditionType: models.ConditionCustomField,
				Property:      "category",
				Operator:      models.OperatorEquals,
				Value:         "HOT",
			}),
			node("hot", task("call now")),
		},
		Edges: []*models.WorkflowEdge{edge("t1", "a1"), edge("a1", "c1"), branch("c1", "hot", true)},
	})

	_, err := h.engine.Dispatch(context.Background(), models.TriggerEmailReceived, map[string]any{"leadId": "lead-1"})
	require.NoError(t, err)

	state := h.state(t, "wf-categorize", "lead-1")
	assert.Equal(t, "HOT", state.Variables["category"])
	assert.Contains(t, state.Variables["categoryReason"], "interest keywords")
	assert.Equal(t, []string{"t1", "a1", "c1", "hot"}, visited(state))
	assert.Equal(t, start, state.UpdatedAt.UTC(), "every write follows the engine clock")
}

func TestDispatch_PublishesLifecycle(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")
	h.workflow(t, welcomeWorkflow())

	_, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{"leadId": "lead-1"})
	require.NoError(t, err)

	types := h.publisher.types()
	require.NotEmpty(t, types)
	assert.Equal(t, events.WorkflowStartedEvent, types[0])
	assert.Equal(t, events.WorkflowCompletedEvent, types[len(types)-1])
}

func TestDispatch_PublishFailureDoesNotStopRun(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, "wf-welcome", mock.Anything).Return(errors.New("broker down"))

	h := newHarness(t, WithPublisher(bus))
	h.lead(t, "lead-1", "NEW")
	h.workflow(t, welcomeWorkflow())

	_, err := h.engine.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{"leadId": "lead-1"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, h.state(t, "wf-welcome", "lead-1").Status)
	bus.AssertCalled(t, "Publish", mock.Anything, "wf-welcome", mock.AnythingOfType("events.WorkflowCompleted"))
}

func TestDispatch_StorageFailures(t *testing.T) {
	logger := slog.Default()
	clock := clockwork.NewFakeClockAt(start)
	store := mocks.NewMockPersistence(memory.NewPersistence())
	executor := actions.NewExecutor(logger, clock, store, actions.Collaborators{})
	delays := scheduler.NewTimerScheduler(logger, clock)

	e := New(logger, clock, store, condition.NewEvaluator(logger, clock), executor, delays)
	require.NoError(t, e.Start(context.Background()))
	t.Cleanup(func() { _ = delays.Close(context.Background()) })

	store.Workflows.On("ListActiveWithTrigger", mock.Anything, models.TriggerLeadCreated).
		Return(nil, errors.New("connection reset")).Once()

	_, err := e.Dispatch(context.Background(), models.TriggerLeadCreated, map[string]any{"leadId": "lead-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	store.Workflows.On("GetByID", mock.Anything, "wf-1").Return(nil, errors.New("connection reset"))

	e.ExecuteNode(context.Background(), "wf-1", "t1", "lead-1")

	_, err = store.ExecutionStateRepository().Get(context.Background(), "wf-1", "lead-1")
	assert.True(t, persistence.IsExecutionStateNotFound(err), "nothing is recorded without a workflow")

	err = e.TriggerManual(context.Background(), "wf-1", "lead-1")
	require.Error(t, err)

	store.Workflows.AssertExpectations(t)
}
