// Package persistencetest holds the behaviour every persistence backend must share.
package persistencetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty backend for one subtest.
type Factory func(t *testing.T) persistence.Persistence

// Run exercises every repository of the backend built by factory.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("workflows", func(t *testing.T) { testWorkflows(t, factory(t)) })
	t.Run("execution state begin", func(t *testing.T) { testExecutionStateBegin(t, factory(t)) })
	t.Run("execution state concurrent appends", func(t *testing.T) { testConcurrentAppends(t, factory(t)) })
	t.Run("execution state variables", func(t *testing.T) { testMergeVariables(t, factory(t)) })
	t.Run("action log", func(t *testing.T) { testActionLog(t, factory(t)) })
	t.Run("leads", func(t *testing.T) { testLeads(t, factory(t)) })
	t.Run("lead copies", func(t *testing.T) { testLeadCopies(t, factory(t)) })
	t.Run("emails", func(t *testing.T) { testEmails(t, factory(t)) })
	t.Run("records", func(t *testing.T) { testRecords(t, factory(t)) })
}

// Timestamp returns a UTC time with the precision every backend keeps.
func Timestamp(offset time.Duration) time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Add(offset).Truncate(time.Microsecond)
}

// Workflow builds a minimal active workflow with one trigger of triggerType.
func Workflow(id string, triggerType models.TriggerType, active bool) *models.Workflow {
	return &models.Workflow{
		ID:       id,
		Name:     "Workflow " + id,
		IsActive: active,
		Nodes: []*models.WorkflowNode{
			{ID: "trigger", Type: models.NodeTypeTrigger, Data: &models.TriggerData{TriggerType: triggerType}},
			{
				ID:   "action",
				Type: models.NodeTypeAction,
				Data: &models.ActionData{
					ActionType: models.ActionSendEmail,
					Config:     &models.SendEmailConfig{Subject: "Hi", Body: "Hello {{lead.name}}"},
				},
			},
			{ID: "end", Type: models.NodeTypeEnd, Data: &models.EndData{}},
		},
		Edges: []*models.WorkflowEdge{
			{ID: "e1", Source: "trigger", Target: "action"},
			{ID: "e2", Source: "action", Target: "end"},
		},
	}
}

func testWorkflows(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	repo := p.WorkflowRepository()

	_, err := repo.GetByID(ctx, "11111111-1111-1111-1111-111111111111")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	created := Workflow("11111111-1111-1111-1111-111111111111", models.TriggerLeadCreated, true)
	require.NoError(t, repo.Save(ctx, created))
	require.NoError(t, repo.Save(ctx, Workflow("22222222-2222-2222-2222-222222222222", models.TriggerLeadCreated, false)))
	require.NoError(t, repo.Save(ctx, Workflow("33333333-3333-3333-3333-333333333333", models.TriggerEmailOpened, true)))

	loaded, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Name, loaded.Name)
	require.Len(t, loaded.Nodes, 3)

	action, ok := loaded.Nodes[1].Data.(*models.ActionData)
	require.True(t, ok)
	assert.Equal(t, &models.SendEmailConfig{Subject: "Hi", Body: "Hello {{lead.name}}"}, action.Config)

	matches, err := repo.ListActiveWithTrigger(ctx, models.TriggerLeadCreated)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, created.ID, matches[0].ID)

	none, err := repo.ListActiveWithTrigger(ctx, models.TriggerManual)
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	require.NoError(t, repo.Delete(ctx, created.ID))

	_, err = repo.GetByID(ctx, created.ID)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func testExecutionStateBegin(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	repo := p.ExecutionStateRepository()

	_, err := repo.Get(ctx, "wf", "lead")
	assert.True(t, persistence.IsExecutionStateNotFound(err))

	started, err := repo.Begin(ctx, models.ExecutionStart{
		WorkflowID: "wf",
		LeadID:     "lead",
		Variables:  map[string]any{"leadId": "lead", "source": "first"},
		Policy:     models.ReentryOverwrite,
		StartedAt:  Timestamp(0),
	})
	require.NoError(t, err)
	assert.True(t, started)

	entry := models.HistoryEntry{NodeID: "d1", NodeType: models.NodeTypeDelay, Timestamp: Timestamp(time.Second), Status: models.VisitWaiting}
	require.NoError(t, repo.Upsert(ctx, "wf", "lead", entry, models.ExecutionStatusWaiting))

	started, err = repo.Begin(ctx, models.ExecutionStart{
		WorkflowID: "wf",
		LeadID:     "lead",
		Variables:  map[string]any{"source": "second"},
		Policy:     models.ReentrySkipActive,
		StartedAt:  Timestamp(2 * time.Second),
	})
	require.NoError(t, err)
	assert.False(t, started, "a waiting run is not restarted under skip-active")

	started, err = repo.Begin(ctx, models.ExecutionStart{
		WorkflowID: "wf",
		LeadID:     "lead",
		Variables:  map[string]any{"source": "third"},
		Policy:     models.ReentryOverwrite,
		StartedAt:  Timestamp(3 * time.Second),
	})
	require.NoError(t, err)
	assert.True(t, started)

	state, err := repo.Get(ctx, "wf", "lead")
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusRunning, state.Status)
	assert.Equal(t, "d1", state.CurrentNode)
	assert.Equal(t, map[string]any{"source": "third"}, state.Variables)
	require.Len(t, state.History, 1, "overwriting keeps the history")
	assert.Equal(t, entry.NodeID, state.History[0].NodeID)
	assert.True(t, entry.Timestamp.Equal(state.History[0].Timestamp))

	states, err := repo.ListByWorkflow(ctx, "wf")
	require.NoError(t, err)
	assert.Len(t, states, 1)
}

func testConcurrentAppends(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	repo := p.ExecutionStateRepository()

	_, err := repo.Begin(ctx, models.ExecutionStart{WorkflowID: "wf", LeadID: "lead", Policy: models.ReentryOverwrite, StartedAt: Timestamp(0)})
	require.NoError(t, err)

	const branches = 20

	var wg sync.WaitGroup

	for i := range branches {
		wg.Add(1)

		go func() {
			defer wg.Done()

			entry := models.HistoryEntry{
				NodeID:    fmt.Sprintf("node-%d", i),
				NodeType:  models.NodeTypeAction,
				Timestamp: Timestamp(time.Duration(i) * time.Millisecond),
				Status:    models.VisitSuccess,
			}
			assert.NoError(t, repo.Upsert(ctx, "wf", "lead", entry, ""))
		}()
	}

	wg.Wait()

	state, err := repo.Get(ctx, "wf", "lead")
	require.NoError(t, err)
	assert.Len(t, state.History, branches)
	assert.Equal(t, models.ExecutionStatusRunning, state.Status)

	seen := make(map[string]bool)
	for _, entry := range state.History {
		seen[entry.NodeID] = true
	}

	assert.Len(t, seen, branches)
}

func testMergeVariables(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	repo := p.ExecutionStateRepository()

	err := repo.MergeVariables(ctx, "wf", "missing", map[string]any{"a": "b"}, Timestamp(0))
	assert.True(t, persistence.IsExecutionStateNotFound(err))

	_, err = repo.Begin(ctx, models.ExecutionStart{
		WorkflowID: "wf",
		LeadID:     "lead",
		Variables:  map[string]any{"leadId": "lead", "category": "NEW"},
		Policy:     models.ReentryOverwrite,
		StartedAt:  Timestamp(0),
	})
	require.NoError(t, err)

	require.NoError(t, repo.MergeVariables(ctx, "wf", "lead",
		map[string]any{"category": "HOT", "reason": "pricing"}, Timestamp(time.Minute)))

	state, err := repo.Get(ctx, "wf", "lead")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"leadId": "lead", "category": "HOT", "reason": "pricing"}, state.Variables)
	assert.True(t, Timestamp(time.Minute).Equal(state.UpdatedAt), "merging stamps the given time")
}

func testActionLog(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	repo := p.ActionLogRepository()

	for i, status := range []models.LogStatus{models.LogStatusSuccess, models.LogStatusFailed, models.LogStatusSuccess} {
		entry := &models.ActionLogEntry{
			ID:         fmt.Sprintf("00000000-0000-0000-0000-00000000000%d", i),
			WorkflowID: "wf",
			NodeID:     fmt.Sprintf("a%d", i),
			LeadID:     "lead",
			ActionType: string(models.ActionSendEmail),
			Data:       map[string]any{"subject": "Hi"},
			Status:     status,
			Timestamp:  Timestamp(time.Duration(i) * time.Second),
		}
		if status == models.LogStatusFailed {
			entry.Error = "smtp unavailable"
		}

		require.NoError(t, repo.Append(ctx, entry))
	}

	require.NoError(t, repo.Append(ctx, &models.ActionLogEntry{
		ID:         "00000000-0000-0000-0000-000000000009",
		WorkflowID: "other",
		NodeID:     "x",
		LeadID:     "lead-2",
		ActionType: models.LogTypeEngine,
		Status:     models.LogStatusFailed,
		Error:      "node not found",
		Timestamp:  Timestamp(0),
	}))

	entries, err := repo.ListByWorkflow(ctx, "wf")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"a0", "a1", "a2"}, []string{entries[0].NodeID, entries[1].NodeID, entries[2].NodeID})
	assert.Equal(t, "smtp unavailable", entries[1].Error)
	assert.Equal(t, "Hi", entries[0].Data["subject"])

	byLead, err := repo.ListByLead(ctx, "lead-2")
	require.NoError(t, err)
	require.Len(t, byLead, 1)
	assert.Equal(t, models.LogTypeEngine, byLead[0].ActionType)
}

func testLeads(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	repo := p.LeadRepository()

	_, err := repo.Get(ctx, "missing")
	assert.True(t, persistence.IsLeadNotFound(err))

	_, err = repo.Update(ctx, "missing", models.LeadUpdate{})
	assert.True(t, persistence.IsLeadNotFound(err))

	lead := &models.Lead{
		ID:           "lead-1",
		Name:         "Ada Lovelace",
		Email:        "ada@example.com",
		Status:       "NEW",
		Score:        10,
		Tags:         []string{"inbound"},
		CustomFields: map[string]any{"industry": "saas"},
		CreatedAt:    Timestamp(0),
		UpdatedAt:    Timestamp(0),
	}
	require.NoError(t, repo.Save(ctx, lead))

	status := "QUALIFIED"

	updated, err := repo.Update(ctx, "lead-1", models.LeadUpdate{
		Status:       &status,
		CustomFields: map[string]any{"source": "webinar"},
	})
	require.NoError(t, err)
	assert.Equal(t, "QUALIFIED", updated.Status)
	assert.Equal(t, 10, updated.Score)

	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := repo.Update(ctx, "lead-1", models.LeadUpdate{CustomFields: map[string]any{fmt.Sprintf("field%d", i): "set"}})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	loaded, err := repo.Get(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "saas", loaded.CustomFields["industry"])
	assert.Equal(t, "webinar", loaded.CustomFields["source"])

	for i := range 10 {
		assert.Equal(t, "set", loaded.CustomFields[fmt.Sprintf("field%d", i)], "concurrent merges are not lost")
	}

	assert.Equal(t, []string{"inbound"}, loaded.Tags)
}

func testLeadCopies(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	repo := p.LeadRepository()

	profile := map[string]any{"tier": "gold"}
	lead := &models.Lead{
		ID:           "lead-1",
		Name:         "Ada Lovelace",
		CustomFields: map[string]any{"profile": profile},
		CreatedAt:    Timestamp(0),
		UpdatedAt:    Timestamp(0),
	}
	require.NoError(t, repo.Save(ctx, lead))

	profile["tier"] = "bronze"

	snapshot, err := repo.Get(ctx, "lead-1")
	require.NoError(t, err)

	tier, ok := snapshot.Field("customFields.profile.tier")
	require.True(t, ok)
	assert.Equal(t, "gold", tier, "saving copies the caller's nested fields")

	update := map[string]any{"tier": "silver"}

	_, err = repo.Update(ctx, "lead-1", models.LeadUpdate{
		CustomFields: map[string]any{"profile": update, "plan": map[string]any{"name": "pro"}},
	})
	require.NoError(t, err)

	tier, _ = snapshot.Field("customFields.profile.tier")
	assert.Equal(t, "gold", tier, "an earlier copy does not see the update")

	update["tier"] = "platinum"

	current, err := repo.Get(ctx, "lead-1")
	require.NoError(t, err)

	tier, _ = current.Field("customFields.profile.tier")
	assert.Equal(t, "silver", tier)

	plan, _ := current.Field("customFields.plan.name")
	assert.Equal(t, "pro", plan)
}

func testEmails(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()
	repo := p.EmailRepository()

	_, err := repo.LatestByLead(ctx, "lead-1")
	assert.True(t, persistence.IsEmailNotFound(err))

	older := &models.Email{ID: "e1", LeadID: "lead-1", Direction: models.EmailInbound, Subject: "Old", SentAt: Timestamp(0)}
	newer := &models.Email{ID: "e2", LeadID: "lead-1", Direction: models.EmailInbound, Subject: "New", SentAt: Timestamp(time.Hour)}
	other := &models.Email{ID: "e3", LeadID: "lead-2", Direction: models.EmailInbound, Subject: "Other", SentAt: Timestamp(2 * time.Hour)}

	for _, email := range []*models.Email{newer, older, other} {
		require.NoError(t, repo.Save(ctx, email))
	}

	latest, err := repo.LatestByLead(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "New", latest.Subject)

	sameInstantA := &models.Email{ID: "e5", LeadID: "lead-3", Direction: models.EmailOutbound, Subject: "Reply", SentAt: Timestamp(0)}
	sameInstantB := &models.Email{ID: "e4", LeadID: "lead-3", Direction: models.EmailInbound, Subject: "Question", SentAt: Timestamp(0)}

	for _, email := range []*models.Email{sameInstantA, sameInstantB} {
		require.NoError(t, repo.Save(ctx, email))
	}

	for range 5 {
		latest, err = repo.LatestByLead(ctx, "lead-3")
		require.NoError(t, err)
		assert.Equal(t, "e5", latest.ID, "equal send times fall back to the id")
	}

	loaded, err := repo.Get(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Old", loaded.Subject)

	_, err = repo.Get(ctx, "nope")
	assert.True(t, persistence.IsEmailNotFound(err))
}

func testRecords(t *testing.T, p persistence.Persistence) {
	ctx := context.Background()

	task := &models.Task{LeadID: "lead-1", WorkflowID: "wf", Title: "Call", Priority: "HIGH", DueAt: Timestamp(24 * time.Hour), CreatedAt: Timestamp(0)}
	require.NoError(t, p.TaskRepository().Create(ctx, task))
	assert.NotEmpty(t, task.ID)

	tasks, err := p.TaskRepository().ListByLead(ctx, "lead-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Call", tasks[0].Title)

	appointment := &models.Appointment{LeadID: "lead-1", WorkflowID: "wf", Title: "Demo", StartAt: Timestamp(time.Hour), EndAt: Timestamp(2 * time.Hour), CreatedAt: Timestamp(0)}
	require.NoError(t, p.AppointmentRepository().Create(ctx, appointment))

	appointments, err := p.AppointmentRepository().ListByLead(ctx, "lead-1")
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	assert.True(t, appointment.StartAt.Equal(appointments[0].StartAt))

	notification := &models.Notification{UserID: "user-1", LeadID: "lead-1", WorkflowID: "wf", Title: "Hot lead", Message: "Call now", Type: "info", CreatedAt: Timestamp(0)}
	require.NoError(t, p.NotificationRepository().Create(ctx, notification))

	notifications, err := p.NotificationRepository().ListByUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "Hot lead", notifications[0].Title)

	require.NoError(t, p.HealthCheck(ctx))
}
