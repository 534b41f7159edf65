package actions

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dukex/leadflow/pkg/mocks"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence/memory"
	"github.com/dukex/leadflow/pkg/protocol"
	"github.com/dukex/leadflow/pkg/providers/dev"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Persistence
	executor *Executor
	lead     *models.Lead
}

func newFixture(t *testing.T, collaborators Collaborators) *fixture {
	t.Helper()

	store := memory.NewPersistence()

	if collaborators.EmailSender == nil {
		collaborators.EmailSender = dev.NewLogEmailSender(slog.Default())
	}

	if collaborators.ContentGenerator == nil {
		collaborators.ContentGenerator = dev.NewTemplateGenerator()
	}

	if collaborators.EmailAnalyzer == nil {
		collaborators.EmailAnalyzer = dev.NewKeywordAnalyzer(store.EmailRepository())
	}

	lead := &models.Lead{
		ID:           "lead-1",
		Name:         "Ada Lovelace",
		Email:        "ada@example.com",
		Status:       "NEW",
		Company:      "Analytical Engines",
		OwnerID:      "user-7",
		CustomFields: map[string]any{"plan": "pro"},
	}
	require.NoError(t, store.LeadRepository().Save(context.Background(), lead))

	return &fixture{
		store:    store,
		executor: NewExecutor(slog.Default(), clockwork.NewFakeClockAt(now), store, collaborators),
		lead:     lead,
	}
}

func (f *fixture) request(t *testing.T) Request {
	t.Helper()

	lead, err := f.store.LeadRepository().Get(context.Background(), f.lead.ID)
	require.NoError(t, err)

	return Request{
		WorkflowID: "wf-1",
		NodeID:     "a1",
		LeadID:     lead.ID,
		Lead:       lead,
		Variables:  map[string]any{"source": "webinar"},
	}
}

func (f *fixture) logs(t *testing.T) []*models.ActionLogEntry {
	t.Helper()

	entries, err := f.store.ActionLogRepository().ListByWorkflow(context.Background(), "wf-1")
	require.NoError(t, err)

	return entries
}

func TestExecutor_SendEmail(t *testing.T) {
	ctx := context.Background()
	sender := &mocks.MockEmailSender{}
	sender.On("Send", mock.Anything, "acc-1", "ada@example.com", "Hi Ada", "Thanks for joining the webinar, Analytical Engines").
		Return("msg-1", nil).Once()

	f := newFixture(t, Collaborators{EmailSender: sender})

	outcome := f.executor.Execute(ctx, f.request(t), &models.ActionData{
		ActionType: models.ActionSendEmail,
		Config: &models.SendEmailConfig{
			AccountID: "acc-1",
			Subject:   "Hi {{lead.firstName}}",
			Body:      "Thanks for joining the {{source}}, {{lead.company}}",
		},
	})

	require.True(t, outcome.Success, outcome.Err)
	assert.Equal(t, "msg-1", outcome.Output["lastMessageId"])
	sender.AssertExpectations(t)

	email, err := f.store.EmailRepository().LatestByLead(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, models.EmailOutbound, email.Direction)
	assert.Equal(t, "msg-1", email.MessageID)

	lead, err := f.store.LeadRepository().Get(ctx, "lead-1")
	require.NoError(t, err)
	require.NotNil(t, lead.LastContactedAt)
	assert.True(t, now.Equal(*lead.LastContactedAt))

	entries := f.logs(t)
	require.Len(t, entries, 1)
	assert.Equal(t, models.LogStatusSuccess, entries[0].Status)
	assert.Equal(t, "SEND_EMAIL", entries[0].ActionType)
	assert.Equal(t, "a1", entries[0].NodeID)
	assert.NotEmpty(t, entries[0].ID)
}

func TestExecutor_SendEmailFailureIsLogged(t *testing.T) {
	sender := &mocks.MockEmailSender{}
	sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("smtp unavailable"))

	f := newFixture(t, Collaborators{EmailSender: sender})

	outcome := f.executor.Execute(context.Background(), f.request(t), &models.ActionData{
		ActionType: models.ActionSendEmail,
		Config:     &models.SendEmailConfig{Subject: "Hi", Body: "Hello"},
	})

	assert.False(t, outcome.Success)
	require.Error(t, outcome.Err)

	entries := f.logs(t)
	require.Len(t, entries, 1)
	assert.Equal(t, models.LogStatusFailed, entries[0].Status)
	assert.Contains(t, entries[0].Error, "smtp unavailable")
}

func TestExecutor_InvalidConfigFailsClosed(t *testing.T) {
	f := newFixture(t, Collaborators{})

	testCases := []struct {
		name string
		data *models.ActionData
	}{
		{"decode error", &models.ActionData{ActionType: "SEND_FAX", DecodeError: `unknown action type "SEND_FAX"`}},
		{"missing config", &models.ActionData{ActionType: models.ActionCreateTask}},
		{"mismatched config", &models.ActionData{ActionType: models.ActionCreateTask, Config: &models.NotifyUserConfig{}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			outcome := f.executor.Execute(context.Background(), f.request(t), tc.data)
			assert.False(t, outcome.Success)
			assert.ErrorIs(t, outcome.Err, ErrInvalidConfig)
		})
	}

	entries := f.logs(t)
	require.Len(t, entries, 3)

	for _, entry := range entries {
		assert.Equal(t, models.LogStatusFailed, entry.Status)
	}
}

func TestExecutor_PanickingHandlerIsContained(t *testing.T) {
	f := newFixture(t, Collaborators{})
	f.executor.Register(models.ActionNotifyUser, HandlerFunc(
		func(context.Context, Request, models.ActionConfig) (map[string]any, error) {
			panic("boom")
		}))

	outcome := f.executor.Execute(context.Background(), f.request(t), &models.ActionData{
		ActionType: models.ActionNotifyUser,
		Config:     &models.NotifyUserConfig{UserID: "u1"},
	})

	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Err.Error(), "boom")
	require.Len(t, f.logs(t), 1)
}

func TestExecutor_UpdateLeadMergesCustomFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Collaborators{})

	status := "QUALIFIED"
	notes := "came from {{source}}"

	outcome := f.executor.Execute(ctx, f.request(t), &models.ActionData{
		ActionType: models.ActionUpdateLead,
		Config: &models.UpdateLeadConfig{
			Status:       &status,
			Notes:        &notes,
			CustomFields: map[string]any{"region": "EU"},
		},
	})
	require.True(t, outcome.Success, outcome.Err)

	lead, err := f.store.LeadRepository().Get(ctx, "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "QUALIFIED", lead.Status)
	assert.Equal(t, "came from webinar", lead.Notes)
	assert.Equal(t, map[string]any{"plan": "pro", "region": "EU"}, lead.CustomFields)
}

func TestExecutor_Records(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Collaborators{})

	outcome := f.executor.Execute(ctx, f.request(t), &models.ActionData{
		ActionType: models.ActionCreateTask,
		Config:     &models.CreateTaskConfig{Title: "Call {{lead.firstName}}", DueInDays: 2},
	})
	require.True(t, outcome.Success, outcome.Err)

	tasks, err := f.store.TaskRepository().ListByLead(ctx, "lead-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Call Ada", tasks[0].Title)
	assert.Equal(t, "MEDIUM", tasks[0].Priority)
	assert.Equal(t, "user-7", tasks[0].AssigneeID)
	assert.True(t, now.AddDate(0, 0, 2).Equal(tasks[0].DueAt))
	assert.Equal(t, tasks[0].ID, outcome.Output["taskId"])

	outcome = f.executor.Execute(ctx, f.request(t), &models.ActionData{
		ActionType: models.ActionCreateAppointment,
		Config:     &models.CreateAppointmentConfig{Title: "Demo", StartInHours: 24},
	})
	require.True(t, outcome.Success, outcome.Err)

	appointments, err := f.store.AppointmentRepository().ListByLead(ctx, "lead-1")
	require.NoError(t, err)
	require.Len(t, appointments, 1)
	assert.Equal(t, 30*time.Minute, appointments[0].EndAt.Sub(appointments[0].StartAt))

	outcome = f.executor.Execute(ctx, f.request(t), &models.ActionData{
		ActionType: models.ActionNotifyUser,
		Config:     &models.NotifyUserConfig{Title: "New lead", Message: "{{lead.name}} signed up"},
	})
	require.True(t, outcome.Success, outcome.Err)

	notifications, err := f.store.NotificationRepository().ListByUser(ctx, "user-7")
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "Ada Lovelace signed up", notifications[0].Message)
	assert.Equal(t, "WORKFLOW", notifications[0].Type)

	outcome = f.executor.Execute(ctx, f.request(t), &models.ActionData{
		ActionType: models.ActionCreateTask,
		Config:     &models.CreateTaskConfig{},
	})
	assert.ErrorIs(t, outcome.Err, ErrMissingTitle)

	assert.Len(t, f.logs(t), 4)
}

func TestExecutor_GenerateAIContentChainsIntoEmail(t *testing.T) {
	generator := &mocks.MockContentGenerator{}
	generator.On("Generate", mock.Anything, mock.Anything).Return("Dear Ada, here is your summary.", nil)

	sender := &mocks.MockEmailSender{}
	sender.On("Send", mock.Anything, "acc-2", "ada@example.com", "Your summary", "Dear Ada, here is your summary.").
		Return("msg-9", nil).Once()

	f := newFixture(t, Collaborators{EmailSender: sender, ContentGenerator: generator})

	outcome := f.executor.Execute(context.Background(), f.request(t), &models.ActionData{
		ActionType: models.ActionGenerateAIContent,
		Config: &models.GenerateAIContentConfig{
			Prompt:       "Summarize our offer for {{lead.company}}",
			Tone:         "friendly",
			SendEmail:    true,
			AccountID:    "acc-2",
			Subject:      "Your summary",
			VariableName: "summary",
		},
	})

	require.True(t, outcome.Success, outcome.Err)
	assert.Equal(t, "Dear Ada, here is your summary.", outcome.Output["summary"])
	assert.Equal(t, "msg-9", outcome.Output["lastMessageId"])
	sender.AssertExpectations(t)

	request, ok := generator.Calls[0].Arguments.Get(1).(protocol.GenerateRequest)
	require.True(t, ok)
	assert.Equal(t, "Summarize our offer for Analytical Engines", request.Prompt)
	assert.Equal(t, "friendly", request.Tone)
}
