package badger_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/persistence/badger"
	"github.com/dukex/leadflow/pkg/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestPersistence(t *testing.T) {
	persistencetest.Run(t, func(t *testing.T) persistence.Persistence {
		t.Helper()

		p, err := badger.NewPersistence(context.Background(), testLogger(), "")
		require.NoError(t, err)

		t.Cleanup(func() {
			_ = p.Close(context.Background())
		})

		return p
	})
}

func TestPersistence_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := "badger://" + t.TempDir()

	p, err := badger.NewPersistence(ctx, testLogger(), path)
	require.NoError(t, err)

	_, err = p.ExecutionStateRepository().Begin(ctx, models.ExecutionStart{
		WorkflowID: "wf",
		LeadID:     "lead",
		Variables:  map[string]any{"leadId": "lead"},
		Policy:     models.ReentryOverwrite,
		StartedAt:  persistencetest.Timestamp(0),
	})
	require.NoError(t, err)

	entry := models.HistoryEntry{NodeID: "t1", NodeType: models.NodeTypeTrigger, Timestamp: persistencetest.Timestamp(0), Status: models.VisitSuccess}
	require.NoError(t, p.ExecutionStateRepository().Upsert(ctx, "wf", "lead", entry, ""))
	require.NoError(t, p.ActionLogRepository().Append(ctx, &models.ActionLogEntry{ID: "1", WorkflowID: "wf", NodeID: "a1", LeadID: "lead", Status: models.LogStatusSuccess}))
	require.NoError(t, p.Close(ctx))

	reopened, err := badger.NewPersistence(ctx, testLogger(), path)
	require.NoError(t, err)

	defer func() { _ = reopened.Close(ctx) }()

	state, err := reopened.ExecutionStateRepository().Get(ctx, "wf", "lead")
	require.NoError(t, err)
	assert.Equal(t, "t1", state.CurrentNode)
	assert.Len(t, state.History, 1)

	require.NoError(t, reopened.ActionLogRepository().Append(ctx, &models.ActionLogEntry{ID: "2", WorkflowID: "wf", NodeID: "a2", LeadID: "lead", Status: models.LogStatusSuccess}))

	entries, err := reopened.ActionLogRepository().ListByWorkflow(ctx, "wf")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "a1", entries[0].NodeID, "sequence keys keep append order across restarts")
	assert.Equal(t, "a2", entries[1].NodeID)

	assert.NoError(t, reopened.HealthCheck(ctx))
}
