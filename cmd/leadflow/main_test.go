package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/models/schema"
	"github.com/dukex/leadflow/pkg/persistence/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWorkflows_Examples(t *testing.T) {
	workflows, err := loadWorkflows(filepath.Join("..", "..", "examples", "workflows"))
	require.NoError(t, err)
	require.Len(t, workflows, 2)

	assert.Equal(t, "weekly-pipeline-review", workflows[0].ID)
	assert.True(t, workflows[0].HasTrigger(models.TriggerScheduled))
	assert.Equal(t, "welcome-new-leads", workflows[1].ID)
	assert.True(t, workflows[1].HasTrigger(models.TriggerManual))
}

func TestLoadWorkflows_RejectsInvalidDocument(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"),
		[]byte(`{"id": "x", "name": "Broken", "nodes": [{"id": "e", "type": "end"}], "edges": []}`), 0o600))

	_, err := loadWorkflows(dir)
	require.ErrorIs(t, err, schema.ErrInvalidWorkflow)
	assert.Contains(t, err.Error(), "broken.json")
}

func TestSeedWorkflows(t *testing.T) {
	store := memory.NewPersistence()

	require.NoError(t, seedWorkflows(context.Background(), slog.Default(), store.WorkflowRepository(),
		filepath.Join("..", "..", "examples", "workflows")))

	workflow, err := store.WorkflowRepository().GetByID(context.Background(), "welcome-new-leads")
	require.NoError(t, err)
	assert.True(t, workflow.IsActive)

	require.NoError(t, seedWorkflows(context.Background(), slog.Default(), store.WorkflowRepository(), ""))
}

func TestNewTriggerEvent(t *testing.T) {
	event, err := newTriggerEvent(models.TriggerEmailOpened, "lead-1", `{"emailId": "email-7"}`)
	require.NoError(t, err)
	assert.Equal(t, events.TriggerReceivedEvent, event.GetType())
	assert.Equal(t, "lead-1", event.LeadID)
	assert.Equal(t, "email-7", event.Payload["emailId"])
	assert.NotEmpty(t, event.ID)

	_, err = newTriggerEvent("WEBHOOK", "lead-1", "{}")
	require.Error(t, err)

	_, err = newTriggerEvent(models.TriggerLeadCreated, "", "{}")
	require.Error(t, err)

	_, err = newTriggerEvent(models.TriggerScheduled, "", "[1, 2]")
	require.Error(t, err)

	event, err = newTriggerEvent(models.TriggerScheduled, "", "{}")
	require.NoError(t, err)
	assert.Empty(t, event.LeadID)
}
