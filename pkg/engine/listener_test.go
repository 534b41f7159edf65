package engine

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/leadflow/pkg/channels/gochannel"
	"github.com/dukex/leadflow/pkg/eventbus"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListen_DispatchesTriggerEvents(t *testing.T) {
	h := newHarness(t)
	h.lead(t, "lead-1", "NEW")
	h.workflow(t, welcomeWorkflow())

	pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(slog.Default()))
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(slog.Default(), pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	require.NoError(t, h.engine.Listen(bus))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	require.NoError(t, bus.Subscribe(ctx))

	malformed := events.TriggerReceived{
		BaseEvent:   events.BaseEvent{ID: "evt-0", Type: events.TriggerReceivedEvent},
		TriggerType: models.TriggerLeadCreated,
	}
	require.NoError(t, bus.Publish(ctx, "lead-1", malformed))

	received := events.TriggerReceived{
		BaseEvent:   events.BaseEvent{ID: "evt-1", Type: events.TriggerReceivedEvent, LeadID: "lead-1"},
		TriggerType: models.TriggerLeadCreated,
		Payload:     map[string]any{"source": "import"},
	}
	require.NoError(t, bus.Publish(ctx, "lead-1", received))

	assert.Eventually(t, func() bool {
		state, err := h.store.ExecutionStateRepository().Get(context.Background(), "wf-welcome", "lead-1")

		return err == nil && state.Status == models.ExecutionStatusCompleted
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, "import", h.state(t, "wf-welcome", "lead-1").Variables["source"])
}
