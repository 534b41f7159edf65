package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBus(t *testing.T) *WatermillEventBus {
	t.Helper()

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 16}, watermill.NopLogger{})
	bus := NewWatermillEventBus(slog.Default(), pubSub, pubSub)

	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	ctx := context.Background()
	bus := newBus(t)

	var (
		mu       sync.Mutex
		received []*events.TriggerReceived
	)

	require.NoError(t, bus.Handle(events.TriggerReceivedEvent, func(_ context.Context, event any) error {
		mu.Lock()
		defer mu.Unlock()

		received = append(received, event.(*events.TriggerReceived))

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "lead-1", events.TriggerReceived{
		BaseEvent:   events.BaseEvent{ID: bus.GenerateID(), Type: events.TriggerReceivedEvent, LeadID: "lead-1"},
		TriggerType: models.TriggerLeadCreated,
		Payload:     map[string]any{"leadId": "lead-1"},
	}))

	// Events without a handler are acknowledged and dropped.
	require.NoError(t, bus.Publish(ctx, "wf-1", events.WorkflowCompleted{
		BaseEvent: events.BaseEvent{Type: events.WorkflowCompletedEvent},
	}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(received) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, models.TriggerLeadCreated, received[0].TriggerType)
	assert.Equal(t, "lead-1", received[0].Payload["leadId"])
}

func TestWatermillEventBus_HandlerErrorNacks(t *testing.T) {
	ctx := context.Background()
	bus := newBus(t)

	var (
		mu       sync.Mutex
		attempts int
	)

	require.NoError(t, bus.Handle(events.ActionFailedEvent, func(context.Context, any) error {
		mu.Lock()
		defer mu.Unlock()

		attempts++
		if attempts == 1 {
			return errors.New("try again")
		}

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	require.NoError(t, bus.Publish(ctx, "wf-1", events.ActionFailed{
		BaseEvent: events.BaseEvent{Type: events.ActionFailedEvent},
		NodeID:    "a1",
		Error:     "smtp down",
	}))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return attempts == 2
	}, time.Second, 5*time.Millisecond)
}
