package engine

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/dukex/leadflow/pkg/eventbus"
	"github.com/dukex/leadflow/pkg/events"
)

// Listen dispatches every TriggerReceived event of the subscriber.
// Malformed events are logged and acknowledged, storage failures are returned so the bus redelivers.
func (e *Engine) Listen(subscriber eventbus.EventSubscriber) error {
	return subscriber.Handle(events.TriggerReceivedEvent, func(ctx context.Context, event any) error {
		received, ok := event.(*events.TriggerReceived)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}

		payload := make(map[string]any, len(received.Payload)+1)
		maps.Copy(payload, received.Payload)

		if _, ok := payload[leadIDKey]; !ok && received.LeadID != "" {
			payload[leadIDKey] = received.LeadID
		}

		if _, ok := payload[workflowIDKey]; !ok && received.WorkflowID != "" {
			payload[workflowIDKey] = received.WorkflowID
		}

		_, err := e.Dispatch(ctx, received.TriggerType, payload)
		if errors.Is(err, ErrUnknownTriggerType) || errors.Is(err, ErrMissingLeadID) {
			e.logger.WarnContext(ctx, "dropping malformed trigger event", "event_id", received.ID, "error", err)

			return nil
		}

		return err
	})
}
