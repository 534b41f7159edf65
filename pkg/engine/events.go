package engine

import (
	"context"

	"github.com/dukex/leadflow/pkg/eventbus"
	"github.com/dukex/leadflow/pkg/events"
	"github.com/google/uuid"
)

func (e *Engine) baseEvent(eventType events.EventType, workflowID, leadID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  e.clock.Now().UTC(),
		WorkflowID: workflowID,
		LeadID:     leadID,
	}
}

// publish is best effort: a failed publish never affects the run.
func (e *Engine) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if e.publisher == nil {
		return
	}

	err := e.publisher.Publish(ctx, workflowID, event)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to publish event",
			"workflow_id", workflowID,
			"event", event.GetType(),
			"error", err)
	}
}
