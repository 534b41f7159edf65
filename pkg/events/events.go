// Package events defines the messages exchanged over the event bus:
// CRM events coming in and workflow lifecycle notifications going out.
package events

import (
	"time"

	"github.com/dukex/leadflow/pkg/models"
)

type EventType string

// Topic carries every leadflow event.
const Topic = "leadflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// CRM events dispatched to workflows.
	TriggerReceivedEvent EventType = "trigger.received"

	// Workflow lifecycle events.
	WorkflowStartedEvent   EventType = "workflow.started"
	NodeVisitedEvent       EventType = "node.visited"
	ActionFailedEvent      EventType = "action.failed"
	WorkflowCompletedEvent EventType = "workflow.completed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	LeadID     string         `json:"lead_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// TriggerReceived asks the engine to dispatch a CRM event.
type TriggerReceived struct {
	BaseEvent

	TriggerType models.TriggerType `json:"trigger_type"`
	Payload     map[string]any     `json:"payload,omitempty"`
}

func (TriggerReceived) GetType() EventType {
	return TriggerReceivedEvent
}

type WorkflowStarted struct {
	BaseEvent

	TriggerType models.TriggerType `json:"trigger_type"`
	Variables   map[string]any     `json:"variables,omitempty"`
}

func (WorkflowStarted) GetType() EventType {
	return WorkflowStartedEvent
}

type NodeVisited struct {
	BaseEvent

	NodeID   string             `json:"node_id"`
	NodeType models.NodeType    `json:"node_type"`
	Status   models.VisitStatus `json:"status"`
	Detail   string             `json:"detail,omitempty"`
}

func (NodeVisited) GetType() EventType {
	return NodeVisitedEvent
}

type ActionFailed struct {
	BaseEvent

	NodeID     string            `json:"node_id"`
	ActionType models.ActionType `json:"action_type"`
	Error      string            `json:"error"`
}

func (ActionFailed) GetType() EventType {
	return ActionFailedEvent
}

type WorkflowCompleted struct {
	BaseEvent

	NodeID string `json:"node_id"`
}

func (WorkflowCompleted) GetType() EventType {
	return WorkflowCompletedEvent
}

// New returns an empty event of eventType, ready to be decoded into.
func New(eventType EventType) (any, bool) {
	switch eventType {
	case TriggerReceivedEvent:
		return &TriggerReceived{}, true
	case WorkflowStartedEvent:
		return &WorkflowStarted{}, true
	case NodeVisitedEvent:
		return &NodeVisited{}, true
	case ActionFailedEvent:
		return &ActionFailed{}, true
	case WorkflowCompletedEvent:
		return &WorkflowCompleted{}, true
	default:
		return nil, false
	}
}
