package models

import (
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
)

// NodeType is the kind of a workflow node.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeCondition NodeType = "condition"
	NodeTypeAction    NodeType = "action"
	NodeTypeDelay     NodeType = "delay"
	NodeTypeSplit     NodeType = "split"
	NodeTypeEnd       NodeType = "end"
)

// Position is the editor placement of a node. It has no effect on execution.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WorkflowNode represents a node instance in a workflow.
type WorkflowNode struct {
	ID       string   `json:"id"       validate:"required"`
	Type     NodeType `json:"type"     validate:"required"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// NodeData is the closed set of node payloads:
// *TriggerData, *ActionData, *ConditionData, *DelayData, *SplitData, *EndData.
type NodeData interface {
	NodeType() NodeType
}

type rawNode struct {
	ID       string          `json:"id"`
	Type     NodeType        `json:"type"`
	Position Position        `json:"position"`
	Data     json.RawMessage `json:"data"`
}

// UnmarshalJSON decodes the type specific payload once, at load time.
// Unknown node types decode with nil Data; the engine treats them as invariant violations.
func (n *WorkflowNode) UnmarshalJSON(data []byte) error {
	var raw rawNode

	err := json.Unmarshal(data, &raw)
	if err != nil {
		return fmt.Errorf("failed to decode node: %w", err)
	}

	n.ID = raw.ID
	n.Type = raw.Type
	n.Position = raw.Position

	n.Data, err = DecodeNodeData(raw.Type, raw.Data)
	if err != nil {
		return fmt.Errorf("failed to decode data of node %s: %w", raw.ID, err)
	}

	return nil
}

// DecodeNodeData decodes a raw payload into the NodeData variant for nodeType.
func DecodeNodeData(nodeType NodeType, raw json.RawMessage) (NodeData, error) {
	if len(raw) == 0 || string(raw) == "null" {
		raw = json.RawMessage("{}")
	}

	var data NodeData

	switch nodeType {
	case NodeTypeTrigger:
		data = &TriggerData{}
	case NodeTypeAction:
		data = &ActionData{}
	case NodeTypeCondition:
		data = &ConditionData{}
	case NodeTypeDelay:
		data = &DelayData{}
	case NodeTypeSplit:
		data = &SplitData{}
	case NodeTypeEnd:
		data = &EndData{}
	default:
		return nil, nil
	}

	err := json.Unmarshal(raw, data)
	if err != nil {
		return nil, err
	}

	return data, nil
}

// ErrUnknownNodeType is returned when a node carries no decodable payload.
var ErrUnknownNodeType = errors.New("unknown node type")

// TriggerType is the external event type a trigger node listens for.
type TriggerType string

const (
	TriggerLeadCreated   TriggerType = "LEAD_CREATED"
	TriggerLeadUpdated   TriggerType = "LEAD_UPDATED"
	TriggerEmailReceived TriggerType = "EMAIL_RECEIVED"
	TriggerEmailOpened   TriggerType = "EMAIL_OPENED"
	TriggerEmailClicked  TriggerType = "EMAIL_CLICKED"
	TriggerManual        TriggerType = "MANUAL"
	TriggerScheduled     TriggerType = "SCHEDULED"
)

// TriggerTypes lists every supported trigger type.
var TriggerTypes = []TriggerType{
	TriggerLeadCreated,
	TriggerLeadUpdated,
	TriggerEmailReceived,
	TriggerEmailOpened,
	TriggerEmailClicked,
	TriggerManual,
	TriggerScheduled,
}

// Valid reports whether t is a known trigger type.
func (t TriggerType) Valid() bool {
	for _, known := range TriggerTypes {
		if t == known {
			return true
		}
	}

	return false
}

// Administrative reports whether events of this type may omit a lead id.
func (t TriggerType) Administrative() bool {
	return t == TriggerScheduled
}

// TriggerData is the payload of a trigger node.
type TriggerData struct {
	TriggerType TriggerType    `json:"triggerType"`
	Config      map[string]any `json:"config,omitempty"`
}

func (*TriggerData) NodeType() NodeType { return NodeTypeTrigger }

// DelayType selects how a delay duration is measured.
type DelayType string

const (
	DelayFixed           DelayType = "FIXED"
	DelayRelativeToEvent DelayType = "RELATIVE_TO_EVENT"
)

// DelayData is the payload of a delay node. Duration is expressed in seconds.
type DelayData struct {
	Duration  int64     `json:"duration"`
	DelayType DelayType `json:"delayType,omitempty"`
}

func (*DelayData) NodeType() NodeType { return NodeTypeDelay }

// SplitData is the payload of a split node.
type SplitData struct{}

func (*SplitData) NodeType() NodeType { return NodeTypeSplit }

// EndData is the payload of an end node.
type EndData struct{}

func (*EndData) NodeType() NodeType { return NodeTypeEnd }
