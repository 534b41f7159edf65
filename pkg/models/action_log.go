package models

import "time"

// LogStatus is the outcome of an audited attempt.
type LogStatus string

const (
	LogStatusSuccess LogStatus = "SUCCESS"
	LogStatusFailed  LogStatus = "FAILED"
)

// Audit categories that are not action types.
const (
	LogTypeCondition = "CONDITION"
	LogTypeEngine    = "ENGINE"
)

// ActionLogEntry is an append-only audit record of one action or condition attempt.
type ActionLogEntry struct {
	ID         string         `json:"id"`
	WorkflowID string         `json:"workflowId"`
	NodeID     string         `json:"nodeId"`
	LeadID     string         `json:"leadId"`
	ActionType string         `json:"actionType"`
	Data       map[string]any `json:"data,omitempty"`
	Status     LogStatus      `json:"status"`
	Error      string         `json:"error,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
