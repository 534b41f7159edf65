package models

import (
	"fmt"
	"time"
)

// ExecutionStatus is the coarse status of a (workflow, lead) execution.
// Branches fanned out by a split node share one status; the last writer wins.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusWaiting   ExecutionStatus = "waiting"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// Active reports whether an execution with this status may still make progress.
func (s ExecutionStatus) Active() bool {
	return s == ExecutionStatusRunning || s == ExecutionStatusWaiting
}

// VisitStatus is the outcome recorded for a single node visit.
type VisitStatus string

const (
	VisitSuccess VisitStatus = "success"
	VisitFailed  VisitStatus = "failed"
	VisitWaiting VisitStatus = "waiting"
)

// HistoryEntry records one node visit.
type HistoryEntry struct {
	NodeID    string      `json:"nodeId"`
	NodeType  NodeType    `json:"nodeType"`
	Timestamp time.Time   `json:"timestamp"`
	Status    VisitStatus `json:"status"`
	Detail    string      `json:"detail,omitempty"`
}

// ExecutionState is the persisted program counter of one workflow for one lead.
// There is at most one state per (WorkflowID, LeadID).
type ExecutionState struct {
	WorkflowID  string          `json:"workflowId"`
	LeadID      string          `json:"leadId"`
	CurrentNode string          `json:"currentNode"`
	Status      ExecutionStatus `json:"status"`
	Variables   map[string]any  `json:"variables"`
	History     []HistoryEntry  `json:"history"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// NewExecutionState returns an empty running state for the pair.
func NewExecutionState(workflowID, leadID string, now time.Time) *ExecutionState {
	return &ExecutionState{
		WorkflowID: workflowID,
		LeadID:     leadID,
		Status:     ExecutionStatusRunning,
		Variables:  make(map[string]any),
		History:    []HistoryEntry{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Begin resets the state for a new run. Variables are replaced and history is kept.
func (s *ExecutionState) Begin(variables map[string]any, now time.Time) {
	s.Variables = make(map[string]any, len(variables))
	for k, v := range variables {
		s.Variables[k] = v
	}

	s.Status = ExecutionStatusRunning
	s.UpdatedAt = now
}

// Record moves the program counter to entry.NodeID and appends entry to the history.
// An empty status leaves the current status unchanged.
func (s *ExecutionState) Record(entry HistoryEntry, status ExecutionStatus) {
	s.CurrentNode = entry.NodeID
	s.History = append(s.History, entry)

	if status != "" {
		s.Status = status
	}

	if entry.Timestamp.After(s.UpdatedAt) {
		s.UpdatedAt = entry.Timestamp
	}
}

// MergeVariables overwrites the given keys and keeps the rest.
func (s *ExecutionState) MergeVariables(variables map[string]any, now time.Time) {
	if s.Variables == nil {
		s.Variables = make(map[string]any, len(variables))
	}

	for k, v := range variables {
		s.Variables[k] = v
	}

	s.UpdatedAt = now
}

// ReentryPolicy decides what happens when a workflow starts for a lead that already has state.
type ReentryPolicy string

const (
	// ReentryOverwrite restarts the run, replacing variables and keeping history.
	ReentryOverwrite ReentryPolicy = "overwrite"
	// ReentrySkipActive ignores the start while the existing run is running or waiting.
	ReentrySkipActive ReentryPolicy = "skip-active"
)

// ParseReentryPolicy returns the policy named by s. Empty selects ReentryOverwrite.
func ParseReentryPolicy(s string) (ReentryPolicy, error) {
	switch ReentryPolicy(s) {
	case "", ReentryOverwrite:
		return ReentryOverwrite, nil
	case ReentrySkipActive:
		return ReentrySkipActive, nil
	default:
		return "", fmt.Errorf("unknown reentry policy %q", s)
	}
}

// Admits reports whether a new run may start over the existing state.
func (p ReentryPolicy) Admits(existing *ExecutionState) bool {
	if existing == nil || p != ReentrySkipActive {
		return true
	}

	return !existing.Status.Active()
}

// ExecutionStart describes a new run of a workflow for a lead.
type ExecutionStart struct {
	WorkflowID string
	LeadID     string
	Variables  map[string]any
	Policy     ReentryPolicy
	StartedAt  time.Time
}

// Apply starts the run on existing, creating the state when there is none.
// It returns false when the policy rejects the start.
func (s ExecutionStart) Apply(existing *ExecutionState) (*ExecutionState, bool) {
	if !s.Policy.Admits(existing) {
		return existing, false
	}

	state := existing
	if state == nil {
		state = NewExecutionState(s.WorkflowID, s.LeadID, s.StartedAt)
	}

	state.Begin(s.Variables, s.StartedAt)

	return state, true
}
