package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrNodeNotFound indicates a node id is not part of the workflow graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrExecutionStateNotFound indicates a (workflow, lead) pair has no execution state.
	ErrExecutionStateNotFound = errors.New("execution state not found")

	// ErrLeadNotFound indicates a lead was not found by the given identifier.
	ErrLeadNotFound = errors.New("lead not found")

	// ErrEmailNotFound indicates an email was not found, or the lead has no email.
	ErrEmailNotFound = errors.New("email not found")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	WorkflowID string
	Err        error
}

func (e *WorkflowError) Error() string {
	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// ExecutionStateError wraps execution state errors with the (workflow, lead) key.
type ExecutionStateError struct {
	Op         string
	WorkflowID string
	LeadID     string
	Err        error
}

func (e *ExecutionStateError) Error() string {
	return fmt.Sprintf("%s operation failed for execution state %s/%s: %v", e.Op, e.WorkflowID, e.LeadID, e.Err)
}

func (e *ExecutionStateError) Unwrap() error {
	return e.Err
}

func (e *ExecutionStateError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionStateError creates a new execution state error with context.
func NewExecutionStateError(op, workflowID, leadID string, err error) *ExecutionStateError {
	return &ExecutionStateError{
		Op:         op,
		WorkflowID: workflowID,
		LeadID:     leadID,
		Err:        err,
	}
}

// LeadError wraps lead-related errors with the lead id.
type LeadError struct {
	Op     string
	LeadID string
	Err    error
}

func (e *LeadError) Error() string {
	return fmt.Sprintf("%s operation failed for lead %s: %v", e.Op, e.LeadID, e.Err)
}

func (e *LeadError) Unwrap() error {
	return e.Err
}

func (e *LeadError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewLeadError creates a new lead error with context.
func NewLeadError(op, leadID string, err error) *LeadError {
	return &LeadError{Op: op, LeadID: leadID, Err: err}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsNodeNotFound checks if an error indicates a node was not found.
func IsNodeNotFound(err error) bool {
	return errors.Is(err, ErrNodeNotFound)
}

// IsExecutionStateNotFound checks if an error indicates an execution state was not found.
func IsExecutionStateNotFound(err error) bool {
	return errors.Is(err, ErrExecutionStateNotFound)
}

// IsLeadNotFound checks if an error indicates a lead was not found.
func IsLeadNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}

// IsEmailNotFound checks if an error indicates an email was not found.
func IsEmailNotFound(err error) bool {
	return errors.Is(err, ErrEmailNotFound)
}
