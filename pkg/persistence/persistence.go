// Package persistence defines the storage contracts used by the workflow engine and its actions.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/leadflow/pkg/models"
)

// Persistence groups every repository of a storage backend.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionStateRepository() ExecutionStateRepository
	ActionLogRepository() ActionLogRepository
	LeadRepository() LeadRepository
	EmailRepository() EmailRepository
	TaskRepository() TaskRepository
	AppointmentRepository() AppointmentRepository
	NotificationRepository() NotificationRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow graphs. The engine only reads from it.
type WorkflowRepository interface {
	// GetByID returns ErrWorkflowNotFound when no workflow has the id.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	// ListActiveWithTrigger returns active workflows declaring a trigger node of triggerType.
	ListActiveWithTrigger(ctx context.Context, triggerType models.TriggerType) ([]*models.Workflow, error)
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	Save(ctx context.Context, workflow *models.Workflow) error
	Delete(ctx context.Context, id string) error
}

// ExecutionStateRepository keeps one state per (workflow, lead).
// History appends must be atomic per key: concurrent branches never lose entries.
type ExecutionStateRepository interface {
	// Get returns ErrExecutionStateNotFound when the pair has no state.
	Get(ctx context.Context, workflowID, leadID string) (*models.ExecutionState, error)
	// Begin starts a run as described by start. It returns false when the reentry policy skipped it.
	Begin(ctx context.Context, start models.ExecutionStart) (bool, error)
	// Upsert moves the program counter and appends entry to the history.
	// An empty status leaves the stored status unchanged.
	Upsert(ctx context.Context, workflowID, leadID string, entry models.HistoryEntry, status models.ExecutionStatus) error
	// MergeVariables overwrites the given variables and keeps the others. now stamps the state.
	MergeVariables(ctx context.Context, workflowID, leadID string, variables map[string]any, now time.Time) error
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionState, error)
}

// ActionLogRepository is the append-only audit sink.
type ActionLogRepository interface {
	Append(ctx context.Context, entry *models.ActionLogEntry) error
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.ActionLogEntry, error)
	ListByLead(ctx context.Context, leadID string) ([]*models.ActionLogEntry, error)
}

// LeadRepository stores CRM leads.
type LeadRepository interface {
	// Get returns ErrLeadNotFound when no lead has the id.
	Get(ctx context.Context, id string) (*models.Lead, error)
	Save(ctx context.Context, lead *models.Lead) error
	// Update applies a partial update atomically and returns the updated lead.
	Update(ctx context.Context, id string, update models.LeadUpdate) (*models.Lead, error)
}

// EmailRepository stores emails exchanged with leads.
type EmailRepository interface {
	// Get returns ErrEmailNotFound when no email has the id.
	Get(ctx context.Context, id string) (*models.Email, error)
	// LatestByLead returns the most recently sent email of the lead or ErrEmailNotFound.
	LatestByLead(ctx context.Context, leadID string) (*models.Email, error)
	Save(ctx context.Context, email *models.Email) error
}

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	ListByLead(ctx context.Context, leadID string) ([]*models.Task, error)
}

type AppointmentRepository interface {
	Create(ctx context.Context, appointment *models.Appointment) error
	ListByLead(ctx context.Context, leadID string) ([]*models.Appointment, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	ListByUser(ctx context.Context, userID string) ([]*models.Notification, error)
}
