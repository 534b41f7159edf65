// Package memory provides in-process persistence. State lives as long as the process.
package memory

import (
	"context"

	"github.com/dukex/leadflow/pkg/persistence"
)

// Persistence implements persistence.Persistence with maps guarded by per-key locks.
type Persistence struct {
	workflowRepo     *WorkflowRepository
	stateRepo        *ExecutionStateRepository
	actionLogRepo    *ActionLogRepository
	leadRepo         *LeadRepository
	emailRepo        *EmailRepository
	taskRepo         *TaskRepository
	appointmentRepo  *AppointmentRepository
	notificationRepo *NotificationRepository
}

// NewPersistence creates an empty in-memory persistence.
func NewPersistence() *Persistence {
	return &Persistence{
		workflowRepo:     NewWorkflowRepository(),
		stateRepo:        NewExecutionStateRepository(),
		actionLogRepo:    NewActionLogRepository(),
		leadRepo:         NewLeadRepository(),
		emailRepo:        NewEmailRepository(),
		taskRepo:         NewTaskRepository(),
		appointmentRepo:  NewAppointmentRepository(),
		notificationRepo: NewNotificationRepository(),
	}
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository { return p.workflowRepo }

func (p *Persistence) ExecutionStateRepository() persistence.ExecutionStateRepository {
	return p.stateRepo
}

func (p *Persistence) ActionLogRepository() persistence.ActionLogRepository { return p.actionLogRepo }

func (p *Persistence) LeadRepository() persistence.LeadRepository { return p.leadRepo }

func (p *Persistence) EmailRepository() persistence.EmailRepository { return p.emailRepo }

func (p *Persistence) TaskRepository() persistence.TaskRepository { return p.taskRepo }

func (p *Persistence) AppointmentRepository() persistence.AppointmentRepository {
	return p.appointmentRepo
}

func (p *Persistence) NotificationRepository() persistence.NotificationRepository {
	return p.notificationRepo
}

// HealthCheck always succeeds.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

// Close performs no cleanup.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
