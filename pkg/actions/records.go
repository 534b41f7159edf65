package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/jonboulle/clockwork"
)

const (
	defaultTaskPriority        = "MEDIUM"
	defaultAppointmentDuration = 30 * time.Minute
	defaultNotificationType    = "WORKFLOW"
)

var (
	ErrMissingTitle = errors.New("title is required")
	ErrNoUser       = errors.New("no user to notify")
)

type recordHandler struct {
	clock         clockwork.Clock
	tasks         persistence.TaskRepository
	appointments  persistence.AppointmentRepository
	notifications persistence.NotificationRepository
}

func (h *recordHandler) createTask(ctx context.Context, request Request, config *models.CreateTaskConfig) (map[string]any, error) {
	title := Render(config.Title, request.Lead, request.Variables)
	if title == "" {
		return nil, ErrMissingTitle
	}

	priority := config.Priority
	if priority == "" {
		priority = defaultTaskPriority
	}

	assignee := config.AssigneeID
	if assignee == "" && request.Lead != nil {
		assignee = request.Lead.OwnerID
	}

	now := h.clock.Now().UTC()

	task := &models.Task{
		LeadID:      request.LeadID,
		WorkflowID:  request.WorkflowID,
		Title:       title,
		Description: Render(config.Description, request.Lead, request.Variables),
		Priority:    priority,
		AssigneeID:  assignee,
		DueAt:       now.AddDate(0, 0, config.DueInDays),
		CreatedAt:   now,
	}

	err := h.tasks.Create(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	return map[string]any{"taskId": task.ID}, nil
}

func (h *recordHandler) createAppointment(
	ctx context.Context,
	request Request,
	config *models.CreateAppointmentConfig,
) (map[string]any, error) {
	title := Render(config.Title, request.Lead, request.Variables)
	if title == "" {
		return nil, ErrMissingTitle
	}

	duration := time.Duration(config.DurationMinutes) * time.Minute
	if duration <= 0 {
		duration = defaultAppointmentDuration
	}

	assignee := config.AssigneeID
	if assignee == "" && request.Lead != nil {
		assignee = request.Lead.OwnerID
	}

	now := h.clock.Now().UTC()
	start := now.Add(time.Duration(config.StartInHours) * time.Hour)

	appointment := &models.Appointment{
		LeadID:      request.LeadID,
		WorkflowID:  request.WorkflowID,
		Title:       title,
		Description: Render(config.Description, request.Lead, request.Variables),
		Location:    config.Location,
		AssigneeID:  assignee,
		StartAt:     start,
		EndAt:       start.Add(duration),
		CreatedAt:   now,
	}

	err := h.appointments.Create(ctx, appointment)
	if err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	return map[string]any{"appointmentId": appointment.ID}, nil
}

func (h *recordHandler) notifyUser(ctx context.Context, request Request, config *models.NotifyUserConfig) (map[string]any, error) {
	user := config.UserID
	if user == "" && request.Lead != nil {
		user = request.Lead.OwnerID
	}

	if user == "" {
		return nil, ErrNoUser
	}

	kind := config.Type
	if kind == "" {
		kind = defaultNotificationType
	}

	notification := &models.Notification{
		UserID:     user,
		LeadID:     request.LeadID,
		WorkflowID: request.WorkflowID,
		Title:      Render(config.Title, request.Lead, request.Variables),
		Message:    Render(config.Message, request.Lead, request.Variables),
		Type:       kind,
		CreatedAt:  h.clock.Now().UTC(),
	}

	err := h.notifications.Create(ctx, notification)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	return map[string]any{"notificationId": notification.ID}, nil
}
