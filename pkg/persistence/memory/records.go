package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/google/uuid"
)

// records is an append-only list of CRM records.
type records[T any] struct {
	mu    sync.RWMutex
	items []*T
}

func (r *records[T]) add(item *T) {
	copied := *item

	r.mu.Lock()
	r.items = append(r.items, &copied)
	r.mu.Unlock()
}

func (r *records[T]) filter(keep func(*T) bool) []*T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]*T, 0)

	for _, item := range r.items {
		if keep(item) {
			copied := *item
			items = append(items, &copied)
		}
	}

	return items
}

func newID(kind string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate %s ID: %w", kind, err)
	}

	return id.String(), nil
}

type TaskRepository struct {
	records[models.Task]
}

func NewTaskRepository() *TaskRepository {
	return &TaskRepository{}
}

func (r *TaskRepository) Create(_ context.Context, task *models.Task) error {
	if task.ID == "" {
		id, err := newID("task")
		if err != nil {
			return err
		}

		task.ID = id
	}

	r.add(task)

	return nil
}

func (r *TaskRepository) ListByLead(_ context.Context, leadID string) ([]*models.Task, error) {
	return r.filter(func(task *models.Task) bool { return task.LeadID == leadID }), nil
}

type AppointmentRepository struct {
	records[models.Appointment]
}

func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{}
}

func (r *AppointmentRepository) Create(_ context.Context, appointment *models.Appointment) error {
	if appointment.ID == "" {
		id, err := newID("appointment")
		if err != nil {
			return err
		}

		appointment.ID = id
	}

	r.add(appointment)

	return nil
}

func (r *AppointmentRepository) ListByLead(_ context.Context, leadID string) ([]*models.Appointment, error) {
	return r.filter(func(appointment *models.Appointment) bool { return appointment.LeadID == leadID }), nil
}

type NotificationRepository struct {
	records[models.Notification]
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

func (r *NotificationRepository) Create(_ context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		id, err := newID("notification")
		if err != nil {
			return err
		}

		notification.ID = id
	}

	r.add(notification)

	return nil
}

func (r *NotificationRepository) ListByUser(_ context.Context, userID string) ([]*models.Notification, error) {
	return r.filter(func(notification *models.Notification) bool { return notification.UserID == userID }), nil
}
