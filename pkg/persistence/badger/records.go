package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/google/uuid"
)

// appendRecord stores v under a fresh sequence key of prefix.
func (p *Persistence) appendRecord(ctx context.Context, prefix string, v any) error {
	key, err := p.recordKey(prefix)
	if err != nil {
		return err
	}

	return p.update(ctx, func(txn *badgerdb.Txn) error {
		return store(txn, key, v)
	})
}

func ensureID(id *string, kind string) error {
	if *id != "" {
		return nil
	}

	generated, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("failed to generate %s ID: %w", kind, err)
	}

	*id = generated.String()

	return nil
}

type TaskRepository struct {
	store *Persistence
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	err := ensureID(&task.ID, "task")
	if err != nil {
		return err
	}

	err = r.store.appendRecord(ctx, taskPrefix, task)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

func (r *TaskRepository) ListByLead(_ context.Context, leadID string) ([]*models.Task, error) {
	return scan(r.store.db, taskPrefix, func(task *models.Task) bool { return task.LeadID == leadID })
}

type AppointmentRepository struct {
	store *Persistence
}

func (r *AppointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	err := ensureID(&appointment.ID, "appointment")
	if err != nil {
		return err
	}

	err = r.store.appendRecord(ctx, appointmentPrefix, appointment)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	return nil
}

func (r *AppointmentRepository) ListByLead(_ context.Context, leadID string) ([]*models.Appointment, error) {
	return scan(r.store.db, appointmentPrefix, func(appointment *models.Appointment) bool {
		return appointment.LeadID == leadID
	})
}

type NotificationRepository struct {
	store *Persistence
}

func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	err := ensureID(&notification.ID, "notification")
	if err != nil {
		return err
	}

	err = r.store.appendRecord(ctx, notificationPrefix, notification)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

func (r *NotificationRepository) ListByUser(_ context.Context, userID string) ([]*models.Notification, error) {
	return scan(r.store.db, notificationPrefix, func(notification *models.Notification) bool {
		return notification.UserID == userID
	})
}
