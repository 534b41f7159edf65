package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/google/uuid"
)

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
	db     *sql.DB
	logger *slog.Logger
}

func NewTaskRepository(db *sql.DB, logger *slog.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	err := ensureID(&task.ID, "task")
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO tasks (id, lead_id, workflow_id, title, description, priority, assignee_id, due_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		task.ID, task.LeadID, task.WorkflowID, task.Title, task.Description, task.Priority, task.AssigneeID,
		task.DueAt, task.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	return nil
}

func (r *TaskRepository) ListByLead(ctx context.Context, leadID string) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, lead_id, workflow_id, title, description, priority, assignee_id, due_at, created_at
		FROM tasks WHERE lead_id = $1 ORDER BY created_at, id`, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}

	return collect(ctx, r.logger, rows, func(row scanner) (*models.Task, error) {
		var task models.Task

		err := row.Scan(&task.ID, &task.LeadID, &task.WorkflowID, &task.Title, &task.Description, &task.Priority,
			&task.AssigneeID, &task.DueAt, &task.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}

		return &task, nil
	})
}

type AppointmentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewAppointmentRepository(db *sql.DB, logger *slog.Logger) *AppointmentRepository {
	return &AppointmentRepository{db: db, logger: logger}
}

func (r *AppointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	err := ensureID(&appointment.ID, "appointment")
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO appointments (id, lead_id, workflow_id, title, description, location, assignee_id, start_at, end_at,
			created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		appointment.ID, appointment.LeadID, appointment.WorkflowID, appointment.Title, appointment.Description,
		appointment.Location, appointment.AssigneeID, appointment.StartAt, appointment.EndAt, appointment.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	return nil
}

func (r *AppointmentRepository) ListByLead(ctx context.Context, leadID string) ([]*models.Appointment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, lead_id, workflow_id, title, description, location, assignee_id, start_at, end_at, created_at
		FROM appointments WHERE lead_id = $1 ORDER BY start_at, id`, leadID)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}

	return collect(ctx, r.logger, rows, func(row scanner) (*models.Appointment, error) {
		var appointment models.Appointment

		err := row.Scan(&appointment.ID, &appointment.LeadID, &appointment.WorkflowID, &appointment.Title,
			&appointment.Description, &appointment.Location, &appointment.AssigneeID, &appointment.StartAt,
			&appointment.EndAt, &appointment.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}

		return &appointment, nil
	})
}

type NotificationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewNotificationRepository(db *sql.DB, logger *slog.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	err := ensureID(&notification.ID, "notification")
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, lead_id, workflow_id, title, message, type, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		notification.ID, notification.UserID, notification.LeadID, notification.WorkflowID, notification.Title,
		notification.Message, notification.Type, notification.Read, notification.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	return nil
}

func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]*models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, lead_id, workflow_id, title, message, type, read, created_at
		FROM notifications WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}

	return collect(ctx, r.logger, rows, func(row scanner) (*models.Notification, error) {
		var notification models.Notification

		err := row.Scan(&notification.ID, &notification.UserID, &notification.LeadID, &notification.WorkflowID,
			&notification.Title, &notification.Message, &notification.Type, &notification.Read,
			&notification.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		return &notification, nil
	})
}
