// Package postgresql provides PostgreSQL persistence for workflows, execution state and CRM records.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	workflowRepo     *WorkflowRepository
	stateRepo        *ExecutionStateRepository
	actionLogRepo    *ActionLogRepository
	leadRepo         *LeadRepository
	emailRepo        *EmailRepository
	taskRepo         *TaskRepository
	appointmentRepo  *AppointmentRepository
	notificationRepo *NotificationRepository
}

// NewPersistence creates a new PostgreSQL persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger = logger.With("module", "postgresql_persistence")

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	postgres := &Persistence{
		db:               database,
		logger:           logger,
		workflowRepo:     NewWorkflowRepository(database, logger),
		stateRepo:        NewExecutionStateRepository(database, logger),
		actionLogRepo:    NewActionLogRepository(database, logger),
		leadRepo:         NewLeadRepository(database, logger),
		emailRepo:        NewEmailRepository(database, logger),
		taskRepo:         NewTaskRepository(database, logger),
		appointmentRepo:  NewAppointmentRepository(database, logger),
		notificationRepo: NewNotificationRepository(database, logger),
	}

	// Run migrations on initialization
	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
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

type scanner interface {
	Scan(dest ...any) error
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

// collect scans every row with scan and closes rows.
func collect[T any](ctx context.Context, logger *slog.Logger, rows *sql.Rows, scan func(scanner) (*T, error)) ([]*T, error) {
	defer closeRows(ctx, logger, rows)

	items := make([]*T, 0)

	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	err := rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return items, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}

	value := t.Time.UTC()

	return &value
}
