package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/leadflow/pkg/models"
	json "github.com/goccy/go-json"
)

// ActionLogRepository appends audit entries. Rows are never updated.
type ActionLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewActionLogRepository(db *sql.DB, logger *slog.Logger) *ActionLogRepository {
	return &ActionLogRepository{db: db, logger: logger}
}

func (r *ActionLogRepository) Append(ctx context.Context, entry *models.ActionLogEntry) error {
	dataJSON, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal action log data: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO action_logs (id, workflow_id, node_id, lead_id, action_type, data, status, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.WorkflowID, entry.NodeID, entry.LeadID, entry.ActionType,
		dataJSON, entry.Status, entry.Error, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to append action log entry: %w", err)
	}

	return nil
}

func (r *ActionLogRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.ActionLogEntry, error) {
	return r.list(ctx, `WHERE workflow_id = $1`, workflowID)
}

func (r *ActionLogRepository) ListByLead(ctx context.Context, leadID string) ([]*models.ActionLogEntry, error) {
	return r.list(ctx, `WHERE lead_id = $1`, leadID)
}

func (r *ActionLogRepository) list(ctx context.Context, where string, arg string) ([]*models.ActionLogEntry, error) {
	query := `
		SELECT id, workflow_id, node_id, lead_id, action_type, data, status, error, created_at
		FROM action_logs ` + where + `
		ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query action logs: %w", err)
	}

	return collect(ctx, r.logger, rows, func(row scanner) (*models.ActionLogEntry, error) {
		var (
			entry    models.ActionLogEntry
			dataJSON []byte
		)

		err := row.Scan(&entry.ID, &entry.WorkflowID, &entry.NodeID, &entry.LeadID, &entry.ActionType,
			&dataJSON, &entry.Status, &entry.Error, &entry.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to scan action log entry: %w", err)
		}

		if len(dataJSON) > 0 {
			err = json.Unmarshal(dataJSON, &entry.Data)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal action log data: %w", err)
			}
		}

		return &entry, nil
	})
}
