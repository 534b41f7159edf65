package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	json "github.com/goccy/go-json"
)

const maxBeginAttempts = 3

// ExecutionStateRepository handles execution state operations.
// History appends use jsonb concatenation in a single statement, so concurrent branches never lose entries.
type ExecutionStateRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionStateRepository creates a new execution state repository.
func NewExecutionStateRepository(db *sql.DB, logger *slog.Logger) *ExecutionStateRepository {
	return &ExecutionStateRepository{db: db, logger: logger}
}

const stateColumns = `
	workflow_id
  , lead_id
  , current_node
  , status
  , variables
  , history
  , created_at
  , updated_at
`

func (r *ExecutionStateRepository) Get(ctx context.Context, workflowID, leadID string) (*models.ExecutionState, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+stateColumns+` FROM execution_states WHERE workflow_id = $1 AND lead_id = $2`,
		workflowID, leadID)

	state, err := scanState(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.ErrExecutionStateNotFound
		}

		return nil, persistence.NewExecutionStateError("Get", workflowID, leadID, err)
	}

	return state, nil
}

// Begin locks the row, applies the reentry policy and writes the new run.
// A concurrent first insert for the same key is retried.
func (r *ExecutionStateRepository) Begin(ctx context.Context, start models.ExecutionStart) (bool, error) {
	for range maxBeginAttempts {
		started, settled, err := r.begin(ctx, start)
		if err != nil {
			return false, persistence.NewExecutionStateError("Begin", start.WorkflowID, start.LeadID, err)
		}

		if settled {
			return started, nil
		}
	}

	return false, persistence.NewExecutionStateError("Begin", start.WorkflowID, start.LeadID,
		errors.New("concurrent first start did not settle"))
}

func (r *ExecutionStateRepository) begin(ctx context.Context, start models.ExecutionStart) (started, settled bool, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, false, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil || !settled {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx,
		`SELECT `+stateColumns+` FROM execution_states WHERE workflow_id = $1 AND lead_id = $2 FOR UPDATE`,
		start.WorkflowID, start.LeadID)

	existing, err := scanState(row)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return false, false, err
	}

	state, started := start.Apply(existing)
	if !started {
		return false, true, tx.Commit()
	}

	variablesJSON, err := json.Marshal(state.Variables)
	if err != nil {
		return false, false, fmt.Errorf("failed to marshal variables: %w", err)
	}

	if existing == nil {
		historyJSON, err := json.Marshal(state.History)
		if err != nil {
			return false, false, fmt.Errorf("failed to marshal history: %w", err)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO execution_states (workflow_id, lead_id, current_node, status, variables, history, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (workflow_id, lead_id) DO NOTHING`,
			state.WorkflowID, state.LeadID, state.CurrentNode, state.Status,
			variablesJSON, historyJSON, state.CreatedAt, state.UpdatedAt)
		if err != nil {
			return false, false, fmt.Errorf("failed to insert execution state: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return false, false, err
		}

		if affected == 0 {
			return false, false, nil
		}
	} else {
		_, err = tx.ExecContext(ctx, `
			UPDATE execution_states SET status = $3, variables = $4, updated_at = $5
			WHERE workflow_id = $1 AND lead_id = $2`,
			state.WorkflowID, state.LeadID, state.Status, variablesJSON, state.UpdatedAt)
		if err != nil {
			return false, false, fmt.Errorf("failed to update execution state: %w", err)
		}
	}

	settled = true

	err = tx.Commit()
	if err != nil {
		return false, false, fmt.Errorf("failed to commit execution state: %w", err)
	}

	return true, true, nil
}

func (r *ExecutionStateRepository) Upsert(
	ctx context.Context,
	workflowID, leadID string,
	entry models.HistoryEntry,
	status models.ExecutionStatus,
) error {
	historyJSON, err := json.Marshal([]models.HistoryEntry{entry})
	if err != nil {
		return persistence.NewExecutionStateError("Upsert", workflowID, leadID, err)
	}

	insertStatus := status
	if insertStatus == "" {
		insertStatus = models.ExecutionStatusRunning
	}

	query := `
		INSERT INTO execution_states (workflow_id, lead_id, current_node, status, variables, history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '{}', $5, $6, $6)
		ON CONFLICT (workflow_id, lead_id) DO UPDATE SET
			current_node = EXCLUDED.current_node,
			status = CASE WHEN $7::text = '' THEN execution_states.status ELSE EXCLUDED.status END,
			history = execution_states.history || EXCLUDED.history,
			updated_at = GREATEST(execution_states.updated_at, EXCLUDED.updated_at)
	`

	_, err = r.db.ExecContext(ctx, query,
		workflowID, leadID, entry.NodeID, insertStatus, historyJSON, entry.Timestamp, string(status))
	if err != nil {
		return persistence.NewExecutionStateError("Upsert", workflowID, leadID, err)
	}

	return nil
}

func (r *ExecutionStateRepository) MergeVariables(
	ctx context.Context,
	workflowID, leadID string,
	variables map[string]any,
	now time.Time,
) error {
	variablesJSON, err := json.Marshal(variables)
	if err != nil {
		return persistence.NewExecutionStateError("MergeVariables", workflowID, leadID, err)
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE execution_states SET variables = variables || $3::jsonb, updated_at = $4
		WHERE workflow_id = $1 AND lead_id = $2`,
		workflowID, leadID, string(variablesJSON), now.UTC())
	if err != nil {
		return persistence.NewExecutionStateError("MergeVariables", workflowID, leadID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionStateError("MergeVariables", workflowID, leadID, err)
	}

	if affected == 0 {
		return persistence.NewExecutionStateError("MergeVariables", workflowID, leadID, persistence.ErrExecutionStateNotFound)
	}

	return nil
}

func (r *ExecutionStateRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionState, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stateColumns+` FROM execution_states WHERE workflow_id = $1 ORDER BY lead_id`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution states: %w", err)
	}

	return collect(ctx, r.logger, rows, scanState)
}

func scanState(row scanner) (*models.ExecutionState, error) {
	var (
		state         models.ExecutionState
		variablesJSON []byte
		historyJSON   []byte
	)

	err := row.Scan(
		&state.WorkflowID,
		&state.LeadID,
		&state.CurrentNode,
		&state.Status,
		&variablesJSON,
		&historyJSON,
		&state.CreatedAt,
		&state.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(variablesJSON, &state.Variables)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
	}

	err = json.Unmarshal(historyJSON, &state.History)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}

	return &state, nil
}
