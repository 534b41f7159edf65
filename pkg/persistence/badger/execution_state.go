package badger

import (
	"context"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
)

// ExecutionStateRepository stores one document per (workflow, lead).
// Appends are read-modify-write transactions; badger's conflict detection makes them atomic.
type ExecutionStateRepository struct {
	store *Persistence
}

func stateKey(workflowID, leadID string) []byte {
	return []byte(statePrefix + workflowID + "/" + leadID)
}

func (r *ExecutionStateRepository) Get(_ context.Context, workflowID, leadID string) (*models.ExecutionState, error) {
	var state models.ExecutionState

	var found bool

	err := r.store.db.View(func(txn *badgerdb.Txn) error {
		var err error

		found, err = load(txn, stateKey(workflowID, leadID), &state)

		return err
	})
	if err != nil {
		return nil, persistence.NewExecutionStateError("Get", workflowID, leadID, err)
	}

	if !found {
		return nil, persistence.NewExecutionStateError("Get", workflowID, leadID, persistence.ErrExecutionStateNotFound)
	}

	return &state, nil
}

func (r *ExecutionStateRepository) Begin(ctx context.Context, start models.ExecutionStart) (bool, error) {
	var started bool

	err := r.store.update(ctx, func(txn *badgerdb.Txn) error {
		key := stateKey(start.WorkflowID, start.LeadID)

		existing := &models.ExecutionState{}

		found, err := load(txn, key, existing)
		if err != nil {
			return err
		}

		if !found {
			existing = nil
		}

		var state *models.ExecutionState

		state, started = start.Apply(existing)
		if !started {
			return nil
		}

		return store(txn, key, state)
	})
	if err != nil {
		return false, persistence.NewExecutionStateError("Begin", start.WorkflowID, start.LeadID, err)
	}

	return started, nil
}

func (r *ExecutionStateRepository) Upsert(
	ctx context.Context,
	workflowID, leadID string,
	entry models.HistoryEntry,
	status models.ExecutionStatus,
) error {
	err := r.store.update(ctx, func(txn *badgerdb.Txn) error {
		key := stateKey(workflowID, leadID)

		state := &models.ExecutionState{}

		found, err := load(txn, key, state)
		if err != nil {
			return err
		}

		if !found {
			state = models.NewExecutionState(workflowID, leadID, entry.Timestamp)
		}

		state.Record(entry, status)

		return store(txn, key, state)
	})
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
	err := r.store.update(ctx, func(txn *badgerdb.Txn) error {
		key := stateKey(workflowID, leadID)

		var state models.ExecutionState

		found, err := load(txn, key, &state)
		if err != nil {
			return err
		}

		if !found {
			return persistence.ErrExecutionStateNotFound
		}

		state.MergeVariables(variables, now.UTC())

		return store(txn, key, &state)
	})
	if err != nil {
		return persistence.NewExecutionStateError("MergeVariables", workflowID, leadID, err)
	}

	return nil
}

func (r *ExecutionStateRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.ExecutionState, error) {
	return scan(r.store.db, statePrefix+workflowID+"/", func(state *models.ExecutionState) bool {
		return state.WorkflowID == workflowID
	})
}
