package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/dukex/leadflow/pkg/models"
)

// ActionLogRepository appends entries under sequence-ordered keys.
type ActionLogRepository struct {
	store *Persistence
}

func (r *ActionLogRepository) Append(ctx context.Context, entry *models.ActionLogEntry) error {
	key, err := r.store.recordKey(logPrefix)
	if err != nil {
		return err
	}

	err = r.store.update(ctx, func(txn *badgerdb.Txn) error {
		return store(txn, key, entry)
	})
	if err != nil {
		return fmt.Errorf("failed to append action log entry: %w", err)
	}

	return nil
}

func (r *ActionLogRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.ActionLogEntry, error) {
	return scan(r.store.db, logPrefix, func(entry *models.ActionLogEntry) bool {
		return entry.WorkflowID == workflowID
	})
}

func (r *ActionLogRepository) ListByLead(_ context.Context, leadID string) ([]*models.ActionLogEntry, error) {
	return scan(r.store.db, logPrefix, func(entry *models.ActionLogEntry) bool {
		return entry.LeadID == leadID
	})
}
