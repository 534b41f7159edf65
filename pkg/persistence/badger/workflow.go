package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/google/uuid"
)

type WorkflowRepository struct {
	store *Persistence
}

func workflowKey(id string) []byte {
	return []byte(workflowPrefix + id)
}

func (r *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	var workflow models.Workflow

	var found bool

	err := r.store.db.View(func(txn *badgerdb.Txn) error {
		var err error

		found, err = load(txn, workflowKey(id), &workflow)

		return err
	})
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	if !found {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return &workflow, nil
}

func (r *WorkflowRepository) ListActiveWithTrigger(_ context.Context, triggerType models.TriggerType) ([]*models.Workflow, error) {
	return scan(r.store.db, workflowPrefix, func(workflow *models.Workflow) bool {
		return workflow.IsActive && workflow.HasTrigger(triggerType)
	})
}

func (r *WorkflowRepository) GetAll(_ context.Context) ([]*models.Workflow, error) {
	return scan[models.Workflow](r.store.db, workflowPrefix, nil)
}

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	now := time.Now().UTC()

	if workflow.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		workflow.ID = id.String()
	}

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	err := r.store.update(ctx, func(txn *badgerdb.Txn) error {
		return store(txn, workflowKey(workflow.ID), workflow)
	})
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	err := r.store.update(ctx, func(txn *badgerdb.Txn) error {
		_, err := txn.Get(workflowKey(id))
		if err != nil {
			return err
		}

		return txn.Delete(workflowKey(id))
	})
	if err != nil {
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			err = persistence.ErrWorkflowNotFound
		}

		return persistence.NewWorkflowError("Delete", id, err)
	}

	return nil
}
