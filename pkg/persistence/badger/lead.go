package badger

import (
	"context"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/google/uuid"
)

type LeadRepository struct {
	store *Persistence
}

func leadKey(id string) []byte {
	return []byte(leadPrefix + id)
}

func (r *LeadRepository) Get(_ context.Context, id string) (*models.Lead, error) {
	var lead models.Lead

	var found bool

	err := r.store.db.View(func(txn *badgerdb.Txn) error {
		var err error

		found, err = load(txn, leadKey(id), &lead)

		return err
	})
	if err != nil {
		return nil, persistence.NewLeadError("Get", id, err)
	}

	if !found {
		return nil, persistence.NewLeadError("Get", id, persistence.ErrLeadNotFound)
	}

	return &lead, nil
}

func (r *LeadRepository) Save(ctx context.Context, lead *models.Lead) error {
	now := time.Now().UTC()

	if lead.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate lead ID: %w", err)
		}

		lead.ID = id.String()
	}

	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}

	if lead.UpdatedAt.IsZero() {
		lead.UpdatedAt = now
	}

	err := r.store.update(ctx, func(txn *badgerdb.Txn) error {
		return store(txn, leadKey(lead.ID), lead)
	})
	if err != nil {
		return persistence.NewLeadError("Save", lead.ID, err)
	}

	return nil
}

// Update merges the partial update inside one transaction, retried on conflict.
func (r *LeadRepository) Update(ctx context.Context, id string, update models.LeadUpdate) (*models.Lead, error) {
	var updated models.Lead

	err := r.store.update(ctx, func(txn *badgerdb.Txn) error {
		updated = models.Lead{}

		found, err := load(txn, leadKey(id), &updated)
		if err != nil {
			return err
		}

		if !found {
			return persistence.ErrLeadNotFound
		}

		err = updated.Apply(update, time.Now().UTC())
		if err != nil {
			return err
		}

		return store(txn, leadKey(id), &updated)
	})
	if err != nil {
		return nil, persistence.NewLeadError("Update", id, err)
	}

	return &updated, nil
}
