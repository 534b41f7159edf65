package badger

import (
	"context"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v3"
	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/google/uuid"
)

type EmailRepository struct {
	store *Persistence
}

func emailKey(id string) []byte {
	return []byte(emailPrefix + id)
}

func (r *EmailRepository) Get(_ context.Context, id string) (*models.Email, error) {
	var email models.Email

	var found bool

	err := r.store.db.View(func(txn *badgerdb.Txn) error {
		var err error

		found, err = load(txn, emailKey(id), &email)

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load email %s: %w", id, err)
	}

	if !found {
		return nil, fmt.Errorf("email %s: %w", id, persistence.ErrEmailNotFound)
	}

	return &email, nil
}

// LatestByLead scans every email; leads have few enough emails for this to stay cheap.
func (r *EmailRepository) LatestByLead(_ context.Context, leadID string) (*models.Email, error) {
	emails, err := scan(r.store.db, emailPrefix, func(email *models.Email) bool {
		return email.LeadID == leadID
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list emails of lead %s: %w", leadID, err)
	}

	var latest *models.Email

	for _, email := range emails {
		if latest == nil || email.SentAfter(latest) {
			latest = email
		}
	}

	if latest == nil {
		return nil, fmt.Errorf("latest email of lead %s: %w", leadID, persistence.ErrEmailNotFound)
	}

	return latest, nil
}

func (r *EmailRepository) Save(ctx context.Context, email *models.Email) error {
	if email.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate email ID: %w", err)
		}

		email.ID = id.String()
	}

	err := r.store.update(ctx, func(txn *badgerdb.Txn) error {
		return store(txn, emailKey(email.ID), email)
	})
	if err != nil {
		return fmt.Errorf("failed to save email %s: %w", email.ID, err)
	}

	return nil
}
