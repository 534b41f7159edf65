package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/google/uuid"
)

type EmailRepository struct {
	mu     sync.RWMutex
	emails map[string]*models.Email
}

func NewEmailRepository() *EmailRepository {
	return &EmailRepository{emails: make(map[string]*models.Email)}
}

func (r *EmailRepository) Get(_ context.Context, id string) (*models.Email, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email, ok := r.emails[id]
	if !ok {
		return nil, fmt.Errorf("email %s: %w", id, persistence.ErrEmailNotFound)
	}

	copied := *email

	return &copied, nil
}

func (r *EmailRepository) LatestByLead(_ context.Context, leadID string) (*models.Email, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *models.Email

	for _, email := range r.emails {
		if email.LeadID != leadID {
			continue
		}

		if latest == nil || email.SentAfter(latest) {
			latest = email
		}
	}

	if latest == nil {
		return nil, fmt.Errorf("latest email of lead %s: %w", leadID, persistence.ErrEmailNotFound)
	}

	copied := *latest

	return &copied, nil
}

func (r *EmailRepository) Save(_ context.Context, email *models.Email) error {
	if email.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate email ID: %w", err)
		}

		email.ID = id.String()
	}

	copied := *email

	r.mu.Lock()
	r.emails[email.ID] = &copied
	r.mu.Unlock()

	return nil
}
