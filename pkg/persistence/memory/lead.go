package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/google/uuid"
)

type leadSlot struct {
	mu   sync.Mutex
	lead *models.Lead
}

// LeadRepository serializes updates per lead.
type LeadRepository struct {
	mu    sync.Mutex
	leads map[string]*leadSlot
}

func NewLeadRepository() *LeadRepository {
	return &LeadRepository{leads: make(map[string]*leadSlot)}
}

func (r *LeadRepository) slot(id string, create bool) *leadSlot {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, ok := r.leads[id]
	if !ok && create {
		slot = &leadSlot{}
		r.leads[id] = slot
	}

	return slot
}

func (r *LeadRepository) Get(_ context.Context, id string) (*models.Lead, error) {
	slot := r.slot(id, false)
	if slot == nil {
		return nil, persistence.NewLeadError("Get", id, persistence.ErrLeadNotFound)
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.lead == nil {
		return nil, persistence.NewLeadError("Get", id, persistence.ErrLeadNotFound)
	}

	return slot.lead.Clone(), nil
}

func (r *LeadRepository) Save(_ context.Context, lead *models.Lead) error {
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

	slot := r.slot(lead.ID, true)

	slot.mu.Lock()
	slot.lead = lead.Clone()
	slot.mu.Unlock()

	return nil
}

func (r *LeadRepository) Update(_ context.Context, id string, update models.LeadUpdate) (*models.Lead, error) {
	slot := r.slot(id, false)
	if slot == nil {
		return nil, persistence.NewLeadError("Update", id, persistence.ErrLeadNotFound)
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.lead == nil {
		return nil, persistence.NewLeadError("Update", id, persistence.ErrLeadNotFound)
	}

	lead := slot.lead.Clone()

	err := lead.Apply(update, time.Now().UTC())
	if err != nil {
		return nil, persistence.NewLeadError("Update", id, err)
	}

	slot.lead = lead.Clone()

	return lead, nil
}
