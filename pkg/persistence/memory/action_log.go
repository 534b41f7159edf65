package memory

import (
	"context"
	"sync"

	"github.com/dukex/leadflow/pkg/models"
)

// ActionLogRepository is an append-only slice.
type ActionLogRepository struct {
	mu      sync.RWMutex
	entries []*models.ActionLogEntry
}

func NewActionLogRepository() *ActionLogRepository {
	return &ActionLogRepository{}
}

func (r *ActionLogRepository) Append(_ context.Context, entry *models.ActionLogEntry) error {
	copied := *entry

	r.mu.Lock()
	r.entries = append(r.entries, &copied)
	r.mu.Unlock()

	return nil
}

func (r *ActionLogRepository) ListByWorkflow(_ context.Context, workflowID string) ([]*models.ActionLogEntry, error) {
	return r.filter(func(entry *models.ActionLogEntry) bool { return entry.WorkflowID == workflowID }), nil
}

func (r *ActionLogRepository) ListByLead(_ context.Context, leadID string) ([]*models.ActionLogEntry, error) {
	return r.filter(func(entry *models.ActionLogEntry) bool { return entry.LeadID == leadID }), nil
}

func (r *ActionLogRepository) filter(keep func(*models.ActionLogEntry) bool) []*models.ActionLogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*models.ActionLogEntry, 0)

	for _, entry := range r.entries {
		if keep(entry) {
			copied := *entry
			entries = append(entries, &copied)
		}
	}

	return entries
}
