package actions

import (
	"context"
	"fmt"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/jonboulle/clockwork"
)

type leadHandler struct {
	clock clockwork.Clock
	leads persistence.LeadRepository
}

func (h *leadHandler) updateLead(ctx context.Context, request Request, config *models.UpdateLeadConfig) (map[string]any, error) {
	if request.Lead == nil {
		return nil, ErrNoLead
	}

	update := models.LeadUpdate{
		Status:       config.Status,
		Score:        config.Score,
		Company:      config.Company,
		Tags:         config.Tags,
		CustomFields: config.CustomFields,
	}

	if config.Notes != nil {
		notes := Render(*config.Notes, request.Lead, request.Variables)
		update.Notes = &notes
	}

	if update.Empty() {
		return map[string]any{}, nil
	}

	lead, err := h.leads.Update(ctx, request.LeadID, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update lead: %w", err)
	}

	return map[string]any{"leadStatus": lead.Status, "leadScore": lead.Score}, nil
}
