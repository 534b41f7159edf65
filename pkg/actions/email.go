package actions

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/protocol"
	"github.com/jonboulle/clockwork"
)

var ErrNoRecipient = errors.New("no recipient for email")

type emailHandler struct {
	clock  clockwork.Clock
	sender protocol.EmailSender
	emails persistence.EmailRepository
	leads  persistence.LeadRepository
}

func (h *emailHandler) sendEmail(ctx context.Context, request Request, config *models.SendEmailConfig) (map[string]any, error) {
	return h.send(ctx, request, config.AccountID,
		Render(config.To, request.Lead, request.Variables),
		Render(config.Subject, request.Lead, request.Variables),
		Render(config.Body, request.Lead, request.Variables))
}

// send delivers an already rendered email, keeps a copy and marks the lead as contacted.
func (h *emailHandler) send(ctx context.Context, request Request, accountID, to, subject, body string) (map[string]any, error) {
	if h.sender == nil {
		return nil, errors.New("no email sender configured")
	}

	if to == "" && request.Lead != nil {
		to = request.Lead.Email
	}

	if to == "" {
		return nil, ErrNoRecipient
	}

	messageID, err := h.sender.Send(ctx, accountID, to, subject, body)
	if err != nil {
		return nil, fmt.Errorf("failed to send email: %w", err)
	}

	now := h.clock.Now().UTC()

	email := &models.Email{
		LeadID:    request.LeadID,
		AccountID: accountID,
		MessageID: messageID,
		Direction: models.EmailOutbound,
		From:      accountID,
		To:        to,
		Subject:   subject,
		Body:      body,
		SentAt:    now,
	}

	err = h.emails.Save(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to store sent email: %w", err)
	}

	if request.Lead != nil {
		_, err = h.leads.Update(ctx, request.LeadID, models.LeadUpdate{LastContactedAt: &now})
		if err != nil {
			return nil, fmt.Errorf("failed to mark lead as contacted: %w", err)
		}
	}

	return map[string]any{
		"lastMessageId": messageID,
		"lastEmailId":   email.ID,
		"lastEmailTo":   to,
	}, nil
}
