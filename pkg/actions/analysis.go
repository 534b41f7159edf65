package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/dukex/leadflow/pkg/protocol"
	"github.com/jonboulle/clockwork"
)

const (
	defaultContentVariable  = "generatedContent"
	defaultGeneratedSubject = "Following up"
)

type analysisHandler struct {
	logger    *slog.Logger
	clock     clockwork.Clock
	analyzer  protocol.EmailAnalyzer
	generator protocol.ContentGenerator
	emails    persistence.EmailRepository
	leads     persistence.LeadRepository
	sender    *emailHandler
}

func (h *analysisHandler) generateContent(
	ctx context.Context,
	request Request,
	config *models.GenerateAIContentConfig,
) (map[string]any, error) {
	if h.generator == nil {
		return nil, errors.New("no content generator configured")
	}

	content, err := h.generator.Generate(ctx, protocol.GenerateRequest{
		Prompt:  Render(config.Prompt, request.Lead, request.Variables),
		ModelID: config.ModelID,
		Tone:    config.Tone,
		Length:  config.Length,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	variable := config.VariableName
	if variable == "" {
		variable = defaultContentVariable
	}

	output := map[string]any{variable: content}

	if !config.SendEmail {
		return output, nil
	}

	subject := Render(config.Subject, request.Lead, request.Variables)
	if subject == "" {
		subject = defaultGeneratedSubject
	}

	sent, err := h.sender.send(ctx, request, config.AccountID, "", subject, content)
	if err != nil {
		return nil, err
	}

	for k, v := range sent {
		output[k] = v
	}

	return output, nil
}

func (h *analysisHandler) analyzeEmail(ctx context.Context, request Request, config *models.AnalyzeEmailConfig) (map[string]any, error) {
	if h.analyzer == nil {
		return nil, errors.New("no email analyzer configured")
	}

	email, err := h.resolveEmail(ctx, request, config.EmailID)
	if err != nil {
		return nil, err
	}

	analysis, err := h.analyzer.Analyze(ctx, email.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze email %s: %w", email.ID, err)
	}

	return map[string]any{
		"analyzedEmailId": email.ID,
		"sentiment":       string(analysis.Sentiment),
		"summary":         analysis.Summary,
		"keyPoints":       analysis.KeyPoints,
		"actionItems":     analysis.ActionItems,
	}, nil
}

// resolveEmail loads the configured email, or the lead's latest one when emailID is empty.
func (h *analysisHandler) resolveEmail(ctx context.Context, request Request, emailID string) (*models.Email, error) {
	emailID = Render(emailID, request.Lead, request.Variables)
	if emailID != "" {
		email, err := h.emails.Get(ctx, emailID)
		if err != nil {
			return nil, fmt.Errorf("failed to load email: %w", err)
		}

		return email, nil
	}

	if request.LeadID == "" {
		return nil, ErrNoLead
	}

	email, err := h.emails.LatestByLead(ctx, request.LeadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest email: %w", err)
	}

	return email, nil
}

func (h *analysisHandler) categorizeLead(ctx context.Context, request Request, config *models.CategorizeLeadConfig) (map[string]any, error) {
	if request.Lead == nil {
		return nil, ErrNoLead
	}

	var detection Detection

	if !config.AutoDetect && config.Category != "" {
		if !config.Category.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidConfig, config.Category)
		}

		detection = Detection{Category: config.Category, Reason: "set by workflow"}
	} else {
		var err error

		detection, err = h.detect(ctx, request, config.EmailID)
		if err != nil {
			return nil, err
		}
	}

	_, err := h.leads.Update(ctx, request.LeadID, models.LeadUpdate{
		CustomFields: map[string]any{
			"category":       string(detection.Category),
			"categoryReason": detection.Reason,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store lead category: %w", err)
	}

	return map[string]any{
		"category":       string(detection.Category),
		"categoryReason": detection.Reason,
	}, nil
}

func (h *analysisHandler) detect(ctx context.Context, request Request, emailID string) (Detection, error) {
	email, err := h.resolveEmail(ctx, request, emailID)
	if errors.Is(err, persistence.ErrEmailNotFound) {
		return Detection{Category: models.CategoryNew, Reason: "no email to analyze"}, nil
	}

	if err != nil {
		return Detection{}, err
	}

	var sentiment models.Sentiment

	if h.analyzer != nil {
		analysis, err := h.analyzer.Analyze(ctx, email.ID)
		if err != nil {
			return Detection{}, fmt.Errorf("failed to analyze email %s: %w", email.ID, err)
		}

		sentiment = analysis.Sentiment
	} else {
		h.logger.WarnContext(ctx, "no email analyzer configured, categorizing on keywords only", "lead_id", request.LeadID)
	}

	return Detect(email.Text(), sentiment), nil
}
