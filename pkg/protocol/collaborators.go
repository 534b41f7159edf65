// Package protocol defines the contracts between the engine and the outside world.
package protocol

import (
	"context"

	"github.com/dukex/leadflow/pkg/models"
)

// EmailSender delivers an email through the given account and returns the provider message id.
type EmailSender interface {
	Send(ctx context.Context, accountID, to, subject, body string) (string, error)
}

// ContentGenerator produces text from a prompt.
type ContentGenerator interface {
	Generate(ctx context.Context, request GenerateRequest) (string, error)
}

// GenerateRequest is what a ContentGenerator receives. Zero values mean provider defaults.
type GenerateRequest struct {
	Prompt  string
	ModelID string
	Tone    string
	Length  string
}

// EmailAnalyzer extracts sentiment and key points from a stored email.
type EmailAnalyzer interface {
	Analyze(ctx context.Context, emailID string) (*models.EmailAnalysis, error)
}
