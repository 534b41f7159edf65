// Package dev provides collaborators for local runs and tests: nothing leaves the process.
package dev

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

var ErrNoRecipient = errors.New("email has no recipient")

// LogEmailSender logs emails instead of delivering them.
type LogEmailSender struct {
	logger *slog.Logger
}

func NewLogEmailSender(logger *slog.Logger) *LogEmailSender {
	return &LogEmailSender{logger: logger.With("module", "dev_email_sender")}
}

func (s *LogEmailSender) Send(ctx context.Context, accountID, to, subject, body string) (string, error) {
	if to == "" {
		return "", ErrNoRecipient
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate message ID: %w", err)
	}

	messageID := "<" + id.String() + "@leadflow.dev>"

	s.logger.InfoContext(ctx, "email sent",
		"account_id", accountID,
		"to", to,
		"subject", subject,
		"body_length", len(body),
		"message_id", messageID)

	return messageID, nil
}
