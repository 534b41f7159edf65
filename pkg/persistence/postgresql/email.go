package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	"github.com/google/uuid"
)

type EmailRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewEmailRepository(db *sql.DB, logger *slog.Logger) *EmailRepository {
	return &EmailRepository{db: db, logger: logger}
}

const emailColumns = `
	id
  , lead_id
  , account_id
  , message_id
  , direction
  , from_address
  , to_address
  , subject
  , body
  , sent_at
  , opened_at
  , clicked_at
`

func (r *EmailRepository) Get(ctx context.Context, id string) (*models.Email, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+emailColumns+` FROM emails WHERE id = $1`, id)

	email, err := scanEmail(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("email %s: %w", id, persistence.ErrEmailNotFound)
		}

		return nil, fmt.Errorf("failed to scan email %s: %w", id, err)
	}

	return email, nil
}

func (r *EmailRepository) LatestByLead(ctx context.Context, leadID string) (*models.Email, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+emailColumns+` FROM emails WHERE lead_id = $1 ORDER BY sent_at DESC, id DESC LIMIT 1`, leadID)

	email, err := scanEmail(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("latest email of lead %s: %w", leadID, persistence.ErrEmailNotFound)
		}

		return nil, fmt.Errorf("failed to scan latest email of lead %s: %w", leadID, err)
	}

	return email, nil
}

func (r *EmailRepository) Save(ctx context.Context, email *models.Email) error {
	if email.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate email ID: %w", err)
		}

		email.ID = id.String()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO emails (id, lead_id, account_id, message_id, direction, from_address, to_address, subject, body,
			sent_at, opened_at, clicked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			opened_at = EXCLUDED.opened_at,
			clicked_at = EXCLUDED.clicked_at`,
		email.ID, email.LeadID, email.AccountID, email.MessageID, email.Direction, email.From, email.To,
		email.Subject, email.Body, email.SentAt, email.OpenedAt, email.ClickedAt)
	if err != nil {
		return fmt.Errorf("failed to save email %s: %w", email.ID, err)
	}

	return nil
}

func scanEmail(row scanner) (*models.Email, error) {
	var (
		email     models.Email
		openedAt  sql.NullTime
		clickedAt sql.NullTime
	)

	err := row.Scan(&email.ID, &email.LeadID, &email.AccountID, &email.MessageID, &email.Direction, &email.From,
		&email.To, &email.Subject, &email.Body, &email.SentAt, &openedAt, &clickedAt)
	if err != nil {
		return nil, err
	}

	email.OpenedAt = nullTime(openedAt)
	email.ClickedAt = nullTime(clickedAt)

	return &email, nil
}
