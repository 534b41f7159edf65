package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// LeadRepository handles lead operations. Updates lock the lead row only.
type LeadRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewLeadRepository(db *sql.DB, logger *slog.Logger) *LeadRepository {
	return &LeadRepository{db: db, logger: logger}
}

const leadColumns = `
	id
  , name
  , email
  , status
  , score
  , company
  , tags
  , notes
  , custom_fields
  , owner_id
  , last_contacted_at
  , created_at
  , updated_at
`

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *LeadRepository) Get(ctx context.Context, id string) (*models.Lead, error) {
	return r.get(ctx, r.db, id, "")
}

func (r *LeadRepository) get(ctx context.Context, db queryRower, id, suffix string) (*models.Lead, error) {
	row := db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`+suffix, id)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = persistence.ErrLeadNotFound
		}

		return nil, persistence.NewLeadError("Get", id, err)
	}

	return lead, nil
}

func (r *LeadRepository) Save(ctx context.Context, lead *models.Lead) error {
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

	err := r.write(ctx, r.db, lead, `
		INSERT INTO leads (id, name, email, status, score, company, tags, notes, custom_fields, owner_id,
			last_contacted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			status = EXCLUDED.status,
			score = EXCLUDED.score,
			company = EXCLUDED.company,
			tags = EXCLUDED.tags,
			notes = EXCLUDED.notes,
			custom_fields = EXCLUDED.custom_fields,
			owner_id = EXCLUDED.owner_id,
			last_contacted_at = EXCLUDED.last_contacted_at,
			updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return persistence.NewLeadError("Save", lead.ID, err)
	}

	return nil
}

// Update reads the lead FOR UPDATE, merges the partial update and writes it back in one transaction.
func (r *LeadRepository) Update(ctx context.Context, id string, update models.LeadUpdate) (*models.Lead, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, persistence.NewLeadError("Update", id, err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	lead, err := r.get(ctx, tx, id, " FOR UPDATE")
	if err != nil {
		return nil, err
	}

	err = lead.Apply(update, time.Now().UTC())
	if err != nil {
		return nil, persistence.NewLeadError("Update", id, err)
	}

	err = r.write(ctx, tx, lead, `
		UPDATE leads SET name = $2, email = $3, status = $4, score = $5, company = $6, tags = $7, notes = $8,
			custom_fields = $9, owner_id = $10, last_contacted_at = $11, created_at = $12, updated_at = $13
		WHERE id = $1`)
	if err != nil {
		return nil, persistence.NewLeadError("Update", id, err)
	}

	err = tx.Commit()
	if err != nil {
		return nil, persistence.NewLeadError("Update", id, err)
	}

	return lead, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *LeadRepository) write(ctx context.Context, db execer, lead *models.Lead, query string) error {
	tags := lead.Tags
	if tags == nil {
		tags = []string{}
	}

	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	customFields := lead.CustomFields
	if customFields == nil {
		customFields = map[string]any{}
	}

	customFieldsJSON, err := json.Marshal(customFields)
	if err != nil {
		return fmt.Errorf("failed to marshal custom fields: %w", err)
	}

	_, err = db.ExecContext(ctx, query,
		lead.ID, lead.Name, lead.Email, lead.Status, lead.Score, lead.Company, tagsJSON, lead.Notes,
		customFieldsJSON, lead.OwnerID, lead.LastContactedAt, lead.CreatedAt, lead.UpdatedAt)

	return err
}

func scanLead(row scanner) (*models.Lead, error) {
	var (
		lead             models.Lead
		tagsJSON         []byte
		customFieldsJSON []byte
		lastContactedAt  sql.NullTime
	)

	err := row.Scan(&lead.ID, &lead.Name, &lead.Email, &lead.Status, &lead.Score, &lead.Company, &tagsJSON,
		&lead.Notes, &customFieldsJSON, &lead.OwnerID, &lastContactedAt, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(tagsJSON, &lead.Tags)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}

	err = json.Unmarshal(customFieldsJSON, &lead.CustomFields)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal custom fields: %w", err)
	}

	lead.LastContactedAt = nullTime(lastContactedAt)

	return &lead, nil
}
