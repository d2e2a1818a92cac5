package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"smartbot/internal/entities"
)

type TemplateRepository struct {
	db *pgxpool.Pool
}

func NewTemplateRepository(db *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{db: db}
}

const templateColumns = `id, owner_id, name, content, scope, is_default, category_id`

func scanTemplate(row pgx.Row) (*entities.ResponseTemplate, error) {
	var t entities.ResponseTemplate
	err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Content, &t.Scope, &t.IsDefault, &t.CategoryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entities.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ForIntent finds the owner's lowest-id template whose scope covers the
// channel and whose linked category contains an intent with that exact name.
func (r *TemplateRepository) ForIntent(ctx context.Context, ownerID int64, ch entities.Channel, intentName string) (*entities.ResponseTemplate, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+templateColumns+` FROM response_templates t
		WHERE t.owner_id = $1
		  AND t.scope IN ($2, 'both')
		  AND t.category_id IS NOT NULL
		  AND EXISTS (
			SELECT 1 FROM intents i
			WHERE i.category_id = t.category_id AND i.name = $3
		  )
		ORDER BY t.id
		LIMIT 1
	`, ownerID, ch, intentName)
	return scanTemplate(row)
}

func (r *TemplateRepository) Default(ctx context.Context, ownerID int64, ch entities.Channel) (*entities.ResponseTemplate, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+templateColumns+` FROM response_templates
		WHERE owner_id = $1 AND scope IN ($2, 'both') AND is_default
		ORDER BY id
		LIMIT 1
	`, ownerID, ch)
	return scanTemplate(row)
}

func (r *TemplateRepository) FirstForChannel(ctx context.Context, ownerID int64, ch entities.Channel) (*entities.ResponseTemplate, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+templateColumns+` FROM response_templates
		WHERE owner_id = $1 AND scope IN ($2, 'both')
		ORDER BY id
		LIMIT 1
	`, ownerID, ch)
	return scanTemplate(row)
}
