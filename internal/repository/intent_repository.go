package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"smartbot/internal/entities"
)

type IntentRepository struct {
	db *pgxpool.Pool
}

func NewIntentRepository(db *pgxpool.Pool) *IntentRepository {
	return &IntentRepository{db: db}
}

// ListIntents returns the full catalog in id order; the classifier relies on
// that order for deterministic tie-breaking.
func (r *IntentRepository) ListIntents(ctx context.Context) ([]entities.Intent, error) {
	rows, err := r.db.Query(ctx, "SELECT id, category_id, name, description, keywords FROM intents ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	intents := []entities.Intent{}
	for rows.Next() {
		var i entities.Intent
		if err := rows.Scan(&i.ID, &i.CategoryID, &i.Name, &i.Description, &i.Keywords); err != nil {
			return nil, err
		}
		intents = append(intents, i)
	}
	return intents, rows.Err()
}
