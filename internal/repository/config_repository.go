package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"smartbot/internal/entities"
)

type ConfigRepository struct {
	db *pgxpool.Pool
}

func NewConfigRepository(db *pgxpool.Pool) *ConfigRepository {
	return &ConfigRepository{db: db}
}

// ActiveConfig returns the owner's active configuration with the lowest id.
// The explicit ordering is the tie-break when several are active.
func (r *ConfigRepository) ActiveConfig(ctx context.Context, ownerID int64) (*entities.BotConfiguration, error) {
	var c entities.BotConfiguration
	err := r.db.QueryRow(ctx, `
		SELECT id, owner_id, name, active, auto_reply_email, auto_reply_whatsapp,
		       COALESCE(working_hours_start, ''), COALESCE(working_hours_end, '')
		FROM bot_configurations
		WHERE owner_id = $1 AND active
		ORDER BY id
		LIMIT 1
	`, ownerID).Scan(&c.ID, &c.OwnerID, &c.Name, &c.Active, &c.AutoReplyEmail, &c.AutoReplyWhatsApp,
		&c.WorkingHoursStart, &c.WorkingHoursEnd)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entities.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}
