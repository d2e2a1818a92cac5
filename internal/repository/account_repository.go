package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"smartbot/internal/entities"
)

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, owner_id, channel, address, active, smtp_host, smtp_port, imap_host, imap_port, username, password`

func scanAccount(row pgx.Row) (*entities.ChannelAccount, error) {
	var a entities.ChannelAccount
	err := row.Scan(&a.ID, &a.OwnerID, &a.Channel, &a.Address, &a.Active,
		&a.SMTPHost, &a.SMTPPort, &a.IMAPHost, &a.IMAPPort, &a.Username, &a.Password)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ActiveAccount resolves the owner's dispatch account for a channel, lowest
// id first.
func (r *AccountRepository) ActiveAccount(ctx context.Context, ownerID int64, ch entities.Channel) (*entities.ChannelAccount, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM channel_accounts
		WHERE owner_id = $1 AND channel = $2 AND active
		ORDER BY id
		LIMIT 1
	`, ownerID, ch)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entities.ErrNoAccount
		}
		return nil, err
	}
	return account, nil
}

func (r *AccountRepository) ListActive(ctx context.Context, ch entities.Channel) ([]entities.ChannelAccount, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+accountColumns+` FROM channel_accounts
		WHERE channel = $1 AND active
		ORDER BY id
	`, ch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := []entities.ChannelAccount{}
	for rows.Next() {
		var a entities.ChannelAccount
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Channel, &a.Address, &a.Active,
			&a.SMTPHost, &a.SMTPPort, &a.IMAPHost, &a.IMAPPort, &a.Username, &a.Password); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// OwnerByAddress maps an inbound recipient address to the owning user.
func (r *AccountRepository) OwnerByAddress(ctx context.Context, ch entities.Channel, address string) (int64, error) {
	var ownerID int64
	err := r.db.QueryRow(ctx, `
		SELECT owner_id FROM channel_accounts
		WHERE channel = $1 AND LOWER(address) = LOWER($2) AND active
		ORDER BY id
		LIMIT 1
	`, ch, address).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, entities.ErrNotFound
		}
		return 0, err
	}
	return ownerID, nil
}
