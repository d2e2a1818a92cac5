package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"smartbot/internal/entities"
)

type MessageRepository struct {
	db *pgxpool.Pool
}

func NewMessageRepository(db *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *entities.Message) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO messages (owner_id, channel, sender, recipient, subject, body, status, received_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
		RETURNING id
	`, msg.OwnerID, msg.Channel, msg.Sender, msg.Recipient, msg.Subject, msg.Body, msg.Status, msg.ReceivedAt).Scan(&msg.ID)
}

const messageColumns = `id, owner_id, channel, sender, recipient, COALESCE(subject, ''), body, status, received_at, processed_at`

func scanMessage(row pgx.Row) (*entities.Message, error) {
	var m entities.Message
	err := row.Scan(&m.ID, &m.OwnerID, &m.Channel, &m.Sender, &m.Recipient, &m.Subject, &m.Body, &m.Status, &m.ReceivedAt, &m.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entities.ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*entities.Message, error) {
	row := r.db.QueryRow(ctx, "SELECT "+messageColumns+" FROM messages WHERE id = $1", id)
	return scanMessage(row)
}

func (r *MessageRepository) ListByStatus(ctx context.Context, status entities.MessageStatus) ([]entities.Message, error) {
	rows, err := r.db.Query(ctx, "SELECT "+messageColumns+" FROM messages WHERE status = $1 ORDER BY id", status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func (r *MessageRepository) ListByOwner(ctx context.Context, ownerID int64, status entities.MessageStatus) ([]entities.Message, error) {
	query := "SELECT " + messageColumns + " FROM messages WHERE owner_id = $1 ORDER BY received_at DESC"
	args := []any{ownerID}
	if status != "" {
		query = "SELECT " + messageColumns + " FROM messages WHERE owner_id = $1 AND status = $2 ORDER BY received_at DESC"
		args = append(args, status)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

func collectMessages(rows pgx.Rows) ([]entities.Message, error) {
	messages := []entities.Message{}
	for rows.Next() {
		var m entities.Message
		if err := rows.Scan(&m.ID, &m.OwnerID, &m.Channel, &m.Sender, &m.Recipient, &m.Subject, &m.Body, &m.Status, &m.ReceivedAt, &m.ProcessedAt); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ClaimProcessing is the atomic received -> processed transition; the WHERE
// clause makes it the per-message mutual exclusion point across workers.
func (r *MessageRepository) ClaimProcessing(ctx context.Context, id int64, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE messages SET status = $1, processed_at = $2
		WHERE id = $3 AND status = $4
	`, entities.StatusProcessed, at, id, entities.StatusReceived)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *MessageRepository) SetStatus(ctx context.Context, id int64, status entities.MessageStatus) error {
	_, err := r.db.Exec(ctx, "UPDATE messages SET status = $1 WHERE id = $2", status, id)
	return err
}

func (r *MessageRepository) AddIntentLink(ctx context.Context, link *entities.MessageIntent) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO message_intents (message_id, intent_id, confidence)
		VALUES ($1, $2, $3)
		RETURNING id
	`, link.MessageID, link.IntentID, link.Confidence).Scan(&link.ID)
}

func (r *MessageRepository) CreateResponse(ctx context.Context, resp *entities.MessageResponse) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO message_responses (original_message_id, content, template_id, sent_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, resp.OriginalMessageID, resp.Content, resp.TemplateID, resp.SentAt).Scan(&resp.ID)
}

// CountByStatus powers the messages overview endpoint.
func (r *MessageRepository) CountByStatus(ctx context.Context, ownerID int64) (map[entities.MessageStatus]int, error) {
	rows, err := r.db.Query(ctx, "SELECT status, COUNT(*) FROM messages WHERE owner_id = $1 GROUP BY status", ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[entities.MessageStatus]int{}
	for rows.Next() {
		var status entities.MessageStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
