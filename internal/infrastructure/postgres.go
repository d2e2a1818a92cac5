package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(connString string) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	// Pool configuration
	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	client := &PostgresClient{Pool: pool}

	if err := client.Migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return client, nil
}

func (p *PostgresClient) Migrate() error {
	ctx := context.Background()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(20) DEFAULT 'user',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS bot_configurations (
			id BIGSERIAL PRIMARY KEY,
			owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(100) NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			auto_reply_email BOOLEAN NOT NULL DEFAULT TRUE,
			auto_reply_whatsapp BOOLEAN NOT NULL DEFAULT TRUE,
			working_hours_start VARCHAR(5),
			working_hours_end VARCHAR(5),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS intent_categories (
			id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) UNIQUE NOT NULL,
			description TEXT NOT NULL DEFAULT ''
		);`,

		`CREATE TABLE IF NOT EXISTS intents (
			id BIGSERIAL PRIMARY KEY,
			category_id BIGINT NOT NULL REFERENCES intent_categories(id) ON DELETE CASCADE,
			name VARCHAR(100) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			keywords TEXT NOT NULL DEFAULT ''
		);`,

		`CREATE TABLE IF NOT EXISTS response_templates (
			id BIGSERIAL PRIMARY KEY,
			owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(100) NOT NULL,
			content TEXT NOT NULL,
			scope VARCHAR(10) NOT NULL DEFAULT 'both',
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			category_id BIGINT REFERENCES intent_categories(id) ON DELETE SET NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS channel_accounts (
			id BIGSERIAL PRIMARY KEY,
			owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			channel VARCHAR(10) NOT NULL,
			address VARCHAR(255) NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			smtp_host VARCHAR(255) NOT NULL DEFAULT '',
			smtp_port INT NOT NULL DEFAULT 587,
			imap_host VARCHAR(255) NOT NULL DEFAULT '',
			imap_port INT NOT NULL DEFAULT 993,
			username VARCHAR(255) NOT NULL DEFAULT '',
			password VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_channel_accounts_lookup
			ON channel_accounts (channel, address) WHERE active;`,

		`CREATE TABLE IF NOT EXISTS messages (
			id BIGSERIAL PRIMARY KEY,
			owner_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			channel VARCHAR(10) NOT NULL,
			sender VARCHAR(255) NOT NULL,
			recipient VARCHAR(255) NOT NULL,
			subject VARCHAR(255),
			body TEXT NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'received',
			received_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			processed_at TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_status ON messages (status, id);`,

		`CREATE TABLE IF NOT EXISTS message_intents (
			id BIGSERIAL PRIMARY KEY,
			message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			intent_id BIGINT NOT NULL REFERENCES intents(id) ON DELETE CASCADE,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);`,

		`CREATE TABLE IF NOT EXISTS message_responses (
			id BIGSERIAL PRIMARY KEY,
			original_message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			template_id BIGINT REFERENCES response_templates(id) ON DELETE SET NULL,
			sent_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
	}

	for _, stmt := range statements {
		if _, err := p.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement failed: %w", err)
		}
	}

	return p.seedIntents(ctx)
}

// seedIntents installs a starter intent catalog on a fresh database so the
// keyword fallback has something to match against before any tuning.
func (p *PostgresClient) seedIntents(ctx context.Context) error {
	var count int
	if err := p.Pool.QueryRow(ctx, "SELECT COUNT(*) FROM intents").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	var categoryID int64
	err := p.Pool.QueryRow(ctx, `
		INSERT INTO intent_categories (name, description)
		VALUES ('general', 'Common conversational intents')
		ON CONFLICT (name) DO UPDATE SET description = EXCLUDED.description
		RETURNING id
	`).Scan(&categoryID)
	if err != nil {
		return fmt.Errorf("seed intent category: %w", err)
	}

	seeds := []struct {
		name, description, keywords string
	}{
		{"greeting", "The sender opens with a salutation", "hello,hi,good morning,good afternoon,good evening"},
		{"question", "The sender asks for information", "question,how,what,when,where,why,?"},
		{"problem", "The sender reports an issue", "problem,issue,error,broken,not working,complaint"},
		{"thanks", "The sender expresses gratitude", "thanks,thank you,appreciate,grateful"},
		{"appointment", "The sender wants to schedule a meeting", "appointment,meeting,schedule,availability,call"},
	}
	for _, s := range seeds {
		if _, err := p.Pool.Exec(ctx,
			"INSERT INTO intents (category_id, name, description, keywords) VALUES ($1, $2, $3, $4)",
			categoryID, s.name, s.description, s.keywords); err != nil {
			return fmt.Errorf("seed intent %s: %w", s.name, err)
		}
	}
	return nil
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
