package interfaces

import (
	"context"
	"time"

	"smartbot/internal/entities"
)

// Completer is a model-backed completion service. It may be unconfigured;
// callers treat !Available() and any Complete error as "use the fallback".
type Completer interface {
	Available() bool
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// ChannelAdapter sends and fetches raw messages on one transport. The
// orchestrator picks the adapter once per message, by channel.
type ChannelAdapter interface {
	Channel() entities.Channel
	Send(ctx context.Context, account *entities.ChannelAccount, recipient, subject, body string) error
	// FetchUnread pulls unseen inbound messages and marks them seen on the
	// remote side. Event-driven transports return nil.
	FetchUnread(ctx context.Context, account *entities.ChannelAccount) ([]entities.RawMessage, error)
}

// SendThrottle bounds outbound message rate per owner.
type SendThrottle interface {
	Wait(ctx context.Context, ownerID int64) error
}

type MessageStore interface {
	Create(ctx context.Context, msg *entities.Message) error
	GetByID(ctx context.Context, id int64) (*entities.Message, error)
	ListByStatus(ctx context.Context, status entities.MessageStatus) ([]entities.Message, error)
	ListByOwner(ctx context.Context, ownerID int64, status entities.MessageStatus) ([]entities.Message, error)
	// ClaimProcessing atomically moves received -> processed and stamps
	// processed_at. Returns false when the message was not in received
	// state, which is how concurrent workers lose the race.
	ClaimProcessing(ctx context.Context, id int64, at time.Time) (bool, error)
	SetStatus(ctx context.Context, id int64, status entities.MessageStatus) error
	AddIntentLink(ctx context.Context, link *entities.MessageIntent) error
	CreateResponse(ctx context.Context, resp *entities.MessageResponse) error
}

// IntentStore reads the static intent catalog, in catalog (id) order.
type IntentStore interface {
	ListIntents(ctx context.Context) ([]entities.Intent, error)
}

type TemplateStore interface {
	// ForIntent returns the owner's lowest-id template whose scope covers the
	// channel and whose linked category contains an intent with that exact
	// name, or ErrNotFound.
	ForIntent(ctx context.Context, ownerID int64, ch entities.Channel, intentName string) (*entities.ResponseTemplate, error)
	// Default returns the owner's lowest-id default template covering the
	// channel, or ErrNotFound.
	Default(ctx context.Context, ownerID int64, ch entities.Channel) (*entities.ResponseTemplate, error)
	// FirstForChannel returns the owner's lowest-id template covering the
	// channel, or ErrNotFound.
	FirstForChannel(ctx context.Context, ownerID int64, ch entities.Channel) (*entities.ResponseTemplate, error)
}

type ConfigStore interface {
	// ActiveConfig returns the owner's active configuration with the lowest
	// id, or ErrNotFound when no active configuration exists.
	ActiveConfig(ctx context.Context, ownerID int64) (*entities.BotConfiguration, error)
}

type AccountStore interface {
	// ActiveAccount returns the owner's active account for the channel with
	// the lowest id, or ErrNoAccount.
	ActiveAccount(ctx context.Context, ownerID int64, ch entities.Channel) (*entities.ChannelAccount, error)
	ListActive(ctx context.Context, ch entities.Channel) ([]entities.ChannelAccount, error)
	// OwnerByAddress resolves the owner of the account whose address matches
	// the ingestion lookup key, or ErrNotFound.
	OwnerByAddress(ctx context.Context, ch entities.Channel, address string) (int64, error)
}
