package entities

import (
	"errors"
	"time"
)

// Channel identifies the transport a message arrived on.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelWhatsApp
}

// MessageStatus moves forward only: received -> processed -> replied|failed.
type MessageStatus string

const (
	StatusReceived  MessageStatus = "received"
	StatusProcessed MessageStatus = "processed"
	StatusReplied   MessageStatus = "replied"
	StatusFailed    MessageStatus = "failed"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrNoAccount = errors.New("no active dispatch account")
)

type Message struct {
	ID          int64         `json:"id"`
	OwnerID     int64         `json:"owner_id"`
	Channel     Channel       `json:"channel"`
	Sender      string        `json:"sender"`
	Recipient   string        `json:"recipient"`
	Subject     string        `json:"subject,omitempty"`
	Body        string        `json:"body"`
	Status      MessageStatus `json:"status"`
	ReceivedAt  time.Time     `json:"received_at"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
}

// RawMessage is what a channel adapter hands back before ingestion.
type RawMessage struct {
	Sender    string
	Recipient string
	Subject   string
	Body      string
}

// MessageResponse records a reply that was dispatched for a message.
type MessageResponse struct {
	ID                int64     `json:"id"`
	OriginalMessageID int64     `json:"original_message_id"`
	Content           string    `json:"content"`
	TemplateID        *int64    `json:"template_id,omitempty"`
	SentAt            time.Time `json:"sent_at"`
}

// MessageIntent is one classifier verdict for a message. Rows are
// append-only: re-classifying a message adds links, it never clears old ones.
type MessageIntent struct {
	ID         int64   `json:"id"`
	MessageID  int64   `json:"message_id"`
	IntentID   int64   `json:"intent_id"`
	Confidence float64 `json:"confidence"`
}
