package infrastructure

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"smartbot/internal/entities"
)

// WhatsAppManager keeps one whatsmeow client per owner, each with its own
// device store under baseDir.
type WhatsAppManager struct {
	clients map[int64]*WhatsAppClient
	mu      sync.RWMutex
	baseDir string
	log     zerolog.Logger

	// HandlerFactory builds the per-owner event handler wired to ingestion.
	HandlerFactory func(ownerID int64) func(interface{})
}

func NewWhatsAppManager(baseDir string, log zerolog.Logger) *WhatsAppManager {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		log.Warn().Err(err).Str("dir", baseDir).Msg("could not create device store directory")
	}

	return &WhatsAppManager{
		clients: make(map[int64]*WhatsAppClient),
		baseDir: baseDir,
		log:     log.With().Str("component", "whatsapp_manager").Logger(),
	}
}

// GetClient returns the existing client for an owner, nil if none.
func (m *WhatsAppManager) GetClient(ownerID int64) *WhatsAppClient {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clients[ownerID]
}

func (m *WhatsAppManager) GetOrCreateClient(ownerID int64) (*WhatsAppClient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, exists := m.clients[ownerID]; exists {
		return client, nil
	}

	dbPath := fmt.Sprintf("%s/owner_%d.db", m.baseDir, ownerID)
	client, err := NewWhatsAppClient(dbPath, ownerID, m.log)
	if err != nil {
		return nil, fmt.Errorf("failed to create WhatsApp client for owner %d: %w", ownerID, err)
	}

	if m.HandlerFactory != nil {
		client.AddHandler(m.HandlerFactory(ownerID))
	}

	m.clients[ownerID] = client
	return client, nil
}

// ConnectClient connects an owner's client, creating it if needed.
func (m *WhatsAppManager) ConnectClient(ownerID int64) (*WhatsAppClient, error) {
	client, err := m.GetOrCreateClient(ownerID)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect WhatsApp for owner %d: %w", ownerID, err)
	}
	return client, nil
}

// LogoutClient logs out an owner's session; missing or already-disconnected
// clients are treated as logged out.
func (m *WhatsAppManager) LogoutClient(ownerID int64) error {
	m.mu.RLock()
	client, exists := m.clients[ownerID]
	m.mu.RUnlock()

	if !exists || client == nil {
		return nil
	}

	err := client.Logout()

	m.mu.Lock()
	delete(m.clients, ownerID)
	m.mu.Unlock()

	return err
}

// DisconnectAll disconnects every client, for graceful shutdown.
func (m *WhatsAppManager) DisconnectAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.clients {
		client.Disconnect()
	}
	m.clients = make(map[int64]*WhatsAppClient)
}

// WhatsAppAdapter exposes the managed clients through the ChannelAdapter
// port; the dispatch account's owner selects the session to send from.
type WhatsAppAdapter struct {
	manager *WhatsAppManager
}

func NewWhatsAppAdapter(manager *WhatsAppManager) *WhatsAppAdapter {
	return &WhatsAppAdapter{manager: manager}
}

func (a *WhatsAppAdapter) Channel() entities.Channel {
	return entities.ChannelWhatsApp
}

func (a *WhatsAppAdapter) Send(ctx context.Context, account *entities.ChannelAccount, recipient, subject, body string) error {
	client := a.manager.GetClient(account.OwnerID)
	if client == nil || !client.IsConnected() {
		return fmt.Errorf("no connected WhatsApp session for owner %d", account.OwnerID)
	}
	return client.SendText(ctx, recipient, body)
}

// FetchUnread is a no-op: WhatsApp intake is event-driven through the
// manager's HandlerFactory.
func (a *WhatsAppAdapter) FetchUnread(ctx context.Context, account *entities.ChannelAccount) ([]entities.RawMessage, error) {
	return nil, nil
}
