package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"smartbot/internal/entities"
)

// In-memory fakes for the store and transport ports.

type fakeCompleter struct {
	available  bool
	reply      string
	err        error
	lastPrompt string
	calls      int
}

func (f *fakeCompleter) Available() bool { return f.available }

func (f *fakeCompleter) Complete(_ context.Context, prompt string, _ int, _ float64) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type memMessages struct {
	mu        sync.Mutex
	nextID    int64
	messages  map[int64]*entities.Message
	links     []entities.MessageIntent
	responses []entities.MessageResponse

	claimErr error
	listErr  error
}

func newMemMessages() *memMessages {
	return &memMessages{messages: make(map[int64]*entities.Message)}
}

func (m *memMessages) add(msg entities.Message) *entities.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg.ID = m.nextID
	m.messages[msg.ID] = &msg
	return &msg
}

func (m *memMessages) Create(_ context.Context, msg *entities.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg.ID = m.nextID
	stored := *msg
	m.messages[msg.ID] = &stored
	return nil
}

func (m *memMessages) GetByID(_ context.Context, id int64) (*entities.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	copied := *msg
	return &copied, nil
}

func (m *memMessages) ListByStatus(_ context.Context, status entities.MessageStatus) ([]entities.Message, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Message
	for id := int64(1); id <= m.nextID; id++ {
		if msg, ok := m.messages[id]; ok && msg.Status == status {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (m *memMessages) ListByOwner(_ context.Context, ownerID int64, status entities.MessageStatus) ([]entities.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entities.Message
	for id := int64(1); id <= m.nextID; id++ {
		msg, ok := m.messages[id]
		if !ok || msg.OwnerID != ownerID {
			continue
		}
		if status != "" && msg.Status != status {
			continue
		}
		out = append(out, *msg)
	}
	return out, nil
}

func (m *memMessages) ClaimProcessing(_ context.Context, id int64, at time.Time) (bool, error) {
	if m.claimErr != nil {
		return false, m.claimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok || msg.Status != entities.StatusReceived {
		return false, nil
	}
	msg.Status = entities.StatusProcessed
	msg.ProcessedAt = &at
	return true, nil
}

func (m *memMessages) SetStatus(_ context.Context, id int64, status entities.MessageStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return entities.ErrNotFound
	}
	msg.Status = status
	return nil
}

func (m *memMessages) AddIntentLink(_ context.Context, link *entities.MessageIntent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links = append(m.links, *link)
	return nil
}

func (m *memMessages) CreateResponse(_ context.Context, resp *entities.MessageResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, *resp)
	return nil
}

func (m *memMessages) status(id int64) entities.MessageStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[id]; ok {
		return msg.Status
	}
	return ""
}

type stubIntents struct {
	catalog []entities.Intent
	err     error
}

func (s *stubIntents) ListIntents(context.Context) ([]entities.Intent, error) {
	return s.catalog, s.err
}

// stubTemplates returns fixed results per lookup method.
type stubTemplates struct {
	forIntent map[string]*entities.ResponseTemplate
	def       *entities.ResponseTemplate
	first     *entities.ResponseTemplate
}

func (s *stubTemplates) ForIntent(_ context.Context, _ int64, _ entities.Channel, intentName string) (*entities.ResponseTemplate, error) {
	if tmpl, ok := s.forIntent[intentName]; ok && tmpl != nil {
		return tmpl, nil
	}
	return nil, entities.ErrNotFound
}

func (s *stubTemplates) Default(context.Context, int64, entities.Channel) (*entities.ResponseTemplate, error) {
	if s.def == nil {
		return nil, entities.ErrNotFound
	}
	return s.def, nil
}

func (s *stubTemplates) FirstForChannel(context.Context, int64, entities.Channel) (*entities.ResponseTemplate, error) {
	if s.first == nil {
		return nil, entities.ErrNotFound
	}
	return s.first, nil
}

type stubConfigs struct {
	cfg *entities.BotConfiguration
	err error
}

func (s *stubConfigs) ActiveConfig(context.Context, int64) (*entities.BotConfiguration, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.cfg == nil {
		return nil, entities.ErrNotFound
	}
	return s.cfg, nil
}

type stubAccounts struct {
	accounts map[entities.Channel]*entities.ChannelAccount
	owners   map[string]int64
}

func (s *stubAccounts) ActiveAccount(_ context.Context, _ int64, ch entities.Channel) (*entities.ChannelAccount, error) {
	if acc, ok := s.accounts[ch]; ok && acc != nil {
		return acc, nil
	}
	return nil, entities.ErrNoAccount
}

func (s *stubAccounts) ListActive(_ context.Context, ch entities.Channel) ([]entities.ChannelAccount, error) {
	var out []entities.ChannelAccount
	if acc, ok := s.accounts[ch]; ok && acc != nil {
		out = append(out, *acc)
	}
	return out, nil
}

func (s *stubAccounts) OwnerByAddress(_ context.Context, _ entities.Channel, address string) (int64, error) {
	if id, ok := s.owners[address]; ok {
		return id, nil
	}
	return 0, entities.ErrNotFound
}

type sentReply struct {
	recipient string
	subject   string
	body      string
}

type fakeAdapter struct {
	channel entities.Channel
	sendErr error
	unread  []entities.RawMessage

	mu   sync.Mutex
	sent []sentReply
}

func (f *fakeAdapter) Channel() entities.Channel { return f.channel }

func (f *fakeAdapter) Send(_ context.Context, _ *entities.ChannelAccount, recipient, subject, body string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentReply{recipient: recipient, subject: subject, body: body})
	return nil
}

func (f *fakeAdapter) FetchUnread(context.Context, *entities.ChannelAccount) ([]entities.RawMessage, error) {
	out := f.unread
	f.unread = nil
	return out, nil
}

var errBoom = errors.New("boom")
