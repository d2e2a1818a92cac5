package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"smartbot/internal/entities"
	"smartbot/internal/interfaces"
)

const defaultSendTimeout = 30 * time.Second

// AutoReplyService drives the per-message state machine: configuration
// gates, classification, generation, dispatch and status bookkeeping.
// Messages a gate suppresses stay received for manual handling; a claimed
// message always ends replied or failed.
type AutoReplyService struct {
	messages   interfaces.MessageStore
	configs    interfaces.ConfigStore
	accounts   interfaces.AccountStore
	intents    interfaces.IntentStore
	classifier *IntentClassifier
	generator  *ResponseGenerator
	adapters   map[entities.Channel]interfaces.ChannelAdapter
	throttle   interfaces.SendThrottle

	sendTimeout time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

func NewAutoReplyService(
	messages interfaces.MessageStore,
	configs interfaces.ConfigStore,
	accounts interfaces.AccountStore,
	intents interfaces.IntentStore,
	classifier *IntentClassifier,
	generator *ResponseGenerator,
	adapters []interfaces.ChannelAdapter,
	throttle interfaces.SendThrottle,
	log zerolog.Logger,
) *AutoReplyService {
	byChannel := make(map[entities.Channel]interfaces.ChannelAdapter, len(adapters))
	for _, a := range adapters {
		byChannel[a.Channel()] = a
	}
	return &AutoReplyService{
		messages:    messages,
		configs:     configs,
		accounts:    accounts,
		intents:     intents,
		classifier:  classifier,
		generator:   generator,
		adapters:    byChannel,
		throttle:    throttle,
		sendTimeout: defaultSendTimeout,
		now:         time.Now,
		log:         log.With().Str("component", "autoreply").Logger(),
	}
}

// Ingest records an inbound message as received, owned by the account whose
// address matches the lookup key on that channel.
func (s *AutoReplyService) Ingest(ctx context.Context, ownerKey string, ch entities.Channel, sender, recipient, subject, body string) (*entities.Message, error) {
	if !ch.Valid() {
		return nil, fmt.Errorf("invalid channel %q", ch)
	}
	ownerID, err := s.accounts.OwnerByAddress(ctx, ch, ownerKey)
	if err != nil {
		return nil, fmt.Errorf("resolve owner for %q: %w", ownerKey, err)
	}

	msg := &entities.Message{
		OwnerID:    ownerID,
		Channel:    ch,
		Sender:     sender,
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		Status:     entities.StatusReceived,
		ReceivedAt: s.now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("store message: %w", err)
	}
	s.log.Info().Int64("message_id", msg.ID).Str("channel", string(ch)).Str("sender", sender).Msg("message ingested")
	return msg, nil
}

// ProcessOne runs the state machine for a single message and returns its
// resulting status. Gate outcomes are not errors: the message simply stays
// received.
func (s *AutoReplyService) ProcessOne(ctx context.Context, id int64) (entities.MessageStatus, error) {
	msg, err := s.messages.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load message %d: %w", id, err)
	}
	if msg.Status != entities.StatusReceived {
		// Already picked up by an earlier run (or a concurrent worker).
		return msg.Status, nil
	}

	cfg, err := s.configs.ActiveConfig(ctx, msg.OwnerID)
	if err != nil {
		if errors.Is(err, entities.ErrNotFound) {
			s.log.Debug().Int64("message_id", id).Msg("no active bot configuration, leaving for manual handling")
			return entities.StatusReceived, nil
		}
		return entities.StatusReceived, fmt.Errorf("load configuration: %w", err)
	}
	if !cfg.AutoReplyEnabled(msg.Channel) {
		s.log.Debug().Int64("message_id", id).Str("channel", string(msg.Channel)).Msg("auto-reply disabled for channel")
		return entities.StatusReceived, nil
	}
	if !withinWorkingHours(cfg, s.now()) {
		s.log.Debug().Int64("message_id", id).Msg("outside working hours")
		return entities.StatusReceived, nil
	}

	// The claim is the commit point: from here the message ends replied or
	// failed, and a concurrent worker's claim on the same message loses.
	claimed, err := s.messages.ClaimProcessing(ctx, id, s.now())
	if err != nil {
		return entities.StatusReceived, fmt.Errorf("claim message %d: %w", id, err)
	}
	if !claimed {
		fresh, err := s.messages.GetByID(ctx, id)
		if err != nil {
			return entities.StatusProcessed, nil
		}
		return fresh.Status, nil
	}

	catalog, err := s.intents.ListIntents(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("could not load intent catalog, classifying with empty catalog")
		catalog = nil
	}
	ranked := s.classifier.Classify(ctx, msg, catalog)
	content, tmpl := s.generator.Generate(ctx, msg, ranked)

	status := s.dispatch(ctx, msg, content, tmpl)
	if err := s.messages.SetStatus(ctx, id, status); err != nil {
		return status, fmt.Errorf("update status of message %d: %w", id, err)
	}
	return status, nil
}

// dispatch resolves the owner's account and sends the reply through the
// message's channel. Any failure here is terminal for this run.
func (s *AutoReplyService) dispatch(ctx context.Context, msg *entities.Message, content string, tmpl *entities.ResponseTemplate) entities.MessageStatus {
	adapter, ok := s.adapters[msg.Channel]
	if !ok {
		s.log.Error().Int64("message_id", msg.ID).Str("channel", string(msg.Channel)).Msg("no adapter for channel")
		return entities.StatusFailed
	}

	account, err := s.accounts.ActiveAccount(ctx, msg.OwnerID, msg.Channel)
	if err != nil {
		s.log.Warn().Err(err).Int64("message_id", msg.ID).Msg("no dispatch account")
		return entities.StatusFailed
	}

	if s.throttle != nil {
		if err := s.throttle.Wait(ctx, msg.OwnerID); err != nil {
			s.log.Warn().Err(err).Int64("message_id", msg.ID).Msg("send throttled past deadline")
			return entities.StatusFailed
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if err := adapter.Send(sendCtx, account, msg.Sender, replySubject(msg), content); err != nil {
		s.log.Error().Err(err).Int64("message_id", msg.ID).Msg("dispatch failed")
		return entities.StatusFailed
	}

	resp := &entities.MessageResponse{
		OriginalMessageID: msg.ID,
		Content:           content,
		SentAt:            s.now(),
	}
	if tmpl != nil {
		resp.TemplateID = &tmpl.ID
	}
	if err := s.messages.CreateResponse(ctx, resp); err != nil {
		// The reply went out; losing the record is worth a log, not a failure.
		s.log.Error().Err(err).Int64("message_id", msg.ID).Msg("could not persist response record")
	}
	s.log.Info().Int64("message_id", msg.ID).Str("channel", string(msg.Channel)).Msg("reply dispatched")
	return entities.StatusReplied
}

// ProcessPending runs the pipeline over every received message. One
// message's fault never aborts the batch; the return value is the count of
// messages that ended replied. Cancellation is honored between messages.
func (s *AutoReplyService) ProcessPending(ctx context.Context) (int, error) {
	pending, err := s.messages.ListByStatus(ctx, entities.StatusReceived)
	if err != nil {
		return 0, fmt.Errorf("list pending messages: %w", err)
	}

	replied := 0
	for _, msg := range pending {
		select {
		case <-ctx.Done():
			s.log.Info().Int("replied", replied).Msg("batch cancelled")
			return replied, ctx.Err()
		default:
		}

		status, err := s.ProcessOne(ctx, msg.ID)
		if err != nil {
			s.log.Error().Err(err).Int64("message_id", msg.ID).Msg("processing failed, continuing batch")
			continue
		}
		if status == entities.StatusReplied {
			replied++
		}
	}

	s.log.Info().Int("pending", len(pending)).Int("replied", replied).Msg("batch complete")
	return replied, nil
}

// replySubject builds the outbound subject; only email has one.
func replySubject(msg *entities.Message) string {
	if msg.Channel != entities.ChannelEmail {
		return ""
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return "Automatic reply"
	}
	if strings.HasPrefix(strings.ToLower(msg.Subject), "re:") {
		return msg.Subject
	}
	return "Re: " + msg.Subject
}

// withinWorkingHours checks the half-open [start, end) window in local
// time. No window configured means always within; start > end spans
// midnight.
func withinWorkingHours(cfg *entities.BotConfiguration, now time.Time) bool {
	if cfg.WorkingHoursStart == "" || cfg.WorkingHoursEnd == "" {
		return true
	}
	start, err := parseClock(cfg.WorkingHoursStart)
	if err != nil {
		return true
	}
	end, err := parseClock(cfg.WorkingHoursEnd)
	if err != nil {
		return true
	}

	minute := now.Hour()*60 + now.Minute()
	if start <= end {
		return minute >= start && minute < end
	}
	return minute >= start || minute < end
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}
