package usecases

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"smartbot/internal/entities"
	"smartbot/internal/interfaces"
)

// MailPoller pulls unseen email for every active email account and ingests
// each message as received. It fills the role of a periodic fetch task; the
// caller drives it on a ticker. Per-account failures are isolated.
type MailPoller struct {
	accounts interfaces.AccountStore
	adapter  interfaces.ChannelAdapter
	pipeline *AutoReplyService
	log      zerolog.Logger
}

func NewMailPoller(accounts interfaces.AccountStore, adapter interfaces.ChannelAdapter, pipeline *AutoReplyService, log zerolog.Logger) *MailPoller {
	return &MailPoller{
		accounts: accounts,
		adapter:  adapter,
		pipeline: pipeline,
		log:      log.With().Str("component", "mail_poller").Logger(),
	}
}

// Poll fetches unread mail for all active accounts and returns the number of
// messages ingested.
func (p *MailPoller) Poll(ctx context.Context) (int, error) {
	accounts, err := p.accounts.ListActive(ctx, entities.ChannelEmail)
	if err != nil {
		return 0, fmt.Errorf("list email accounts: %w", err)
	}

	ingested := 0
	for _, account := range accounts {
		select {
		case <-ctx.Done():
			return ingested, ctx.Err()
		default:
		}

		raws, err := p.adapter.FetchUnread(ctx, &account)
		if err != nil {
			p.log.Error().Err(err).Str("account", account.Address).Msg("inbox fetch failed, continuing with next account")
			continue
		}
		for _, raw := range raws {
			if _, err := p.pipeline.Ingest(ctx, account.Address, entities.ChannelEmail, raw.Sender, raw.Recipient, raw.Subject, raw.Body); err != nil {
				p.log.Error().Err(err).Str("account", account.Address).Msg("could not ingest fetched email")
				continue
			}
			ingested++
		}
		if len(raws) > 0 {
			p.log.Info().Str("account", account.Address).Int("count", len(raws)).Msg("new emails ingested")
		}
	}
	return ingested, nil
}
