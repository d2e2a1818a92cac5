package infrastructure

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/rs/zerolog"

	"smartbot/internal/entities"
)

// EmailAdapter speaks SMTP for outbound replies and IMAP for inbound fetch,
// using the per-account credentials stored on the channel account.
type EmailAdapter struct {
	log zerolog.Logger
}

func NewEmailAdapter(log zerolog.Logger) *EmailAdapter {
	return &EmailAdapter{log: log.With().Str("component", "email_adapter").Logger()}
}

func (a *EmailAdapter) Channel() entities.Channel {
	return entities.ChannelEmail
}

// Send delivers one plain-text message over SMTP with STARTTLS-less implicit
// TLS. The context deadline bounds the whole exchange.
func (a *EmailAdapter) Send(ctx context.Context, account *entities.ChannelAccount, recipient, subject, body string) error {
	if account.SMTPHost == "" {
		return fmt.Errorf("account %s has no SMTP host configured", account.Address)
	}
	// Reject header injection before anything touches the wire.
	if strings.ContainsAny(subject, "\r\n") || strings.ContainsAny(recipient, "\r\n,;") {
		return fmt.Errorf("invalid characters in subject or recipient")
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", account.Address))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", recipient))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", account.SMTPHost, account.SMTPPort)
	dialer := &net.Dialer{}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{
		ServerName: account.SMTPHost,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("TLS connection failed: %w", err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, account.SMTPHost)
	if err != nil {
		return fmt.Errorf("SMTP client creation failed: %w", err)
	}
	defer client.Close()

	auth := smtp.PlainAuth("", account.Username, account.Password, account.SMTPHost)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	if err := client.Mail(account.Address); err != nil {
		return fmt.Errorf("sender rejected: %w", err)
	}
	if err := client.Rcpt(recipient); err != nil {
		return fmt.Errorf("recipient rejected: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data command failed: %w", err)
	}
	if _, err = w.Write([]byte(msg.String())); err != nil {
		return fmt.Errorf("message write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("message finalization failed: %w", err)
	}
	return client.Quit()
}

// FetchUnread pulls every UNSEEN message from the account's INBOX, marks it
// seen on the server, and returns the parsed plain-text bodies.
func (a *EmailAdapter) FetchUnread(ctx context.Context, account *entities.ChannelAccount) ([]entities.RawMessage, error) {
	if account.IMAPHost == "" {
		return nil, fmt.Errorf("account %s has no IMAP host configured", account.Address)
	}

	addr := fmt.Sprintf("%s:%d", account.IMAPHost, account.IMAPPort)
	c, err := imapclient.DialTLS(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer c.Logout()
	c.Timeout = 30 * time.Second

	if err := c.Login(account.Username, account.Password); err != nil {
		return nil, fmt.Errorf("IMAP login failed: %w", err)
	}

	if _, err := c.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("failed to select INBOX: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search for unseen mail: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, items, messages)
	}()

	var raws []entities.RawMessage
	for msg := range messages {
		raw, err := a.parseMessage(msg, section, account.Address)
		if err != nil {
			a.log.Warn().Err(err).Str("account", account.Address).Msg("failed to parse inbound email")
			continue
		}
		if raw != nil {
			raws = append(raws, *raw)
		}
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	// Mark fetched mail as seen so the next poll skips it.
	storeItem := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.UidStore(seqSet, storeItem, []interface{}{imap.SeenFlag}, nil); err != nil {
		a.log.Warn().Err(err).Str("account", account.Address).Msg("could not mark messages seen")
	}

	return raws, nil
}

func (a *EmailAdapter) parseMessage(msg *imap.Message, section *imap.BodySectionName, fallbackRecipient string) (*entities.RawMessage, error) {
	if msg == nil || msg.Envelope == nil {
		return nil, nil
	}

	raw := &entities.RawMessage{
		Subject:   msg.Envelope.Subject,
		Recipient: fallbackRecipient,
	}
	if len(msg.Envelope.From) > 0 {
		raw.Sender = msg.Envelope.From[0].Address()
	}
	if len(msg.Envelope.To) > 0 {
		raw.Recipient = msg.Envelope.To[0].Address()
	}

	r := msg.GetBody(section)
	if r == nil {
		return raw, nil
	}
	mr, err := mail.CreateReader(r)
	if err != nil {
		return raw, nil // keep envelope data even when the body fails to parse
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		if h, ok := p.Header.(*mail.InlineHeader); ok {
			ct, _, _ := h.ContentType()
			if strings.HasPrefix(ct, "text/plain") && raw.Body == "" {
				body, _ := io.ReadAll(p.Body)
				raw.Body = string(body)
			}
		}
	}
	return raw, nil
}
