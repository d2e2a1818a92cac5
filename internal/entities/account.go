package entities

// ChannelAccount is a per-owner dispatch/fetch account for one channel.
// Email accounts carry SMTP/IMAP credentials; WhatsApp accounts only carry
// the phone number, pairing state lives in the per-owner device store.
type ChannelAccount struct {
	ID      int64   `json:"id"`
	OwnerID int64   `json:"owner_id"`
	Channel Channel `json:"channel"`
	// Address is the account identity on the channel: an email address
	// or a phone number. Inbound recipients are matched against it.
	Address string `json:"address"`
	Active  bool   `json:"active"`

	// Email credentials (unused for whatsapp).
	SMTPHost string `json:"smtp_host,omitempty"`
	SMTPPort int    `json:"smtp_port,omitempty"`
	IMAPHost string `json:"imap_host,omitempty"`
	IMAPPort int    `json:"imap_port,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"-"`
}

type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
}
