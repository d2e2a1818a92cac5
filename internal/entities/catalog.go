package entities

import "strings"

// IntentCategory groups intents; templates can be linked to a category.
type IntentCategory struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Intent is static reference data: a purpose a message may express,
// recognized either by the model or by its keyword list.
type Intent struct {
	ID          int64  `json:"id"`
	CategoryID  int64  `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Keywords    string `json:"keywords"` // comma-separated, case-insensitive
}

// KeywordList splits the comma-separated keywords, lower-cased and trimmed.
func (i Intent) KeywordList() []string {
	if strings.TrimSpace(i.Keywords) == "" {
		return nil
	}
	parts := strings.Split(i.Keywords, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if kw := strings.ToLower(strings.TrimSpace(p)); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// ScoredIntent is one classifier result; confidence is in [0,1].
type ScoredIntent struct {
	Intent     Intent
	Confidence float64
}

// TemplateScope is the channel a template applies to: email, whatsapp or both.
type TemplateScope string

const (
	ScopeEmail    TemplateScope = "email"
	ScopeWhatsApp TemplateScope = "whatsapp"
	ScopeBoth     TemplateScope = "both"
)

// Matches reports whether the scope covers the given message channel.
func (s TemplateScope) Matches(c Channel) bool {
	return s == ScopeBoth || string(s) == string(c)
}

// ResponseTemplate is pre-authored reply content owned by a user.
type ResponseTemplate struct {
	ID         int64         `json:"id"`
	OwnerID    int64         `json:"owner_id"`
	Name       string        `json:"name"`
	Content    string        `json:"content"`
	Scope      TemplateScope `json:"scope"`
	IsDefault  bool          `json:"is_default"`
	CategoryID *int64        `json:"category_id,omitempty"`
}

// BotConfiguration gates automated handling for one owner. It is read-only
// input to the pipeline; the pipeline never mutates it.
type BotConfiguration struct {
	ID                int64  `json:"id"`
	OwnerID           int64  `json:"owner_id"`
	Name              string `json:"name"`
	Active            bool   `json:"active"`
	AutoReplyEmail    bool   `json:"auto_reply_email"`
	AutoReplyWhatsApp bool   `json:"auto_reply_whatsapp"`
	// Working hours in "HH:MM" local time; both empty means no window.
	// The window is half-open [start, end); start > end spans midnight.
	WorkingHoursStart string `json:"working_hours_start,omitempty"`
	WorkingHoursEnd   string `json:"working_hours_end,omitempty"`
}

// AutoReplyEnabled reports the per-channel toggle.
func (c BotConfiguration) AutoReplyEnabled(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return c.AutoReplyEmail
	case ChannelWhatsApp:
		return c.AutoReplyWhatsApp
	}
	return false
}
