package usecases

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"smartbot/internal/entities"
	"smartbot/internal/interfaces"
)

// TemplateSelector picks the best response template for a message.
// Precedence: intent-linked template covering the channel, then the default
// template, then any template covering the channel, then none. Ties at each
// step go to the lowest id (the store guarantees that ordering).
type TemplateSelector struct {
	templates interfaces.TemplateStore
	log       zerolog.Logger
}

func NewTemplateSelector(templates interfaces.TemplateStore, log zerolog.Logger) *TemplateSelector {
	return &TemplateSelector{
		templates: templates,
		log:       log.With().Str("component", "selector").Logger(),
	}
}

// Select returns nil when no template matches. Store failures are logged and
// treated as "none available" so the generator can still fall back.
func (s *TemplateSelector) Select(ctx context.Context, ownerID int64, ch entities.Channel, intentName string) *entities.ResponseTemplate {
	if intentName != "" {
		if tmpl := s.lookup(ctx, func() (*entities.ResponseTemplate, error) {
			return s.templates.ForIntent(ctx, ownerID, ch, intentName)
		}); tmpl != nil {
			return tmpl
		}
	}

	if tmpl := s.lookup(ctx, func() (*entities.ResponseTemplate, error) {
		return s.templates.Default(ctx, ownerID, ch)
	}); tmpl != nil {
		return tmpl
	}

	return s.lookup(ctx, func() (*entities.ResponseTemplate, error) {
		return s.templates.FirstForChannel(ctx, ownerID, ch)
	})
}

func (s *TemplateSelector) lookup(ctx context.Context, fn func() (*entities.ResponseTemplate, error)) *entities.ResponseTemplate {
	tmpl, err := fn()
	if err != nil {
		if !errors.Is(err, entities.ErrNotFound) {
			s.log.Warn().Err(err).Msg("template lookup failed")
		}
		return nil
	}
	return tmpl
}
