package usecases

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/rs/zerolog"

	"smartbot/internal/entities"
	"smartbot/internal/interfaces"
)

// ConfidenceThreshold is the minimum classifier confidence for an intent to
// drive template selection; exactly 0.3 still passes.
const ConfidenceThreshold = 0.3

const (
	generateMaxTokens = 200
	generateTemp      = 0.7
)

// genericReplies is the last-resort pool; the pipeline is never silent.
var genericReplies = []string{
	"Thank you for your message. I will look into it as soon as possible.",
	"Your message has been received and I will get back to you shortly.",
	"Your message has been recorded. I will be in touch soon.",
	"Thank you for reaching out. I will review your request and reply.",
}

// ResponseGenerator produces the final reply text for a message. The model
// path personalizes around the selected template; every failure degrades to
// the template's literal content or a generic acknowledgement. Generate
// never errors and never returns empty text.
type ResponseGenerator struct {
	completer interfaces.Completer
	selector  *TemplateSelector
	pick      func(n int) int
	log       zerolog.Logger
}

func NewResponseGenerator(completer interfaces.Completer, selector *TemplateSelector, log zerolog.Logger) *ResponseGenerator {
	return &ResponseGenerator{
		completer: completer,
		selector:  selector,
		pick:      rand.Intn,
		log:       log.With().Str("component", "generator").Logger(),
	}
}

// Generate returns the reply text and, when one was used, the selected
// template (recorded on the MessageResponse).
func (g *ResponseGenerator) Generate(ctx context.Context, msg *entities.Message, ranked []entities.ScoredIntent) (string, *entities.ResponseTemplate) {
	var top *entities.ScoredIntent
	if len(ranked) > 0 && ranked[0].Confidence >= ConfidenceThreshold {
		top = &ranked[0]
	}

	intentName := ""
	if top != nil {
		intentName = top.Intent.Name
	}
	tmpl := g.selector.Select(ctx, msg.OwnerID, msg.Channel, intentName)

	if g.completer != nil && g.completer.Available() {
		prompt := buildGeneratePrompt(msg, top, tmpl)
		reply, err := g.completer.Complete(ctx, prompt, generateMaxTokens, generateTemp)
		if err == nil && strings.TrimSpace(reply) != "" {
			return strings.TrimSpace(reply), tmpl
		}
		if err != nil {
			g.log.Warn().Err(err).Int64("message_id", msg.ID).Msg("model generation failed, using template fallback")
		}
	}

	if tmpl != nil {
		return tmpl.Content, tmpl
	}
	return genericReplies[g.pick(len(genericReplies))], nil
}

func buildGeneratePrompt(msg *entities.Message, top *entities.ScoredIntent, tmpl *entities.ResponseTemplate) string {
	var sb strings.Builder
	sb.WriteString("You are an automated assistant replying to customer messages.\n\n")
	sb.WriteString("Message received: ")
	sb.WriteString(truncate(msg.Body, promptBodyLimit))
	sb.WriteString("\n")
	if top != nil {
		sb.WriteString(fmt.Sprintf("Detected intent: %s (confidence: %.2f)\n", top.Intent.Name, top.Confidence))
	} else {
		sb.WriteString("Detected intent: unknown\n")
	}
	sb.WriteString(fmt.Sprintf("Channel: %s\nSender: %s\n", msg.Channel, msg.Sender))

	if tmpl != nil {
		sb.WriteString("\nHere is a response template to adapt:\n")
		sb.WriteString(tmpl.Content)
		sb.WriteString("\n\nWrite a personalized reply based on this template, adjusted to the specific message.")
	} else {
		sb.WriteString("\nWrite a professional, courteous and helpful reply. Keep it concise, at most 3-4 sentences.")
	}
	return sb.String()
}
