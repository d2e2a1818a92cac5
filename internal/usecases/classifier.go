package usecases

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"smartbot/internal/entities"
	"smartbot/internal/interfaces"
)

const (
	// classifyMaxTokens bounds the model reply; "<name>|<score>" is short.
	classifyMaxTokens = 50
	classifyTemp      = 0.3
	// promptBodyLimit keeps the classification prompt bounded for long emails.
	promptBodyLimit = 2000
)

// IntentClassifier turns message text into a ranked list of scored intents.
// The model-backed path is tried first when a completer is configured; any
// failure there falls through to the deterministic keyword path. Classify
// never returns an error: no match is an empty slice.
type IntentClassifier struct {
	completer interfaces.Completer
	messages  interfaces.MessageStore
	log       zerolog.Logger
}

func NewIntentClassifier(completer interfaces.Completer, messages interfaces.MessageStore, log zerolog.Logger) *IntentClassifier {
	return &IntentClassifier{
		completer: completer,
		messages:  messages,
		log:       log.With().Str("component", "classifier").Logger(),
	}
}

// Classify ranks the cataloged intents for the message, highest confidence
// first. Every non-zero result is recorded as a MessageIntent link; the
// model path records only its single top pick.
func (c *IntentClassifier) Classify(ctx context.Context, msg *entities.Message, catalog []entities.Intent) []entities.ScoredIntent {
	if len(catalog) == 0 {
		return nil
	}

	if c.completer != nil && c.completer.Available() {
		if ranked, ok := c.classifyWithModel(ctx, msg, catalog); ok {
			return ranked
		}
	}

	return c.classifyWithKeywords(ctx, msg, catalog)
}

// classifyWithModel asks the completion service for a "<name>|<score>"
// verdict. The second return value is false whenever the call failed or the
// reply could not be mapped back onto the catalog; the caller then falls
// through to the keyword path.
func (c *IntentClassifier) classifyWithModel(ctx context.Context, msg *entities.Message, catalog []entities.Intent) ([]entities.ScoredIntent, bool) {
	prompt := buildClassifyPrompt(msg.Body, catalog)

	raw, err := c.completer.Complete(ctx, prompt, classifyMaxTokens, classifyTemp)
	if err != nil {
		c.log.Warn().Err(err).Int64("message_id", msg.ID).Msg("model classification failed, using keyword fallback")
		return nil, false
	}

	name, confidence, ok := parseIntentReply(raw)
	if !ok {
		c.log.Warn().Str("reply", raw).Int64("message_id", msg.ID).Msg("unparseable model reply, using keyword fallback")
		return nil, false
	}

	intent, ok := matchIntentName(catalog, name)
	if !ok {
		c.log.Warn().Str("intent", name).Int64("message_id", msg.ID).Msg("model named an unknown intent, using keyword fallback")
		return nil, false
	}

	scored := entities.ScoredIntent{Intent: intent, Confidence: confidence}
	c.recordLink(ctx, msg.ID, scored)
	return []entities.ScoredIntent{scored}, true
}

// classifyWithKeywords scores each intent as the fraction of its keywords
// found as substrings in the lower-cased body. Deterministic: zero-score
// intents are dropped, the rest sort descending, ties keep catalog order.
func (c *IntentClassifier) classifyWithKeywords(ctx context.Context, msg *entities.Message, catalog []entities.Intent) []entities.ScoredIntent {
	text := strings.ToLower(msg.Body)

	var ranked []entities.ScoredIntent
	for _, intent := range catalog {
		keywords := intent.KeywordList()
		if len(keywords) == 0 {
			continue
		}
		matches := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		scored := entities.ScoredIntent{
			Intent:     intent,
			Confidence: float64(matches) / float64(len(keywords)),
		}
		ranked = append(ranked, scored)
		c.recordLink(ctx, msg.ID, scored)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	return ranked
}

// recordLink appends a MessageIntent row. Link recording is an audit trail,
// a store failure must not fail classification.
func (c *IntentClassifier) recordLink(ctx context.Context, messageID int64, scored entities.ScoredIntent) {
	if c.messages == nil || messageID == 0 {
		return
	}
	link := &entities.MessageIntent{
		MessageID:  messageID,
		IntentID:   scored.Intent.ID,
		Confidence: scored.Confidence,
	}
	if err := c.messages.AddIntentLink(ctx, link); err != nil {
		c.log.Warn().Err(err).Int64("message_id", messageID).Msg("could not record intent link")
	}
}

func buildClassifyPrompt(body string, catalog []entities.Intent) string {
	var sb strings.Builder
	sb.WriteString("Analyze the following message and identify its main intent.\n")
	sb.WriteString("Possible intents:\n")
	for _, intent := range catalog {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", intent.Name, intent.Description))
	}
	sb.WriteString("\nMessage: ")
	sb.WriteString(truncate(body, promptBodyLimit))
	sb.WriteString("\n\nReply with only the intent name and a confidence score between 0 and 1.\nFormat: intent|score")
	return sb.String()
}

// parseIntentReply parses the strict "<name>|<score>" format. Anything else,
// including a score outside [0,1], is rejected.
func parseIntentReply(raw string) (string, float64, bool) {
	parts := strings.SplitN(strings.TrimSpace(raw), "|", 2)
	if len(parts) != 2 {
		return "", 0, false
	}
	name := strings.TrimSpace(parts[0])
	if name == "" {
		return "", 0, false
	}
	confidence, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || confidence < 0 || confidence > 1 {
		return "", 0, false
	}
	return name, confidence, true
}

// matchIntentName fuzzy-matches the model's answer back onto the catalog:
// first intent whose name contains the answer, case-insensitive.
func matchIntentName(catalog []entities.Intent, name string) (entities.Intent, bool) {
	needle := strings.ToLower(name)
	for _, intent := range catalog {
		if strings.Contains(strings.ToLower(intent.Name), needle) {
			return intent, true
		}
	}
	return entities.Intent{}, false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
