package usecase

import (
	"context"
	"encoding/json"

	"intake-agent/internal/schema"
)

const classifyMaxTokens = 500

// IntentClassification labels a first message with a problem category.
type IntentClassification struct {
	PrimaryIntent    string `json:"primaryIntent"`
	Confidence       int    `json:"confidence"`
	SuggestedBackend string `json:"suggestedBackend,omitempty"`
	Reasoning        string `json:"reasoning"`
}

// IntentClassifier runs exactly once per conversation, on the first inbound
// message. Its result seeds the session's problem type and is never re-run.
type IntentClassifier struct {
	oracle Oracle
}

func NewIntentClassifier(oracle Oracle) *IntentClassifier {
	return &IntentClassifier{oracle: oracle}
}

// Classify labels the message. Malformed oracle output degrades to the
// general category with zero confidence; only transport failures return an
// error.
func (c *IntentClassifier) Classify(ctx context.Context, userMessage string, history []string) (IntentClassification, error) {
	raw, err := c.oracle.Infer(ctx, buildClassificationPrompt(userMessage, history), classifyMaxTokens)
	if err != nil {
		return IntentClassification{}, err
	}
	return parseClassification(raw), nil
}

func parseClassification(text string) IntentClassification {
	fallback := IntentClassification{
		PrimaryIntent: schema.ServiceGeneral,
		Reasoning:     "classification failed",
	}

	obj, ok := extractJSONObject(text)
	if !ok {
		return fallback
	}
	var parsed struct {
		PrimaryIntent    string  `json:"primaryIntent"`
		Confidence       float64 `json:"confidence"`
		SuggestedBackend string  `json:"suggestedBackend"`
		Reasoning        string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return fallback
	}

	out := IntentClassification{
		PrimaryIntent:    parsed.PrimaryIntent,
		Confidence:       clampScore(int(parsed.Confidence)),
		SuggestedBackend: parsed.SuggestedBackend,
		Reasoning:        parsed.Reasoning,
	}
	if !schema.Known(out.PrimaryIntent) {
		out.PrimaryIntent = schema.ServiceGeneral
	}
	if out.Reasoning == "" {
		out.Reasoning = "Unable to classify"
	}
	return out
}

func clampScore(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
