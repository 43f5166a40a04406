package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"intake-agent/internal/schema"
)

type fixedOracle struct {
	text string
	err  error

	prompt    string
	maxTokens int
}

func (o *fixedOracle) Infer(_ context.Context, prompt string, maxTokens int) (string, error) {
	o.prompt = prompt
	o.maxTokens = maxTokens
	return o.text, o.err
}

func TestClassify_HappyPath(t *testing.T) {
	oracle := &fixedOracle{text: `{"primaryIntent":"web_development","confidence":85,"suggestedBackend":"/api/web-development","reasoning":"wants a website"}`}
	c := NewIntentClassifier(oracle)

	out, err := c.Classify(context.Background(), "I need a website", nil)
	require.NoError(t, err)
	require.Equal(t, schema.ServiceWebDevelopment, out.PrimaryIntent)
	require.Equal(t, 85, out.Confidence)
	require.Equal(t, "/api/web-development", out.SuggestedBackend)
	require.Equal(t, "wants a website", out.Reasoning)
	require.Equal(t, classifyMaxTokens, oracle.maxTokens)
	require.Contains(t, oracle.prompt, `"I need a website"`)
}

func TestClassify_EmbeddedJSON(t *testing.T) {
	oracle := &fixedOracle{text: "Here's my classification:\n{\"primaryIntent\":\"marketing\",\"confidence\":70,\"reasoning\":\"SEO work\"}\nHope that helps!"}
	c := NewIntentClassifier(oracle)

	out, err := c.Classify(context.Background(), "help me with SEO", nil)
	require.NoError(t, err)
	require.Equal(t, schema.ServiceMarketing, out.PrimaryIntent)
	require.Equal(t, 70, out.Confidence)
}

func TestClassify_MalformedOutput_DegradesToGeneral(t *testing.T) {
	for _, text := range []string{"not json at all", `{"primaryIntent": broken`, ""} {
		oracle := &fixedOracle{text: text}
		c := NewIntentClassifier(oracle)

		out, err := c.Classify(context.Background(), "hello", nil)
		require.NoError(t, err)
		require.Equal(t, schema.ServiceGeneral, out.PrimaryIntent)
		require.Equal(t, 0, out.Confidence)
		require.Equal(t, "classification failed", out.Reasoning)
	}
}

func TestClassify_UnknownCategory_DegradesToGeneral(t *testing.T) {
	oracle := &fixedOracle{text: `{"primaryIntent":"underwater_basket_weaving","confidence":99,"reasoning":"?"}`}
	c := NewIntentClassifier(oracle)

	out, err := c.Classify(context.Background(), "hello", nil)
	require.NoError(t, err)
	require.Equal(t, schema.ServiceGeneral, out.PrimaryIntent)
	require.Equal(t, 99, out.Confidence)
}

func TestClassify_ConfidenceClamped(t *testing.T) {
	oracle := &fixedOracle{text: `{"primaryIntent":"analytics","confidence":250,"reasoning":"sure"}`}
	c := NewIntentClassifier(oracle)

	out, err := c.Classify(context.Background(), "analyze my revenue", nil)
	require.NoError(t, err)
	require.Equal(t, 100, out.Confidence)
}

func TestClassify_TransportErrorPropagates(t *testing.T) {
	oracle := &fixedOracle{err: errors.New("connection refused")}
	c := NewIntentClassifier(oracle)

	_, err := c.Classify(context.Background(), "hello", nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "connection refused")
}

func TestClassify_HistoryIncludedInPrompt(t *testing.T) {
	oracle := &fixedOracle{text: `{"primaryIntent":"general","confidence":10,"reasoning":"unclear"}`}
	c := NewIntentClassifier(oracle)

	_, err := c.Classify(context.Background(), "and what about hosting?", []string{"user: I need a website", "assistant: What kind of site?"})
	require.NoError(t, err)
	require.Contains(t, oracle.prompt, "CONVERSATION HISTORY:")
	require.Contains(t, oracle.prompt, "user: I need a website")
}
