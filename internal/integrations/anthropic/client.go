// Package anthropic implements the semantic-oracle capability on top of
// the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	defaultModel   = "claude-sonnet-4-20250514"
	defaultTimeout = 10 * time.Second
)

// tokenPayload is the expected JSON shape stored in SSM for the API token.
type tokenPayload struct {
	Token string `json:"token"`
}

// Getter is the parameter retrieval the client needs for its API token.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware
// context, so callers can distinguish rate limiting from other failures.
type HTTPStatusError struct {
	StatusCode int
	Message    string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("anthropic: unexpected status %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client calls the Anthropic Messages API with a single-prompt shape. The
// API token is fetched from the parameter store on first use and reused
// for the process lifetime.
type Client struct {
	getter      Getter
	paramPrefix string
	model       string
	httpClient  *http.Client

	initOnce sync.Once
	sdk      sdk.Client
	initErr  error
}

type Option func(*Client)

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.model = model
		}
	}
}

// WithHTTPClient overrides the default HTTP client (10s timeout).
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient creates a Client backed by the given parameter Getter for API
// token retrieval.
func NewClient(getter Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if getter == nil {
		return nil, errors.New("anthropic: parameter getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("anthropic: parameter prefix must not be empty")
	}
	c := &Client{
		getter:      getter,
		paramPrefix: paramPrefix,
		model:       defaultModel,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/anthropic-token"
}

// resolveSDK builds the SDK client on first use and caches the result,
// including any initialization failure.
func (c *Client) resolveSDK(ctx context.Context) (sdk.Client, error) {
	c.initOnce.Do(func() {
		apiKey, err := fetchAPIKey(ctx, c.getter, c.tokenParameterName())
		if err != nil {
			c.initErr = err
			return
		}
		c.sdk = sdk.NewClient(
			option.WithAPIKey(apiKey),
			option.WithHTTPClient(c.httpClient),
		)
	})
	return c.sdk, c.initErr
}

// Infer sends a single-turn prompt and returns the model's text. The
// returned text carries no structural guarantee; callers parse it under
// their own degrade-to-default policies. Errors are transport failures.
func (c *Client) Infer(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", errors.New("anthropic: prompt must not be empty")
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	client, err := c.resolveSDK(ctx)
	if err != nil {
		return "", err
	}

	message, err := client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return "", &HTTPStatusError{StatusCode: apiErr.StatusCode, Message: apiErr.Error()}
		}
		return "", fmt.Errorf("anthropic: request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		text.WriteString(block.Text)
	}
	if text.Len() == 0 {
		return "", errors.New("anthropic: empty response content")
	}
	return text.String(), nil
}

func fetchAPIKey(ctx context.Context, getter Getter, name string) (string, error) {
	raw, err := getter.GetParameter(ctx, name)
	if err != nil {
		return "", fmt.Errorf("anthropic: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("anthropic: unmarshal paramstore token value as JSON: %w", err)
	}
	if tp.Token == "" {
		return "", errors.New("anthropic: API token is empty")
	}
	return tp.Token, nil
}
