package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bdobrica/Kensa/common/retry"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "gpt-4o-mini"
	defaultTimeout   = 30 * time.Second
	defaultMaxTokens = 1800
)

// Config configures the OpenAI-compatible chat provider.
type Config struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint. Useful for local models (Ollama),
	// Azure OpenAI, or any other OpenAI-compatible endpoint.
	// Defaults to https://api.openai.com/v1 when empty.
	BaseURL string

	// Model is the chat model to use. Defaults to gpt-4o-mini when empty.
	Model string

	// Timeout is the HTTP request timeout. Defaults to 30s.
	Timeout time.Duration

	// MaxTokens caps the completion length. Defaults to 1800.
	MaxTokens int

	// Temperature is passed through verbatim. Kensa runs analytics prompts
	// at 0 for repeatability, which is also the zero value.
	Temperature float64
}

// openAIProvider implements Provider using the OpenAI chat completions API.
type openAIProvider struct {
	cfg    Config
	client *http.Client
}

// NewOpenAI returns a Provider backed by the OpenAI (or compatible) chat
// API. The returned provider is safe for concurrent use.
func NewOpenAI(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &openAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal OpenAI wire types ---

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature"`
}

type oaiResponse struct {
	Choices []oaiChoice `json:"choices"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type oaiChoice struct {
	Message      oaiMessage `json:"message"`
	FinishReason string     `json:"finish_reason"`
}

// retryableStatus marks HTTP statuses worth a second attempt. 429 is
// excluded: it is surfaced as ErrRateLimit so the caller can report the
// throttle instead of burning more quota.
type retryableStatus struct {
	code int
}

func (e *retryableStatus) Error() string {
	return fmt.Sprintf("llm: transient HTTP %d from API", e.code)
}

// Invoke sends the message sequence to the chat completions endpoint and
// returns the trimmed completion text. Transient transport failures and
// 5xx responses are retried with exponential backoff.
func (p *openAIProvider) Invoke(ctx context.Context, messages []Message) (string, error) {
	payload := make([]oaiMessage, 0, len(messages))
	for _, m := range messages {
		payload = append(payload, oaiMessage{Role: string(m.Role), Content: m.Content})
	}

	body := oaiRequest{
		Model:       p.cfg.Model,
		Messages:    payload,
		MaxTokens:   p.cfg.MaxTokens,
		Temperature: p.cfg.Temperature,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("llm: marshal request: %w", err)
	}

	var text string
	err = retry.Do(ctx, retry.Config{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		ShouldRetry: func(err error) bool {
			var transient *retryableStatus
			if errors.As(err, &transient) {
				return true
			}
			// Network-level failures are retryable; API-level errors
			// (auth, malformed request, rate limit) are not.
			return !errors.Is(err, ErrRateLimit) && isTransportError(err)
		},
	}, func() error {
		text, err = p.call(ctx, data)
		return err
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// call performs one HTTP round-trip.
func (p *openAIProvider) call(ctx context.Context, data []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return "", fmt.Errorf("llm: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("llm: read response body: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimit
	}
	if resp.StatusCode >= 500 {
		return "", &retryableStatus{code: resp.StatusCode}
	}

	var oaiResp oaiResponse
	if err := json.Unmarshal(respBody, &oaiResp); err != nil {
		return "", fmt.Errorf("llm: decode API response: %w", err)
	}
	if oaiResp.Error != nil {
		return "", fmt.Errorf("llm: API error (%s): %s", oaiResp.Error.Type, oaiResp.Error.Message)
	}
	if len(oaiResp.Choices) == 0 {
		return "", fmt.Errorf("llm: no choices returned (HTTP %d)", resp.StatusCode)
	}

	return strings.TrimSpace(oaiResp.Choices[0].Message.Content), nil
}

// isTransportError reports whether err came from the HTTP client rather
// than the API itself.
func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "llm: http request:")
}
