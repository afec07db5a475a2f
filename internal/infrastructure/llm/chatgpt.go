package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"PulseIngest/internal/config"
	"PulseIngest/internal/domain"
	"PulseIngest/internal/ports"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ChatGPTClient implements ports.Generator backed by OpenAI-compatible APIs.
//
// Every Generate call first waits RequestDelay to pace the provider. A 429
// is retried exactly once after the provider's suggested delay
// (DefaultRetryAfter when it gives none); any other failure is returned as is.
type ChatGPTClient struct {
	endpoint          string
	model             string
	apiKey            string
	temperature       float64
	maxTokens         int
	audience          string
	requestDelay      time.Duration
	defaultRetryAfter time.Duration
	httpClient        *http.Client
	sleep             SleepFunc
	now               func() time.Time
	retry             retrypolicy.RetryPolicy[string]
	logger            *slog.Logger
}

var _ ports.Generator = (*ChatGPTClient)(nil)

// Option customizes a ChatGPTClient.
type Option func(*ChatGPTClient)

// WithSleeper replaces the pacing/backoff sleep.
func WithSleeper(sleep SleepFunc) Option {
	return func(c *ChatGPTClient) { c.sleep = sleep }
}

// WithHTTPClient replaces the transport client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *ChatGPTClient) { c.httpClient = client }
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ChatGPTClient) { c.logger = logger }
}

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.LLMConfig, opts ...Option) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	defaultRetryAfter := cfg.DefaultRetryAfter
	if defaultRetryAfter <= 0 {
		defaultRetryAfter = 60 * time.Second
	}

	c := &ChatGPTClient{
		endpoint:          cfg.Endpoint,
		model:             cfg.Model,
		apiKey:            cfg.APIKey,
		temperature:       cfg.Temperature,
		maxTokens:         cfg.MaxTokens,
		audience:          cfg.Audience,
		requestDelay:      cfg.RequestDelay,
		defaultRetryAfter: defaultRetryAfter,
		httpClient:        &http.Client{Timeout: timeout},
		sleep:             sleepContext,
		now:               time.Now,
		retry: retrypolicy.NewBuilder[string]().
			HandleIf(func(_ string, err error) bool { return IsRateLimited(err) }).
			WithMaxRetries(1).
			ReturnLastFailure().
			Build(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate paces, calls the model and decodes its labeled sections.
func (c *ChatGPTClient) Generate(ctx context.Context, article domain.Article) (domain.Analysis, error) {
	if c == nil {
		return domain.Analysis{}, fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.Analysis{}, fmt.Errorf("chatgpt client misconfigured")
	}

	prompt := BuildPrompt(article, c.audience)

	attempt := 0
	wait := c.requestDelay
	text, err := failsafe.With(c.retry).WithContext(ctx).Get(func() (string, error) {
		attempt++
		if err := c.sleep(ctx, wait); err != nil {
			return "", err
		}

		out, err := c.complete(ctx, prompt)
		if IsRateLimited(err) {
			wait = c.retryDelay(err)
			c.warn("rate limited by provider", "url", article.URL, "attempt", attempt, "retry_in", wait)
		}
		return out, err
	})
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("generate %s: %w", article.URL, err)
	}

	return DecodeAnalysis(text), nil
}

func (c *ChatGPTClient) retryDelay(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}
	return c.defaultRetryAfter
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *ChatGPTClient) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send completion: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		text := strings.TrimSpace(string(payload))
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header, text, c.now()),
			Body:       truncate(text, 512),
		}
		return "", apiErr
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode completion: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}
	return decoded.Choices[0].Message.Content, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func (c *ChatGPTClient) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
