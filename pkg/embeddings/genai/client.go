// Package genai embeds text through the Gemini API with an API key.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"
)

const (
	DefaultModel = "text-embedding-004"

	defaultMaxRetries = 3
	defaultBaseDelay  = 100 * time.Millisecond
	defaultMaxDelay   = 10 * time.Second

	taskQuery    = "RETRIEVAL_QUERY"
	taskDocument = "RETRIEVAL_DOCUMENT"
)

// Config holds the API key and model. APIKey is required.
type Config struct {
	APIKey string
	Model  string
}

// Client wraps the Gemini SDK's embed-content call with retry and backoff.
type Client struct {
	client *genai.Client
	model  string
	log    *slog.Logger

	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

type ClientOption func(*Client)

func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

func WithBaseDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.baseDelay = d }
}

func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) { c.maxDelay = d }
}

func WithLogger(log *slog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

func NewClient(ctx context.Context, cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("genai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai: create client: %w", err)
	}

	c := &Client{
		client:     sdk,
		model:      cfg.Model,
		log:        slog.Default(),
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		maxDelay:   defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EmbedQuery embeds a single search query.
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := c.embedWithRetry(ctx, []string{query}, taskQuery)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("genai: no embedding returned")
	}
	return vecs[0], nil
}

// EmbedDocuments embeds documents one call each, preserving order.
func (c *Client) EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error) {
	out := make([][]float32, 0, len(documents))
	for i, doc := range documents {
		vecs, err := c.embedWithRetry(ctx, []string{doc}, taskDocument)
		if err != nil {
			return nil, fmt.Errorf("embed document %d: %w", i, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embedWithRetry(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(c.baseDelay, c.maxDelay, attempt)
			c.log.Debug("retrying embedding request",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		vecs, err := c.embedBatch(ctx, texts, taskType)
		if err == nil {
			return vecs, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		c.log.Warn("embedding request failed",
			slog.Int("attempt", attempt),
			slog.String("error", err.Error()))
	}
	return nil, fmt.Errorf("retries exhausted: %w", lastErr)
}

func (c *Client) embedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	vecs := make([][]float32, 0, len(texts))
	for _, text := range texts {
		result, err := c.client.Models.EmbedContent(
			ctx,
			c.model,
			genai.Text(text),
			&genai.EmbedContentConfig{TaskType: taskType},
		)
		if err != nil {
			return nil, fmt.Errorf("embed content: %w", err)
		}
		if len(result.Embeddings) == 0 {
			return nil, fmt.Errorf("empty embedding response")
		}
		vecs = append(vecs, result.Embeddings[0].Values)
	}
	return vecs, nil
}

func backoff(base, cap time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > cap || d <= 0 {
		return cap
	}
	return d
}
