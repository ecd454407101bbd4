// Package vertex embeds text through the Vertex AI prediction endpoint
// using application default credentials.
package vertex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2/google"
)

const (
	DefaultModel   = "text-embedding-004"
	DefaultTimeout = 30 * time.Second

	// maxBatch is the instance limit per predict call.
	maxBatch = 100

	defaultMaxRetries = 3
	defaultBaseDelay  = 100 * time.Millisecond
	defaultMaxDelay   = 10 * time.Second

	taskQuery    = "RETRIEVAL_QUERY"
	taskDocument = "RETRIEVAL_DOCUMENT"
)

// Config identifies the model endpoint. ProjectID and Location are required.
type Config struct {
	ProjectID string
	Location  string
	Model     string
	Timeout   time.Duration
}

// Client calls the publisher model predict API. Transient failures (429,
// 5xx) retry with exponential backoff.
type Client struct {
	projectID  string
	location   string
	model      string
	httpClient *http.Client
	creds      *google.Credentials
	log        *slog.Logger

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

// NewClient resolves application default credentials and returns a client.
func NewClient(ctx context.Context, cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("vertex: project ID is required")
	}
	if cfg.Location == "" {
		return nil, fmt.Errorf("vertex: location is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
	if err != nil {
		return nil, fmt.Errorf("vertex: find default credentials: %w", err)
	}

	c := &Client{
		projectID:  cfg.ProjectID,
		location:   cfg.Location,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		creds:      creds,
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

type predictRequest struct {
	Instances []instance `json:"instances"`
}

type instance struct {
	Content  string `json:"content"`
	TaskType string `json:"task_type"`
}

type predictResponse struct {
	Predictions []struct {
		Embeddings struct {
			Values []float32 `json:"values"`
		} `json:"embeddings"`
	} `json:"predictions"`
}

// EmbedQuery embeds a single search query.
func (c *Client) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := c.embed(ctx, []string{query}, taskQuery)
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("vertex: no embedding returned")
	}
	return vecs[0], nil
}

// EmbedDocuments embeds documents in API-sized batches, preserving order.
func (c *Client) EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error) {
	out := make([][]float32, 0, len(documents))
	for i := 0; i < len(documents); i += maxBatch {
		end := min(i+maxBatch, len(documents))
		vecs, err := c.embed(ctx, documents[i:end], taskDocument)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", i, end, err)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *Client) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	url := fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		c.location, c.projectID, c.location, c.model,
	)

	instances := make([]instance, len(texts))
	for i, t := range texts {
		instances[i] = instance{Content: t, TaskType: taskType}
	}
	body, err := json.Marshal(predictRequest{Instances: instances})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var resp *predictResponse
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

		resp, lastErr = c.predict(ctx, url, body)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn("embedding request failed",
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()))
	}
	if lastErr != nil {
		return nil, fmt.Errorf("retries exhausted: %w", lastErr)
	}

	vecs := make([][]float32, len(resp.Predictions))
	for i, p := range resp.Predictions {
		vecs[i] = p.Embeddings.Values
	}
	return vecs, nil
}

func (c *Client) predict(ctx context.Context, url string, body []byte) (*predictResponse, error) {
	token, err := c.creds.TokenSource.Token()
	if err != nil {
		return nil, fmt.Errorf("access token: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, &retryableError{err: apiErr}
		}
		return nil, apiErr
	}

	result := new(predictResponse)
	if err := json.Unmarshal(respBody, result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return result, nil
}

func backoff(base, cap time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > cap || d <= 0 {
		return cap
	}
	return d
}

type retryableError struct{ err error }

func (e *retryableError) Error() string { return "retryable: " + e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }
