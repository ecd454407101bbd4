package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"time"
)

// HTTPClient drives the API in tests. It either dispatches straight into an
// in-process Echo handler or speaks real HTTP to a deployed engine, so the
// same suite runs in both modes.
type HTTPClient struct {
	handler http.Handler

	baseURL string
	http    *http.Client
}

// NewHTTPClient wraps an in-process handler. When TEST_SERVER_URL is set the
// client targets that server instead and the handler is ignored.
func NewHTTPClient(handler http.Handler) *HTTPClient {
	return &HTTPClient{
		handler: handler,
		baseURL: os.Getenv("TEST_SERVER_URL"),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewExternalHTTPClient targets a running server, e.g. "http://localhost:3002".
func NewExternalHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// IsExternal reports whether requests leave the process.
func (c *HTTPClient) IsExternal() bool {
	return c.baseURL != ""
}

// BaseURL returns the external server URL, empty for in-process clients.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// HTTPResponse is the uniform response shape for both modes.
type HTTPResponse struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
}

// JSON unmarshals the response body into v.
func (r *HTTPResponse) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// String returns the response body as a string.
func (r *HTTPResponse) String() string {
	return string(r.Body)
}

// Request performs an HTTP request with the given options applied.
func (c *HTTPClient) Request(method, path string, opts ...RequestOption) *HTTPResponse {
	// Options mutate an httptest request; both modes start from one.
	req := httptest.NewRequest(method, path, nil)
	for _, opt := range opts {
		opt(req)
	}

	if !c.IsExternal() {
		rec := httptest.NewRecorder()
		c.handler.ServeHTTP(rec, req)
		return &HTTPResponse{
			StatusCode: rec.Code,
			Body:       rec.Body.Bytes(),
			Headers:    rec.Header(),
		}
	}
	return c.sendExternal(method, path, req)
}

// sendExternal replays the prepared request against the external server.
func (c *HTTPClient) sendExternal(method, path string, prepared *http.Request) *HTTPResponse {
	var body io.Reader
	if prepared.Body != nil {
		b, _ := io.ReadAll(prepared.Body)
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return &HTTPResponse{StatusCode: 0, Body: []byte(err.Error())}
	}
	for k, v := range prepared.Header {
		req.Header[k] = v
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &HTTPResponse{StatusCode: 0, Body: []byte(err.Error())}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	return &HTTPResponse{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Headers:    resp.Header,
	}
}

func (c *HTTPClient) GET(path string, opts ...RequestOption) *HTTPResponse {
	return c.Request(http.MethodGet, path, opts...)
}

func (c *HTTPClient) POST(path string, opts ...RequestOption) *HTTPResponse {
	return c.Request(http.MethodPost, path, opts...)
}

func (c *HTTPClient) PUT(path string, opts ...RequestOption) *HTTPResponse {
	return c.Request(http.MethodPut, path, opts...)
}

func (c *HTTPClient) DELETE(path string, opts ...RequestOption) *HTTPResponse {
	return c.Request(http.MethodDelete, path, opts...)
}

func (c *HTTPClient) PATCH(path string, opts ...RequestOption) *HTTPResponse {
	return c.Request(http.MethodPatch, path, opts...)
}

// Ingest posts a batch of nodes and edges and returns the batch report.
func (c *HTTPClient) Ingest(payload any, authToken string) (*IngestReport, error) {
	resp := c.POST("/api/ingest",
		WithAuth(authToken),
		WithJSONBody(payload),
	)
	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to ingest: status %d, body: %s", resp.StatusCode, resp.String())
	}

	var report IngestReport
	if err := resp.JSON(&report); err != nil {
		return nil, fmt.Errorf("failed to parse ingest report: %w", err)
	}
	return &report, nil
}

// RunQuery executes a hybrid query and returns the ranked candidates.
func (c *HTTPClient) RunQuery(text string, topK int, authToken string) (*QueryResponse, error) {
	body := map[string]any{"query": text}
	if topK > 0 {
		body["top_k"] = topK
	}

	resp := c.POST("/api/query",
		WithAuth(authToken),
		WithJSONBody(body),
	)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("query failed: status %d, body: %s", resp.StatusCode, resp.String())
	}

	var result QueryResponse
	if err := resp.JSON(&result); err != nil {
		return nil, fmt.Errorf("failed to parse query response: %w", err)
	}
	return &result, nil
}

// RebuildIndex triggers a snapshot rebuild and returns the raw response.
func (c *HTTPClient) RebuildIndex(authToken string) *HTTPResponse {
	return c.POST("/api/index/rebuild", WithAuth(authToken))
}

// IndexStatus fetches the current index status.
func (c *HTTPClient) IndexStatus(authToken string) (*IndexStatusResponse, error) {
	resp := c.GET("/api/index/status", WithAuth(authToken))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get index status: status %d, body: %s", resp.StatusCode, resp.String())
	}

	var status IndexStatusResponse
	if err := resp.JSON(&status); err != nil {
		return nil, fmt.Errorf("failed to parse index status: %w", err)
	}
	return &status, nil
}

// WaitForSnapshot polls the index status until a snapshot is serving or the
// timeout expires. Useful after ingest + rebuild in e2e tests.
func (c *HTTPClient) WaitForSnapshot(authToken string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		status, err := c.IndexStatus(authToken)
		if err == nil && status.Serving {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("no serving snapshot after %s", timeout)
}

// IngestReport is the batch report returned by POST /api/ingest.
type IngestReport struct {
	InsertedNodes int              `json:"inserted_nodes"`
	UpdatedNodes  int              `json:"updated_nodes"`
	InsertedEdges int              `json:"inserted_edges"`
	Rejected      []RejectedRecord `json:"rejected"`
}

// RejectedRecord describes a single record the ingest batch dropped.
type RejectedRecord struct {
	Record map[string]any `json:"record"`
	Reason string         `json:"reason"`
}

// QueryResponse is the response from POST /api/query.
type QueryResponse struct {
	Query      string           `json:"query"`
	Profile    string           `json:"profile"`
	Candidates []QueryCandidate `json:"candidates"`
	Partial    bool             `json:"partial"`
	SnapshotID string           `json:"snapshot_id"`
	TookMS     int64            `json:"took_ms"`
}

// QueryCandidate is one ranked result.
type QueryCandidate struct {
	NodeID        string  `json:"node_id"`
	Name          string  `json:"name"`
	Stack         string  `json:"stack"`
	Type          string  `json:"type"`
	LexicalScore  float64 `json:"lexical_score"`
	VectorScore   float64 `json:"vector_score"`
	GraphScore    float64 `json:"graph_score"`
	CombinedScore float64 `json:"combined_score"`
}

// IndexStatusResponse is the response from GET /api/index/status.
type IndexStatusResponse struct {
	Serving    bool               `json:"serving"`
	Snapshot   *IndexSnapshotInfo `json:"snapshot,omitempty"`
	Dirty      bool               `json:"dirty"`
	Queue      map[string]any     `json:"queue"`
	ArchiveSet bool               `json:"archive_configured"`
}

// IndexSnapshotInfo summarizes the serving snapshot.
type IndexSnapshotInfo struct {
	BuildID     string `json:"build_id"`
	BuildSeq    int64  `json:"build_seq"`
	Nodes       int    `json:"nodes"`
	Edges       int    `json:"edges"`
	Vectors     int    `json:"vectors"`
	PathEntries int    `json:"path_entries"`
	Provider    string `json:"provider"`
	Quality     string `json:"quality"`
	Overflowed  int    `json:"overflowed"`
}
