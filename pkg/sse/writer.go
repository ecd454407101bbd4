// Package sse implements the Server-Sent Events stream used by the
// traversal endpoint: typed hop/answer/error/done events over a flushed
// HTTP response.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("sse: writer closed")

// Writer serializes events onto an HTTP response. Safe for concurrent
// use; the traversal service emits hop events from its walk goroutine
// while the handler writes the terminal events.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
	started bool
	closed  bool
}

// NewWriter wraps a response writer. Headers are not touched until
// Start, so request validation can still return a normal error status.
func NewWriter(w http.ResponseWriter) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// Start writes the event-stream headers and flushes them. Idempotent.
func (s *Writer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Content-Type-Options", "nosniff")
	s.w.WriteHeader(http.StatusOK)
	s.flush()

	s.started = true
	return nil
}

// WriteEvent emits one named event with a JSON payload.
func (s *Writer) WriteEvent(name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("sse: marshal %s event: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeFrame(name, string(data))
}

// WriteComment emits a comment line. Used as a heartbeat on idle
// streams; clients ignore it.
func (s *Writer) WriteComment(comment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", comment); err != nil {
		return err
	}
	s.flush()
	return nil
}

// writeFrame writes "event: name\ndata: ...\n\n". Callers hold the lock.
func (s *Writer) writeFrame(name, data string) error {
	if s.closed {
		return ErrClosed
	}
	if name != "" {
		if _, err := fmt.Fprintf(s.w, "event: %s\n", name); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *Writer) flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}

// Close rejects further writes. It does not close the underlying
// response.
func (s *Writer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// IsClosed reports whether Close has been called.
func (s *Writer) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
