package testutil

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// SSEEvent is one parsed server-sent event frame.
type SSEEvent struct {
	Event string
	Data  string
	ID    string
}

// JSON unmarshals the event's data payload into v.
func (e *SSEEvent) JSON(v any) error {
	return json.Unmarshal([]byte(e.Data), v)
}

// ParseSSEResponse splits a text/event-stream body into events. Frames are
// blank-line separated; multiple data lines join with newlines; comment
// lines (leading colon) are skipped.
func ParseSSEResponse(body io.Reader) ([]SSEEvent, error) {
	var (
		events    []SSEEvent
		current   SSEEvent
		dataLines []string
	)

	flush := func() {
		if len(dataLines) == 0 && current.Event == "" && current.ID == "" {
			return
		}
		current.Data = strings.Join(dataLines, "\n")
		events = append(events, current)
		current = SSEEvent{}
		dataLines = nil
	}

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
			// heartbeat comment
		case strings.HasPrefix(line, "event:"):
			current.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		case strings.HasPrefix(line, "id:"):
			current.ID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		}
	}
	flush()

	return events, scanner.Err()
}

// EventsOfType filters events by their event name.
func EventsOfType(events []SSEEvent, name string) []SSEEvent {
	var out []SSEEvent
	for _, e := range events {
		if e.Event == name {
			out = append(out, e)
		}
	}
	return out
}
