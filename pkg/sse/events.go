package sse

// TraversalEventType represents the type of SSE event in traversal streaming.
type TraversalEventType string

const (
	// EventHop is emitted once per traversal hop as it completes.
	EventHop TraversalEventType = "hop"

	// EventAnswer carries the synthesized answer after the final hop.
	EventAnswer TraversalEventType = "answer"

	// EventError is emitted when an error occurs during streaming.
	EventError TraversalEventType = "error"

	// EventDone is the final event, signaling end of stream.
	EventDone TraversalEventType = "done"
)

// HopEvent is emitted for each completed traversal hop.
type HopEvent struct {
	Type       string  `json:"type"`
	Hop        int     `json:"hop"`
	State      string  `json:"state"`
	Stack      string  `json:"stack"`
	EdgeType   string  `json:"edge_type,omitempty"`
	NodeID     string  `json:"node_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Confidence float64 `json:"confidence"`
}

// NewHopEvent creates a new hop event.
func NewHopEvent(hop int, state, stack, edgeType, nodeID, name string, confidence float64) HopEvent {
	return HopEvent{
		Type:       string(EventHop),
		Hop:        hop,
		State:      state,
		Stack:      stack,
		EdgeType:   edgeType,
		NodeID:     nodeID,
		Name:       name,
		Confidence: confidence,
	}
}

// AnswerEvent carries the synthesized answer and terminal outcome.
type AnswerEvent struct {
	Type       string  `json:"type"`
	Outcome    string  `json:"outcome"`
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Hops       int     `json:"hops"`
}

// NewAnswerEvent creates a new answer event.
func NewAnswerEvent(outcome, answer string, confidence float64, hops int) AnswerEvent {
	return AnswerEvent{
		Type:       string(EventAnswer),
		Outcome:    outcome,
		Answer:     answer,
		Confidence: confidence,
		Hops:       hops,
	}
}

// ErrorEvent is emitted when an error occurs during streaming.
type ErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewErrorEvent creates a new error event.
func NewErrorEvent(errMsg string) ErrorEvent {
	return ErrorEvent{
		Type:  string(EventError),
		Error: errMsg,
	}
}

// DoneEvent is the final event signaling end of stream.
type DoneEvent struct {
	Type string `json:"type"`
}

// NewDoneEvent creates a new done event.
func NewDoneEvent() DoneEvent {
	return DoneEvent{
		Type: string(EventDone),
	}
}
