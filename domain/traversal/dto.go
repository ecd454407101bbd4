package traversal

// Request is the body of POST /api/traverse and the query parameters of
// the SSE variant.
type Request struct {
	Query      string `json:"query" validate:"required"`
	StartStack string `json:"start_stack,omitempty"`
	MaxHops    int    `json:"max_hops,omitempty"`
}

// TraceEntry records one completed hop for the audit trail.
type TraceEntry struct {
	Hop        int     `json:"hop"`
	State      State   `json:"state"`
	Stack      string  `json:"stack"`
	EdgeType   string  `json:"edge_type,omitempty"`
	NodeID     string  `json:"node_id,omitempty"`
	Name       string  `json:"name,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Result is the terminal traversal outcome with its full audit trace.
type Result struct {
	Query      string       `json:"query"`
	Outcome    Outcome      `json:"outcome"`
	Answer     string       `json:"answer"`
	NodeID     string       `json:"node_id,omitempty"`
	Confidence float64      `json:"confidence"`
	Hops       int          `json:"hops"`
	Trace      []TraceEntry `json:"trace"`
}
