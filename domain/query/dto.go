package query

// Request is the body of POST /api/query. MaxDepth tightens graph
// proximity below the index's build depth; it can never widen it.
type Request struct {
	Query       string `json:"query" validate:"required"`
	Profile     string `json:"profile,omitempty"`
	TopK        int    `json:"top_k,omitempty"`
	MaxDepth    int    `json:"max_depth,omitempty"`
	StackFilter string `json:"stack_filter,omitempty"`
}

// GraphTrace explains how a candidate's graph proximity score was
// derived: which seed reached it, in how many hops, and with what seed
// evidence.
type GraphTrace struct {
	Seed         string  `json:"seed"`
	Hops         int     `json:"hops"`
	SeedEvidence float64 `json:"seed_evidence"`
}

// Candidate is one ranked result with its full score breakdown.
type Candidate struct {
	NodeID       string      `json:"node_id"`
	Name         string      `json:"name"`
	Stack        string      `json:"stack"`
	Type         string      `json:"type"`
	Description  string      `json:"description,omitempty"`
	Combined     float64     `json:"combined_score"`
	LexicalScore float64     `json:"lexical_score"`
	VectorScore  float64     `json:"vector_score"`
	GraphScore   float64     `json:"graph_score"`
	GraphTrace   *GraphTrace `json:"graph_trace,omitempty"`
}

// Response is the ranked answer to a query.
type Response struct {
	Query      string      `json:"query"`
	Profile    string      `json:"profile"`
	Weights    Weights     `json:"weights"`
	Candidates []Candidate `json:"candidates"`
	Partial    bool        `json:"partial"`
	SnapshotID string      `json:"snapshot_id"`
	TookMs     int64       `json:"took_ms"`
}

// Weights echoes the fusion weights the profile applied.
type Weights struct {
	Vector  float64 `json:"vector"`
	Lexical float64 `json:"lexical"`
	Graph   float64 `json:"graph"`
}
