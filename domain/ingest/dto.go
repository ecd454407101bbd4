package ingest

import "github.com/meridian-ai/meridian/domain/graph"

// NodeRecord is one node in an ingestion batch.
type NodeRecord struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	IntentKeywords []string       `json:"intent_keywords,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Namespace      string         `json:"namespace,omitempty"`
}

func (r NodeRecord) toModel() *graph.Node {
	ns := r.Namespace
	if ns == "" {
		ns = "default"
	}
	keywords := r.IntentKeywords
	if keywords == nil {
		keywords = []string{}
	}
	metadata := r.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	return &graph.Node{
		ID:             r.ID,
		Type:           r.Type,
		Name:           r.Name,
		Description:    r.Description,
		IntentKeywords: keywords,
		Metadata:       metadata,
		Namespace:      ns,
	}
}

// EdgeRecord is one edge in an ingestion batch.
type EdgeRecord struct {
	FromID string  `json:"from_id"`
	ToID   string  `json:"to_id"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight,omitempty"`
	Source string  `json:"source,omitempty"`
}

func (r EdgeRecord) toModel() *graph.Edge {
	weight := r.Weight
	if weight == 0 {
		weight = 1.0
	}
	return &graph.Edge{
		FromID: r.FromID,
		ToID:   r.ToID,
		Type:   r.Type,
		Weight: weight,
		Source: r.Source,
	}
}

// Request is the body of POST /api/ingest: nodes are written before
// edges so forward references within one batch resolve.
type Request struct {
	Nodes []NodeRecord `json:"nodes"`
	Edges []EdgeRecord `json:"edges"`
}

// Rejection records one failed record and why it was skipped. The rest
// of the batch proceeds.
type Rejection struct {
	Record any    `json:"record"`
	Reason string `json:"reason"`
}

// Report summarizes what a batch actually changed.
type Report struct {
	InsertedNodes int         `json:"inserted_nodes"`
	UpdatedNodes  int         `json:"updated_nodes"`
	InsertedEdges int         `json:"inserted_edges"`
	Rejected      []Rejection `json:"rejected"`
}
