package graph

// NodeRequest is one node in an ingest payload.
type NodeRequest struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	IntentKeywords []string       `json:"intent_keywords,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// EdgeRequest is one edge in an ingest payload.
type EdgeRequest struct {
	FromID string  `json:"from_id"`
	ToID   string  `json:"to_id"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight,omitempty"`
	Source string  `json:"source,omitempty"`
}

// NeighborsResponse is the API response for a node adjacency listing.
type NeighborsResponse struct {
	NodeID    string     `json:"node_id"`
	Direction string     `json:"direction"`
	EdgeType  string     `json:"edge_type,omitempty"`
	Neighbors []Neighbor `json:"neighbors"`
	Count     int        `json:"count"`
}

// MergeRequest is the request body for a namespace merge pass.
type MergeRequest struct {
	Namespace string  `json:"namespace"`
	Threshold float64 `json:"threshold,omitempty"`
}

// MergeLogResponse is the API response for the merge decision log.
type MergeLogResponse struct {
	Entries []*MergeLogEntry `json:"entries"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}
