package graph

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Node is a typed entity in the graph. The id is a stable string key,
// globally unique after namespace prefixing. seq records global insertion
// order; lexical ranking uses it to break score ties deterministically.
type Node struct {
	bun.BaseModel `bun:"table:engine.nodes,alias:n"`

	ID             string         `bun:"id,pk" json:"id"`
	Type           string         `bun:"type,notnull" json:"type"`
	Name           string         `bun:"name,notnull" json:"name"`
	Description    string         `bun:"description,notnull,default:''" json:"description"`
	IntentKeywords []string       `bun:"intent_keywords,array,notnull,default:'{}'" json:"intent_keywords"`
	Metadata       map[string]any `bun:"metadata,type:jsonb,notnull,default:'{}'" json:"metadata"`
	Namespace      string         `bun:"namespace,notnull,default:'default'" json:"namespace"`
	Seq            int64          `bun:"seq,autoincrement" json:"-"`

	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}

// Stack returns the sub-graph partition label used by cross-stack
// traversal: the metadata "stack" key, falling back to the node type.
func (n *Node) Stack() string {
	if n.Metadata != nil {
		if s, ok := n.Metadata["stack"].(string); ok && s != "" {
			return s
		}
	}
	return n.Type
}

// Edge is a directed, typed relationship. An edge never implies its own
// reverse. Identity is the natural key (from_id, to_id, type).
type Edge struct {
	bun.BaseModel `bun:"table:engine.edges,alias:e"`

	FromID string  `bun:"from_id,pk" json:"from_id"`
	ToID   string  `bun:"to_id,pk" json:"to_id"`
	Type   string  `bun:"type,pk" json:"type"`
	Weight float64 `bun:"weight,notnull,default:1.0" json:"weight"`
	Source string  `bun:"source,notnull,default:''" json:"source"`

	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"created_at"`
}

// Embedding is one stored vector for a (node, provider namespace) pair.
// Vectors from different providers are never compared against each other.
type Embedding struct {
	bun.BaseModel `bun:"table:engine.embeddings,alias:emb"`

	NodeID     string    `bun:"node_id,pk" json:"node_id"`
	Provider   string    `bun:"provider,pk" json:"provider"`
	Dimension  int       `bun:"dimension,notnull" json:"dimension"`
	Components []float32 `bun:"components,array,notnull" json:"components"`
	Norm       float64   `bun:"norm,notnull" json:"norm"`

	UpdatedAt time.Time `bun:"updated_at,notnull,default:now()" json:"updated_at"`
}

// Merge decision outcomes recorded in the merge log.
const (
	MergeDecisionMerged       = "merged"
	MergeDecisionKeptDistinct = "kept_distinct"
	MergeDecisionBoundary     = "boundary_merged"
)

// Dedup tiers in decreasing confidence order.
const (
	MergeTierExact           = "exact"
	MergeTierCaseInsensitive = "case_insensitive"
	MergeTierFuzzySubstring  = "fuzzy_substring"
)

// MergeLogEntry is the audit record for one dedup decision during a merge
// pass. Every considered candidate pair is logged, including pairs kept
// distinct, so merge behavior is reviewable after the fact.
type MergeLogEntry struct {
	bun.BaseModel `bun:"table:engine.merge_log,alias:ml"`

	ID              uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	CanonicalID     string    `bun:"canonical_id,notnull" json:"canonical_id"`
	DuplicateID     string    `bun:"duplicate_id,notnull" json:"duplicate_id"`
	DuplicateName   string    `bun:"duplicate_name,notnull" json:"duplicate_name"`
	Tier            string    `bun:"tier,notnull" json:"tier"`
	Confidence      float64   `bun:"confidence,notnull" json:"confidence"`
	Threshold       float64   `bun:"threshold,notnull" json:"threshold"`
	Decision        string    `bun:"decision,notnull" json:"decision"`
	EdgesRedirected int       `bun:"edges_redirected,notnull,default:0" json:"edges_redirected"`

	CreatedAt time.Time `bun:"created_at,notnull,default:now()" json:"created_at"`
}

// graphMeta is the single bookkeeping row tracking pending changes since
// the last snapshot build.
type graphMeta struct {
	bun.BaseModel `bun:"table:engine.graph_meta,alias:gm"`

	ID             int        `bun:"id,pk"`
	Dirty          bool       `bun:"dirty,notnull"`
	LastModifiedAt *time.Time `bun:"last_modified_at"`
	UpdatedAt      time.Time  `bun:"updated_at,notnull,default:now()"`
}
