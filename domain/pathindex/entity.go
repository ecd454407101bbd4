// Package pathindex precomputes bounded-depth reachability over the graph:
// one BFS per node per direction, persisted so "what does X lead to" and
// "what requires X" are lookups instead of live traversals.
package pathindex

import (
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Direction of a stored reachability entry. Forward follows edges as
// written; reverse follows them against their direction.
type Direction string

const (
	DirectionForward Direction = "forward"
	DirectionReverse Direction = "reverse"
)

// Entry records that end_id is reachable from start_id within the depth
// bound. Length is the shortest hop count; NodeSequence is one witness
// path holding the intermediate node ids only, chosen as the
// lexicographically smallest among equal-length paths so rebuilds of an
// unchanged graph are byte-identical. Partial marks entries whose BFS run
// hit the visit cap and was truncated.
type Entry struct {
	bun.BaseModel `bun:"table:engine.path_index,alias:pi"`

	StartID      string    `bun:"start_id,pk" json:"start_id"`
	EndID        string    `bun:"end_id,pk" json:"end_id"`
	Direction    Direction `bun:"direction,pk" json:"direction"`
	Length       int       `bun:"length,notnull" json:"length"`
	NodeSequence []string  `bun:"node_sequence,array,notnull" json:"node_sequence"`
	Partial      bool      `bun:"partial,notnull,default:false" json:"partial"`
	BuildID      uuid.UUID `bun:"build_id,type:uuid,notnull" json:"build_id"`
}

// Path returns the full witness path including both endpoints.
func (e *Entry) Path() []string {
	path := make([]string, 0, len(e.NodeSequence)+2)
	path = append(path, e.StartID)
	path = append(path, e.NodeSequence...)
	return append(path, e.EndID)
}
