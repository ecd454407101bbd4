// Package snapshot owns the build/serve cycle: it assembles the lexical,
// vector, and path indexes from one consistent graph read and swaps the
// result in atomically, so queries never observe a partially built index.
package snapshot

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-ai/meridian/domain/graph"
	"github.com/meridian-ai/meridian/domain/lexical"
	"github.com/meridian-ai/meridian/domain/pathindex"
	"github.com/meridian-ai/meridian/domain/vector"
	"github.com/meridian-ai/meridian/pkg/embeddings"
)

// Snapshot is one immutable serving state: the graph view the indexes were
// built from plus the three indexes themselves. All fields are read-only
// after construction; queries pin one Snapshot for their whole lifetime.
type Snapshot struct {
	ID       uuid.UUID
	BuildSeq int64

	View    *graph.View
	Lexical *lexical.Index
	Vectors *vector.Index
	Paths   *pathindex.Lookup

	// Provider is the embedding provider namespace the vector index was
	// built for; Quality selects the default fusion profile.
	Provider string
	Quality  embeddings.QualityClass

	// Overflowed counts BFS runs truncated by the visit cap during the
	// path build.
	Overflowed int

	BuiltAt time.Time
}

// Holder publishes the current serving snapshot. Swaps are atomic; readers
// never block writers and vice versa.
type Holder struct {
	current atomic.Pointer[Snapshot]

	mu     sync.Mutex
	onSwap []func(*Snapshot)
}

// NewHolder creates an empty holder. Current returns nil until the first
// swap.
func NewHolder() *Holder {
	return &Holder{}
}

// Current returns the serving snapshot, or nil when no build has completed
// yet.
func (h *Holder) Current() *Snapshot {
	return h.current.Load()
}

// Swap publishes a new snapshot and runs the registered swap hooks (cache
// invalidation, metrics). In-flight queries keep the snapshot they already
// loaded.
func (h *Holder) Swap(s *Snapshot) {
	h.current.Store(s)

	h.mu.Lock()
	hooks := make([]func(*Snapshot), len(h.onSwap))
	copy(hooks, h.onSwap)
	h.mu.Unlock()

	for _, hook := range hooks {
		hook(s)
	}
}

// OnSwap registers a hook invoked after every swap. Hooks must be fast and
// must not call back into the holder.
func (h *Holder) OnSwap(hook func(*Snapshot)) {
	h.mu.Lock()
	h.onSwap = append(h.onSwap, hook)
	h.mu.Unlock()
}
