package vector

import "sort"

// Options control how provider indexes are built. Below HNSWMinNodes (or
// with HNSW disabled) a provider is served by exact scan; both paths rank
// identically on collections that small.
type Options struct {
	HNSWEnabled  bool
	HNSWMinNodes int
	EfSearch     int
}

// DefaultOptions mirrors the engine configuration defaults.
func DefaultOptions() Options {
	return Options{HNSWEnabled: true, HNSWMinNodes: 2000, EfSearch: 64}
}

// Result is one similarity match.
type Result struct {
	NodeID     string  `json:"node_id"`
	Similarity float64 `json:"similarity"`
}

type entry struct {
	nodeID     string
	components []float32
	norm       float64
}

// Builder accumulates embeddings per provider and produces an immutable
// Index at snapshot build time.
type Builder struct {
	opts      Options
	providers map[string][]entry
}

// NewBuilder creates an index builder.
func NewBuilder(opts Options) *Builder {
	if opts.EfSearch <= 0 {
		opts.EfSearch = DefaultOptions().EfSearch
	}
	return &Builder{opts: opts, providers: make(map[string][]entry)}
}

// Add registers one stored embedding under its provider namespace. A
// non-positive norm is recomputed from the components.
func (b *Builder) Add(provider, nodeID string, components []float32, norm float64) {
	if norm <= 0 {
		norm = Norm(components)
	}
	b.providers[provider] = append(b.providers[provider], entry{
		nodeID:     nodeID,
		components: components,
		norm:       norm,
	})
}

// Build finalizes the builder into an immutable Index, constructing HNSW
// graphs for providers over the size threshold.
func (b *Builder) Build() *Index {
	idx := &Index{
		efSearch:  b.opts.EfSearch,
		providers: make(map[string]*providerIndex, len(b.providers)),
	}
	for provider, entries := range b.providers {
		p := &providerIndex{entries: entries}
		if b.opts.HNSWEnabled && len(entries) >= b.opts.HNSWMinNodes {
			p.graph = buildHNSW(entries)
		}
		idx.providers[provider] = p
	}
	return idx
}

// Index serves similarity searches over per-provider vector collections.
// Immutable once built; safe for concurrent reads.
type Index struct {
	efSearch  int
	providers map[string]*providerIndex
}

type providerIndex struct {
	entries []entry
	graph   *hnswGraph
}

// Search returns up to topK nodes most similar to the query vector within
// one provider namespace, filtered to similarity >= minSimilarity. An
// unknown provider yields no results. Ordering is similarity descending
// with node id as the tie-break.
func (idx *Index) Search(provider string, query []float32, topK int, minSimilarity float64) []Result {
	p := idx.providers[provider]
	if p == nil || topK <= 0 {
		return []Result{}
	}

	qNorm := Norm(query)

	var results []Result
	if p.graph != nil {
		ef := idx.efSearch
		if ef < topK {
			ef = topK
		}
		nearest := p.graph.search(query, qNorm, ef)
		results = make([]Result, 0, len(nearest))
		for _, n := range nearest {
			e := p.entries[n.id]
			sim := cosineNormed(query, qNorm, e.components, e.norm)
			if sim >= minSimilarity {
				results = append(results, Result{NodeID: e.nodeID, Similarity: sim})
			}
		}
	} else {
		results = make([]Result, 0, len(p.entries))
		for _, e := range p.entries {
			sim := cosineNormed(query, qNorm, e.components, e.norm)
			if sim >= minSimilarity {
				results = append(results, Result{NodeID: e.nodeID, Similarity: sim})
			}
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].NodeID < results[j].NodeID
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// Count returns the number of vectors stored for one provider.
func (idx *Index) Count(provider string) int {
	p := idx.providers[provider]
	if p == nil {
		return 0
	}
	return len(p.entries)
}

// Size returns the total number of vectors across all providers.
func (idx *Index) Size() int {
	total := 0
	for _, p := range idx.providers {
		total += len(p.entries)
	}
	return total
}

// Providers lists provider namespaces with at least one vector, sorted.
func (idx *Index) Providers() []string {
	out := make([]string, 0, len(idx.providers))
	for provider := range idx.providers {
		out = append(out, provider)
	}
	sort.Strings(out)
	return out
}

// Accelerated reports whether a provider is served by the HNSW graph
// rather than exact scan.
func (idx *Index) Accelerated(provider string) bool {
	p := idx.providers[provider]
	return p != nil && p.graph != nil
}
