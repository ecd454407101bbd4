package vector

import (
	"container/heap"
	"hash/fnv"
	"math"
)

// HNSW construction parameters. M is the per-node out-degree target at
// upper levels; level 0 allows twice that.
const (
	hnswM              = 16
	hnswMMax0          = 2 * hnswM
	hnswEfConstruction = 200
)

var hnswLevelMult = 1 / math.Log(hnswM)

// hnswNode carries per-node graph state. connections[l] holds the
// neighbor ids at level l; internal ids are indexes into the owning
// graph's entry slice.
type hnswNode struct {
	level       int
	connections [][]uint32
}

// hnswGraph is a hierarchical navigable small world index built once at
// snapshot time and read-only afterwards. Distance is 1 - cosine.
type hnswGraph struct {
	entries    []entry
	nodes      []hnswNode
	entryPoint uint32
	maxLevel   int
}

func buildHNSW(entries []entry) *hnswGraph {
	g := &hnswGraph{
		entries:  entries,
		nodes:    make([]hnswNode, 0, len(entries)),
		maxLevel: -1,
	}
	for i := range entries {
		g.insert(uint32(i))
	}
	return g
}

// nodeLevel assigns a level from the node id, replacing the usual RNG so
// snapshot builds of the same data produce the same graph.
func nodeLevel(nodeID string) int {
	h := fnv.New64a()
	h.Write([]byte(nodeID))

	u := float64(h.Sum64()>>11) / float64(1<<53)
	if u <= 0 {
		u = math.SmallestNonzeroFloat64
	}
	return int(-math.Log(u) * hnswLevelMult)
}

func (g *hnswGraph) dist(q []float32, qNorm float64, id uint32) float64 {
	e := g.entries[id]
	return 1 - cosineNormed(q, qNorm, e.components, e.norm)
}

func (g *hnswGraph) insert(id uint32) {
	level := nodeLevel(g.entries[id].nodeID)
	node := hnswNode{level: level, connections: make([][]uint32, level+1)}
	g.nodes = append(g.nodes, node)

	if len(g.nodes) == 1 {
		g.entryPoint = id
		g.maxLevel = level
		return
	}

	q := g.entries[id].components
	qNorm := g.entries[id].norm

	ep := g.entryPoint
	for l := g.maxLevel; l > level; l-- {
		ep = g.greedyClosest(q, qNorm, ep, l)
	}

	top := level
	if g.maxLevel < top {
		top = g.maxLevel
	}
	for l := top; l >= 0; l-- {
		nearest := g.searchLayer(q, qNorm, ep, hnswEfConstruction, l)

		limit := hnswM
		if len(nearest) < limit {
			limit = len(nearest)
		}
		for _, n := range nearest[:limit] {
			g.connect(id, n.id, l)
			g.connect(n.id, id, l)
			g.prune(n.id, l)
		}
		if len(nearest) > 0 {
			ep = nearest[0].id
		}
	}

	if level > g.maxLevel {
		g.maxLevel = level
		g.entryPoint = id
	}
}

func (g *hnswGraph) connect(from, to uint32, level int) {
	conns := g.nodes[from].connections[level]
	for _, existing := range conns {
		if existing == to {
			return
		}
	}
	g.nodes[from].connections[level] = append(conns, to)
}

// prune trims a node's connection list back to the level's degree cap,
// keeping the closest neighbors.
func (g *hnswGraph) prune(id uint32, level int) {
	maxConns := hnswM
	if level == 0 {
		maxConns = hnswMMax0
	}

	conns := g.nodes[id].connections[level]
	if len(conns) <= maxConns {
		return
	}

	q := g.entries[id].components
	qNorm := g.entries[id].norm

	h := &neighborHeap{min: true}
	for _, n := range conns {
		heap.Push(h, neighborItem{id: n, dist: g.dist(q, qNorm, n)})
	}

	kept := make([]uint32, 0, maxConns)
	for len(kept) < maxConns {
		kept = append(kept, heap.Pop(h).(neighborItem).id)
	}
	g.nodes[id].connections[level] = kept
}

// greedyClosest walks one level toward the query until no neighbor
// improves the distance.
func (g *hnswGraph) greedyClosest(q []float32, qNorm float64, ep uint32, level int) uint32 {
	best := ep
	bestDist := g.dist(q, qNorm, ep)

	for {
		improved := false
		for _, n := range g.nodes[best].connections[level] {
			if d := g.dist(q, qNorm, n); d < bestDist {
				best, bestDist = n, d
				improved = true
			}
		}
		if !improved {
			return best
		}
	}
}

// searchLayer is the beam search at one level: expand the closest
// unvisited candidate until the beam of size ef stops improving. Returns
// up to ef neighbors ordered closest first.
func (g *hnswGraph) searchLayer(q []float32, qNorm float64, ep uint32, ef int, level int) []neighborItem {
	visited := map[uint32]struct{}{ep: {}}

	start := neighborItem{id: ep, dist: g.dist(q, qNorm, ep)}
	candidates := &neighborHeap{min: true}
	heap.Push(candidates, start)
	results := &neighborHeap{min: false}
	heap.Push(results, start)

	for candidates.Len() > 0 {
		current := heap.Pop(candidates).(neighborItem)
		if current.dist > results.items[0].dist && results.Len() >= ef {
			break
		}

		for _, n := range g.nodes[current.id].connections[level] {
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = struct{}{}

			d := g.dist(q, qNorm, n)
			if results.Len() < ef || d < results.items[0].dist {
				item := neighborItem{id: n, dist: d}
				heap.Push(candidates, item)
				heap.Push(results, item)
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]neighborItem, results.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(results).(neighborItem)
	}
	return out
}

// search returns the approximate nearest neighbors of q, closest first.
// ef bounds the beam width; larger values trade latency for recall.
func (g *hnswGraph) search(q []float32, qNorm float64, ef int) []neighborItem {
	if len(g.nodes) == 0 {
		return nil
	}

	ep := g.entryPoint
	for l := g.maxLevel; l >= 1; l-- {
		ep = g.greedyClosest(q, qNorm, ep, l)
	}
	return g.searchLayer(q, qNorm, ep, ef, 0)
}

type neighborItem struct {
	id   uint32
	dist float64
}

// neighborHeap orders items by distance; min selects between a min-heap
// (candidate frontier) and a max-heap (result beam).
type neighborHeap struct {
	items []neighborItem
	min   bool
}

func (h *neighborHeap) Len() int { return len(h.items) }

func (h *neighborHeap) Less(i, j int) bool {
	if h.min {
		return h.items[i].dist < h.items[j].dist
	}
	return h.items[i].dist > h.items[j].dist
}

func (h *neighborHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *neighborHeap) Push(x any) { h.items = append(h.items, x.(neighborItem)) }

func (h *neighborHeap) Pop() any {
	last := h.items[len(h.items)-1]
	h.items = h.items[:len(h.items)-1]
	return last
}
