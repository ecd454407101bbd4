package graph

import "sort"

// View is an immutable in-memory read of the graph taken at one point in
// time. Index builds and traversal run against a View so they never observe
// concurrent writes. Adjacency lists are sorted, so iteration order is
// deterministic across builds of an unchanged graph.
type View struct {
	nodes   map[string]*Node
	ordered []*Node // ascending seq
	out     map[string][]*Edge
	in      map[string][]*Edge
	edges   int
}

// NewView assembles a View from loaded rows. Nodes are ordered by seq;
// adjacency lists are sorted by (neighbor id, edge type).
func NewView(nodes []*Node, edges []*Edge) *View {
	v := &View{
		nodes: make(map[string]*Node, len(nodes)),
		out:   make(map[string][]*Edge),
		in:    make(map[string][]*Edge),
	}

	v.ordered = make([]*Node, len(nodes))
	copy(v.ordered, nodes)
	sort.Slice(v.ordered, func(i, j int) bool { return v.ordered[i].Seq < v.ordered[j].Seq })

	for _, n := range v.ordered {
		v.nodes[n.ID] = n
	}

	for _, e := range edges {
		// Edges referencing nodes outside the view are skipped; the store
		// enforces endpoints at insert, so this only filters rows written
		// after the node read.
		if _, ok := v.nodes[e.FromID]; !ok {
			continue
		}
		if _, ok := v.nodes[e.ToID]; !ok {
			continue
		}
		v.out[e.FromID] = append(v.out[e.FromID], e)
		v.in[e.ToID] = append(v.in[e.ToID], e)
		v.edges++
	}

	for id := range v.out {
		sortEdges(v.out[id], false)
	}
	for id := range v.in {
		sortEdges(v.in[id], true)
	}

	return v
}

func sortEdges(edges []*Edge, byFrom bool) {
	sort.Slice(edges, func(i, j int) bool {
		a, b := edges[i], edges[j]
		ka, kb := a.ToID, b.ToID
		if byFrom {
			ka, kb = a.FromID, b.FromID
		}
		if ka != kb {
			return ka < kb
		}
		return a.Type < b.Type
	})
}

// Node returns the node with the given id, or nil.
func (v *View) Node(id string) *Node {
	return v.nodes[id]
}

// Nodes returns all nodes in ascending seq order. Callers must not mutate
// the returned slice.
func (v *View) Nodes() []*Node {
	return v.ordered
}

// OutEdges returns edges leaving the node, sorted by (to_id, type).
func (v *View) OutEdges(id string) []*Edge {
	return v.out[id]
}

// InEdges returns edges arriving at the node, sorted by (from_id, type).
func (v *View) InEdges(id string) []*Edge {
	return v.in[id]
}

// NodeCount returns the number of nodes in the view.
func (v *View) NodeCount() int {
	return len(v.ordered)
}

// EdgeCount returns the number of edges in the view.
func (v *View) EdgeCount() int {
	return v.edges
}

// Stacks returns the distinct stack labels present in the view, sorted.
func (v *View) Stacks() []string {
	seen := make(map[string]struct{})
	for _, n := range v.ordered {
		seen[n.Stack()] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
