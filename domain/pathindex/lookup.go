package pathindex

// Lookup serves hop-distance and witness queries over a built entry set.
// Immutable once constructed; safe for concurrent reads.
type Lookup struct {
	forward map[string]map[string]*Entry
	reverse map[string]map[string]*Entry
	size    int
}

// NewLookup indexes entries by (start, direction).
func NewLookup(entries []Entry) *Lookup {
	l := &Lookup{
		forward: make(map[string]map[string]*Entry),
		reverse: make(map[string]map[string]*Entry),
		size:    len(entries),
	}
	for i := range entries {
		e := &entries[i]
		byDir := l.forward
		if e.Direction == DirectionReverse {
			byDir = l.reverse
		}
		m := byDir[e.StartID]
		if m == nil {
			m = make(map[string]*Entry)
			byDir[e.StartID] = m
		}
		m[e.EndID] = e
	}
	return l
}

// Size returns the number of indexed entries.
func (l *Lookup) Size() int {
	return l.size
}

// Witness returns the stored entry for (start, end, direction), or nil.
func (l *Lookup) Witness(start, end string, dir Direction) *Entry {
	byDir := l.forward
	if dir == DirectionReverse {
		byDir = l.reverse
	}
	return byDir[start][end]
}

// Hops returns the forward hop count from one node to another.
func (l *Lookup) Hops(from, to string) (int, bool) {
	if e := l.forward[from][to]; e != nil {
		return e.Length, true
	}
	return 0, false
}

// HopsAny returns the smallest hop count between two nodes in either
// direction: how near they sit in the graph regardless of edge
// orientation between them.
func (l *Lookup) HopsAny(a, b string) (int, bool) {
	fwd, okF := l.Hops(a, b)
	rev, okR := l.Hops(b, a)
	switch {
	case okF && okR:
		if rev < fwd {
			return rev, true
		}
		return fwd, true
	case okF:
		return fwd, true
	case okR:
		return rev, true
	default:
		return 0, false
	}
}

// ForwardCount returns how many nodes are forward-reachable from a node.
func (l *Lookup) ForwardCount(id string) int {
	return len(l.forward[id])
}

// ReverseCount returns how many nodes reach a node.
func (l *Lookup) ReverseCount(id string) int {
	return len(l.reverse[id])
}

// ForwardFrom returns the forward entry map for a start node. Callers
// must not mutate it.
func (l *Lookup) ForwardFrom(id string) map[string]*Entry {
	return l.forward[id]
}
