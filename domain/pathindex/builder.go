package pathindex

import (
	"context"
	"runtime"
	"slices"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-ai/meridian/domain/graph"
)

// Options bound one index build.
type Options struct {
	// MaxDepth is the hop ceiling; nodes farther than this are not indexed.
	MaxDepth int

	// MaxNodesVisited caps each BFS run, counting the start node. A run
	// hitting the cap is truncated and its entries flagged partial.
	MaxNodesVisited int

	// Parallelism bounds concurrent BFS runs. Non-positive means one per
	// core.
	Parallelism int
}

// Result is the output of one full build.
type Result struct {
	Entries []Entry

	// Overflowed counts BFS runs truncated by the visit cap.
	Overflowed int

	// Mirrored counts reverse entries synthesized to restore the
	// forward/reverse pairing for targets whose own run was truncated.
	Mirrored int
}

// Build runs a full path-index rebuild over an immutable graph view: one
// bounded BFS per node per direction, fanned out over a worker pool. The
// output is deterministic for an unchanged view regardless of parallelism.
//
// Every forward entry (A, B, L) is guaranteed a reverse entry (B, A, L).
// When B's own reverse run was truncated before rediscovering A, the pair
// is restored with a mirrored witness, slightly exceeding B's cap rather
// than breaking the pairing.
func Build(ctx context.Context, view *graph.View, buildID uuid.UUID, opts Options) (*Result, error) {
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	nodes := view.Nodes()
	runs := make([]runResult, 2*len(nodes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, node := range nodes {
		for d, dir := range []Direction{DirectionForward, DirectionReverse} {
			slot := 2*i + d
			startID := node.ID
			direction := dir
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				runs[slot] = bfsRun(view, startID, direction, buildID, opts)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	for _, run := range runs {
		res.Entries = append(res.Entries, run.entries...)
		if run.truncated {
			res.Overflowed++
		}
	}

	res.Mirrored = mirrorMissingTwin(res, buildID)

	sort.Slice(res.Entries, func(i, j int) bool {
		a, b := res.Entries[i], res.Entries[j]
		if a.StartID != b.StartID {
			return a.StartID < b.StartID
		}
		if a.Direction != b.Direction {
			return a.Direction < b.Direction
		}
		if a.Length != b.Length {
			return a.Length < b.Length
		}
		return a.EndID < b.EndID
	})

	return res, nil
}

type runResult struct {
	entries   []Entry
	truncated bool
}

// bfsRun expands one node in one direction, level by level. Within a
// level, each newly reached node keeps the lexicographically smallest
// full path among its same-length candidates, and levels commit ends in
// sorted order so cap truncation is deterministic.
func bfsRun(view *graph.View, start string, dir Direction, buildID uuid.UUID, opts Options) runResult {
	seen := map[string]struct{}{start: {}}
	frontier := map[string][]string{start: {start}}
	count := 1

	var out []Entry
	truncated := false

	for depth := 1; depth <= opts.MaxDepth && len(frontier) > 0 && !truncated; depth++ {
		next := make(map[string][]string)
		for node, path := range frontier {
			prev := ""
			for _, nb := range neighborIDs(view, node, dir) {
				if nb == prev {
					continue
				}
				prev = nb
				if _, ok := seen[nb]; ok {
					continue
				}
				cand := make([]string, len(path)+1)
				copy(cand, path)
				cand[len(path)] = nb
				if best, ok := next[nb]; !ok || slices.Compare(cand, best) < 0 {
					next[nb] = cand
				}
			}
		}

		ends := make([]string, 0, len(next))
		for id := range next {
			ends = append(ends, id)
		}
		sort.Strings(ends)

		for _, end := range ends {
			if count >= opts.MaxNodesVisited {
				truncated = true
				break
			}
			count++
			seen[end] = struct{}{}
			out = append(out, Entry{
				StartID:      start,
				EndID:        end,
				Direction:    dir,
				Length:       depth,
				NodeSequence: intermediates(next[end]),
				BuildID:      buildID,
			})
		}

		frontier = next
	}

	if truncated {
		for i := range out {
			out[i].Partial = true
		}
	}
	return runResult{entries: out, truncated: truncated}
}

// neighborIDs returns the ids adjacent to a node in one direction, in
// sorted order. Parallel edges of different types collapse to one id.
func neighborIDs(view *graph.View, id string, dir Direction) []string {
	if dir == DirectionForward {
		edges := view.OutEdges(id)
		ids := make([]string, 0, len(edges))
		for _, e := range edges {
			ids = append(ids, e.ToID)
		}
		return ids
	}

	edges := view.InEdges(id)
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.FromID)
	}
	return ids
}

func intermediates(path []string) []string {
	if len(path) <= 2 {
		return []string{}
	}
	out := make([]string, len(path)-2)
	copy(out, path[1:len(path)-1])
	return out
}

// mirrorMissingTwin appends the opposite-direction entry for every entry
// lacking one, in either direction. Only cap truncation can leave the
// pairing open: an untruncated run always rediscovers its counterparts
// within the same depth bound.
func mirrorMissingTwin(res *Result, buildID uuid.UUID) int {
	type key struct {
		dir        Direction
		start, end string
	}

	have := make(map[key]struct{}, len(res.Entries))
	for _, e := range res.Entries {
		have[key{e.Direction, e.StartID, e.EndID}] = struct{}{}
	}

	mirrored := 0
	for _, e := range res.Entries {
		twinDir := DirectionReverse
		if e.Direction == DirectionReverse {
			twinDir = DirectionForward
		}
		twin := key{twinDir, e.EndID, e.StartID}
		if _, ok := have[twin]; ok {
			continue
		}
		have[twin] = struct{}{}

		seq := make([]string, len(e.NodeSequence))
		for i, id := range e.NodeSequence {
			seq[len(seq)-1-i] = id
		}
		res.Entries = append(res.Entries, Entry{
			StartID:      e.EndID,
			EndID:        e.StartID,
			Direction:    twinDir,
			Length:       e.Length,
			NodeSequence: seq,
			Partial:      true,
			BuildID:      buildID,
		})
		mirrored++
	}
	return mirrored
}
