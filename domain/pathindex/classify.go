package pathindex

import (
	"sort"

	"github.com/meridian-ai/meridian/domain/graph"
)

// Reachability classes. A node that leads to far more nodes than lead to
// it is a source (a foundational primitive); the opposite shape is a sink
// (a composed endpoint); balanced nodes are transformers (hubs in the
// middle of chains).
const (
	ClassSource      = "source"
	ClassSink        = "sink"
	ClassTransformer = "transformer"
)

const sourceRatio = 3.0

// Classification is the derived reachability profile of one node. Not
// persisted; recomputed from the path index on demand.
type Classification struct {
	NodeID           string `json:"node_id"`
	Name             string `json:"name"`
	ForwardReachable int    `json:"forward_reachable"`
	ReverseReachable int    `json:"reverse_reachable"`
	Class            string `json:"class"`
}

// ClassificationReport summarizes reachability classes across the graph.
// Isolated nodes (no entries in either direction) are excluded from the
// listing and only counted.
type ClassificationReport struct {
	Nodes        []Classification `json:"nodes"`
	Sources      int              `json:"sources"`
	Sinks        int              `json:"sinks"`
	Transformers int              `json:"transformers"`
	Isolated     int              `json:"isolated"`
}

// Classify derives the reachability report for every node in the view,
// ordered by node id.
func Classify(view *graph.View, lookup *Lookup) *ClassificationReport {
	report := &ClassificationReport{Nodes: []Classification{}}

	for _, node := range view.Nodes() {
		fwd := lookup.ForwardCount(node.ID)
		rev := lookup.ReverseCount(node.ID)
		if fwd == 0 && rev == 0 {
			report.Isolated++
			continue
		}

		c := Classification{
			NodeID:           node.ID,
			Name:             node.Name,
			ForwardReachable: fwd,
			ReverseReachable: rev,
			Class:            classOf(fwd, rev),
		}

		switch c.Class {
		case ClassSource:
			report.Sources++
		case ClassSink:
			report.Sinks++
		default:
			report.Transformers++
		}

		report.Nodes = append(report.Nodes, c)
	}

	sort.Slice(report.Nodes, func(i, j int) bool {
		return report.Nodes[i].NodeID < report.Nodes[j].NodeID
	})
	return report
}

// classOf buckets a node by its forward/reverse reachability ratio. A
// node nothing leads to has an unbounded ratio and is always a source.
func classOf(fwd, rev int) string {
	if rev == 0 {
		return ClassSource
	}
	ratio := float64(fwd) / float64(rev)
	switch {
	case ratio >= sourceRatio:
		return ClassSource
	case ratio <= 1/sourceRatio:
		return ClassSink
	default:
		return ClassTransformer
	}
}
