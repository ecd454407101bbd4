package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP surface metrics
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "meridian_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	// Serving snapshot metrics, refreshed on every swap
	SnapshotNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meridian_snapshot_nodes",
		Help: "Node count in the serving snapshot",
	})

	SnapshotEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meridian_snapshot_edges",
		Help: "Edge count in the serving snapshot",
	})

	SnapshotPathEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meridian_snapshot_path_entries",
		Help: "Path index entry count in the serving snapshot",
	})

	SnapshotVectors = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meridian_snapshot_vectors",
		Help: "Stored vector count in the serving snapshot",
	})

	SnapshotOverflowed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meridian_snapshot_bfs_overflows",
		Help: "BFS runs truncated by the visit cap during the last build",
	})

	SnapshotBuildSeq = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "meridian_snapshot_build_seq",
		Help: "Monotonic sequence number of the serving snapshot",
	})

	SnapshotSwaps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meridian_snapshot_swaps_total",
		Help: "Total serving snapshot swaps since process start",
	})
)
