package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"

	"github.com/meridian-ai/meridian/domain/query"
	"github.com/meridian-ai/meridian/domain/snapshot"
)

// Module provides the monitoring domain
var Module = fx.Module("monitoring",
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(registerSnapshotMetrics),
	fx.Invoke(registerCacheMetrics),
)

// registerSnapshotMetrics refreshes the serving-state gauges on every
// snapshot swap.
func registerSnapshotMetrics(holder *snapshot.Holder) {
	holder.OnSwap(func(s *snapshot.Snapshot) {
		if s == nil {
			return
		}
		SnapshotSwaps.Inc()
		SnapshotNodes.Set(float64(s.View.NodeCount()))
		SnapshotEdges.Set(float64(s.View.EdgeCount()))
		SnapshotPathEntries.Set(float64(s.Paths.Size()))
		SnapshotVectors.Set(float64(s.Vectors.Size()))
		SnapshotOverflowed.Set(float64(s.Overflowed))
		SnapshotBuildSeq.Set(float64(s.BuildSeq))
	})
}

// registerCacheMetrics scrapes the query cache counters lazily, at
// collection time.
func registerCacheMetrics(svc *query.Service) {
	cache := svc.Cache()
	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "meridian_query_cache_entries",
		Help: "Entries currently held in the query result cache",
	}, func() float64 { return float64(cache.Stats().Entries) })
	promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "meridian_query_cache_hits_total",
		Help: "Query cache hits",
	}, func() float64 { return float64(cache.Stats().Hits) })
	promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "meridian_query_cache_misses_total",
		Help: "Query cache misses",
	}, func() float64 { return float64(cache.Stats().Misses) })
	promauto.NewCounterFunc(prometheus.CounterOpts{
		Name: "meridian_query_cache_evictions_total",
		Help: "Query cache evictions",
	}, func() float64 { return float64(cache.Stats().Evictions) })
}
