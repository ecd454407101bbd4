package health

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// MetricsHandler serves job queue counters for dashboards that cannot
// scrape Prometheus.
type MetricsHandler struct {
	db *bun.DB
}

func NewMetricsHandler(db *bun.DB) *MetricsHandler {
	return &MetricsHandler{db: db}
}

// QueueMetrics is the per-queue counter set. LastHour and Last24Hours count
// rows created in those windows regardless of status.
type QueueMetrics struct {
	Queue       string `json:"queue"`
	Pending     int64  `json:"pending" bun:"pending"`
	Processing  int64  `json:"processing" bun:"processing"`
	Completed   int64  `json:"completed" bun:"completed"`
	Failed      int64  `json:"failed" bun:"failed"`
	Total       int64  `json:"total" bun:"total"`
	LastHour    int64  `json:"last_hour" bun:"last_hour"`
	Last24Hours int64  `json:"last_24_hours" bun:"last_24_hours"`
}

// JobMetrics returns counters for every job queue the engine runs. Today
// that is the index rebuild queue.
func (h *MetricsHandler) JobMetrics(c echo.Context) error {
	ctx := c.Request().Context()

	queues := []struct {
		name  string
		table string
	}{
		{"index_build", "engine.index_jobs"},
	}

	out := make([]QueueMetrics, 0, len(queues))
	for _, q := range queues {
		m := QueueMetrics{Queue: q.name}
		err := h.db.NewRaw(`
			SELECT
				COUNT(*) FILTER (WHERE status = 'pending') AS pending,
				COUNT(*) FILTER (WHERE status = 'processing') AS processing,
				COUNT(*) FILTER (WHERE status = 'completed') AS completed,
				COUNT(*) FILTER (WHERE status = 'failed') AS failed,
				COUNT(*) AS total,
				COUNT(*) FILTER (WHERE created_at > now() - INTERVAL '1 hour') AS last_hour,
				COUNT(*) FILTER (WHERE created_at > now() - INTERVAL '24 hours') AS last_24_hours
			FROM `+q.table).Scan(ctx, &m)
		if err != nil {
			continue
		}
		out = append(out, m)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"queues":    out,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
