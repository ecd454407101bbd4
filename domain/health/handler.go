package health

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/meridian-ai/meridian/domain/snapshot"
	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/internal/version"
)

// Handler serves liveness, readiness, and diagnostic endpoints.
type Handler struct {
	pool    *pgxpool.Pool
	holder  *snapshot.Holder
	cfg     *config.Config
	startAt time.Time
}

// NewHandler creates a new health handler.
func NewHandler(pool *pgxpool.Pool, holder *snapshot.Holder, cfg *config.Config) *Handler {
	return &Handler{
		pool:    pool,
		holder:  holder,
		cfg:     cfg,
		startAt: time.Now(),
	}
}

// Check is one named probe inside the health report.
type Check struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the full health report.
type HealthResponse struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Uptime    string           `json:"uptime"`
	Version   string           `json:"version"`
	Checks    map[string]Check `json:"checks"`
}

func (h *Handler) checkDatabase(ctx context.Context) Check {
	if err := h.pool.Ping(ctx); err != nil {
		return Check{Status: "unhealthy", Message: err.Error()}
	}
	return Check{Status: "healthy"}
}

// checkSnapshot never flips overall health: a missing snapshot degrades
// queries but the process is alive.
func (h *Handler) checkSnapshot() Check {
	if h.holder.Current() == nil {
		return Check{Status: "unavailable", Message: "no serving snapshot built yet"}
	}
	return Check{Status: "healthy"}
}

// Health returns the overall service health
// @Summary      Get service health
// @Description  Returns detailed health status including database connectivity, snapshot state, and uptime
// @Tags         health
// @Accept       json
// @Produce      json
// @Success      200 {object} HealthResponse "Service is healthy"
// @Success      503 {object} HealthResponse "Service is unhealthy"
// @Router       /health [get]
func (h *Handler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	db := h.checkDatabase(ctx)

	overall := "healthy"
	statusCode := http.StatusOK
	if db.Status == "unhealthy" {
		overall = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, HealthResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(h.startAt).String(),
		Version:   version.Version,
		Checks: map[string]Check{
			"database": db,
			"snapshot": h.checkSnapshot(),
		},
	})
}

// Healthz returns a simple health check (for k8s liveness probe)
// @Summary      Liveness probe
// @Tags         health
// @Produce      plain
// @Success      200 {string} string "OK"
// @Router       /healthz [get]
func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// Ready returns readiness status (for k8s readiness probe). Ready means the
// database answers and a serving snapshot has been published.
// @Summary      Readiness probe
// @Tags         health
// @Accept       json
// @Produce      json
// @Success      200 {object} map[string]any "Service is ready"
// @Success      503 {object} map[string]any "Service is not ready"
// @Router       /ready [get]
func (h *Handler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.pool.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"status":  "not_ready",
			"message": "Database connection failed",
		})
	}
	if h.holder.Current() == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{
			"status":  "not_ready",
			"message": "No serving snapshot yet",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
}

// Debug returns debug information (only in development)
// @Summary      Get debug information
// @Description  Returns memory stats, pool stats, and snapshot sizes (development only)
// @Tags         health
// @Accept       json
// @Produce      json
// @Success      200 {object} map[string]any "Debug information"
// @Failure      404 {object} map[string]any "Not found in production"
// @Router       /debug [get]
func (h *Handler) Debug(c echo.Context) error {
	if h.cfg.Environment == "production" {
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	snap := echo.Map{"available": false}
	if s := h.holder.Current(); s != nil {
		snap = echo.Map{
			"available":    true,
			"id":           s.ID.String(),
			"nodes":        s.View.NodeCount(),
			"edges":        s.View.EdgeCount(),
			"path_entries": s.Paths.Size(),
			"vectors":      s.Vectors.Size(),
			"built_at":     s.BuiltAt.UTC().Format(time.RFC3339),
		}
	}

	stat := h.pool.Stat()
	return c.JSON(http.StatusOK, echo.Map{
		"environment": h.cfg.Environment,
		"debug":       h.cfg.Debug,
		"build": echo.Map{
			"version":    version.Version,
			"git_commit": version.GitCommit,
			"built_at":   version.BuildTime,
		},
		"go_version": runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
		"memory": echo.Map{
			"alloc_mb":       mem.Alloc / 1024 / 1024,
			"total_alloc_mb": mem.TotalAlloc / 1024 / 1024,
			"sys_mb":         mem.Sys / 1024 / 1024,
			"num_gc":         mem.NumGC,
		},
		"snapshot": snap,
		"database": echo.Map{
			"host":        h.cfg.Database.Host,
			"port":        h.cfg.Database.Port,
			"database":    h.cfg.Database.Database,
			"pool_total":  stat.TotalConns(),
			"pool_idle":   stat.IdleConns(),
			"pool_in_use": stat.AcquiredConns(),
		},
	})
}

// queryJSON runs a query whose single column is a JSON document and decodes
// it into a generic slice. Diagnostics are best-effort, so errors come back
// to the caller instead of aborting the request.
func (h *Handler) queryJSON(ctx context.Context, sql string) ([]map[string]any, error) {
	var raw []byte
	if err := h.pool.QueryRow(ctx, sql).Scan(&raw); err != nil {
		return nil, err
	}
	var out []map[string]any
	_ = json.Unmarshal(raw, &out)
	return out, nil
}

// Diagnose returns detailed DB and server diagnostics
// @Router       /api/diagnostics [get]
func (h *Handler) Diagnose(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	stat := h.pool.Stat()
	database := echo.Map{
		"pool": echo.Map{
			"total_conns":       stat.TotalConns(),
			"acquired_conns":    stat.AcquiredConns(),
			"idle_conns":        stat.IdleConns(),
			"max_conns":         stat.MaxConns(),
			"canceled_acquires": stat.CanceledAcquireCount(),
			"empty_acquires":    stat.EmptyAcquireCount(),
		},
	}

	result := echo.Map{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.startAt).String(),
		"server": echo.Map{
			"goroutines":   runtime.NumGoroutine(),
			"memory_alloc": mem.Alloc / 1024 / 1024,
			"memory_sys":   mem.Sys / 1024 / 1024,
			"num_cpu":      runtime.NumCPU(),
			"go_version":   runtime.Version(),
		},
		"database": database,
	}

	connStates, err := h.queryJSON(ctx,
		`SELECT COALESCE(json_agg(json_build_object('state', COALESCE(state, 'unknown'), 'count', count)), '[]'::json)
		 FROM (SELECT state, count(*) AS count FROM pg_stat_activity GROUP BY state) s`)
	if err != nil {
		database["error"] = err.Error()
		return c.JSON(http.StatusOK, result)
	}
	database["connections"] = connStates

	longQueries, _ := h.queryJSON(ctx,
		`SELECT COALESCE(json_agg(json_build_object(
		    'pid', pid, 'query', left(query, 100),
		    'duration', age(clock_timestamp(), query_start), 'state', state)), '[]'::json)
		 FROM pg_stat_activity
		 WHERE state != 'idle'
		   AND query_start < clock_timestamp() - interval '2 seconds'
		   AND pid <> pg_backend_pid()`)
	database["long_queries"] = longQueries

	settings, _ := h.queryJSON(ctx,
		`SELECT json_agg(json_build_object('name', name, 'setting', setting))
		 FROM pg_settings
		 WHERE name IN ('max_connections', 'shared_buffers', 'work_mem',
		                'idle_in_transaction_session_timeout', 'statement_timeout')`)
	database["settings"] = settings

	tables, _ := h.queryJSON(ctx,
		`SELECT COALESCE(json_agg(json_build_object(
		    'table', c.relname,
		    'size', pg_size_pretty(pg_total_relation_size(c.oid)),
		    'rows', COALESCE(s.n_live_tup, 0))), '[]'::json)
		 FROM pg_class c
		 JOIN pg_namespace n ON n.oid = c.relnamespace
		 LEFT JOIN pg_stat_user_tables s ON s.relname = c.relname AND s.schemaname = n.nspname
		 WHERE n.nspname = 'engine' AND c.relkind = 'r'
		 ORDER BY pg_total_relation_size(c.oid) DESC
		 LIMIT 10`)
	database["tables"] = tables

	return c.JSON(http.StatusOK, result)
}
