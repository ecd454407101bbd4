package testutil

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"

	"github.com/meridian-ai/meridian/domain/graph"
	"github.com/meridian-ai/meridian/domain/health"
	"github.com/meridian-ai/meridian/domain/ingest"
	"github.com/meridian-ai/meridian/domain/monitoring"
	"github.com/meridian-ai/meridian/domain/pathindex"
	"github.com/meridian-ai/meridian/domain/query"
	"github.com/meridian-ai/meridian/domain/snapshot"
	"github.com/meridian-ai/meridian/domain/traversal"
	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/internal/storage"
	"github.com/meridian-ai/meridian/pkg/apperror"
	"github.com/meridian-ai/meridian/pkg/auth"
	"github.com/meridian-ai/meridian/pkg/embeddings"
	"github.com/meridian-ai/meridian/pkg/syshealth"
)

// TestServer is a fully wired Echo instance without the fx runtime. It mirrors
// the production wiring in cmd/server but swaps in the hash embedder and skips
// background workers.
type TestServer struct {
	Echo           *echo.Echo
	TestDB         *TestDB
	DB             bun.IDB
	Config         *config.Config
	Log            *slog.Logger
	AuthMiddleware *auth.Middleware

	// Serving components, exposed so tests can build and swap snapshots
	// without going through the HTTP admin API.
	Holder  *snapshot.Holder
	Builder *snapshot.Builder
	Jobs    *snapshot.JobService
	Graphs  *graph.Repository
}

// NewTestServer creates a test server with all routes registered.
func NewTestServer(testDB *TestDB) *TestServer {
	return newTestServerWithDB(testDB, testDB.GetDB())
}

// newTestServerWithDB wires the server around db, which is usually the
// per-test transaction.
func newTestServerWithDB(testDB *TestDB, db bun.IDB) *TestServer {
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg := testDB.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(log)

	authMiddleware := auth.NewMiddleware(db, cfg, log)

	// Serving state shared by every read-side handler.
	holder := snapshot.NewHolder()

	healthHandler := health.NewHandler(testDB.Pool, holder, cfg)
	metricsHandler := health.NewMetricsHandler(testDB.DB)
	health.RegisterRoutes(e, healthHandler, metricsHandler)

	registerAuthProbeRoutes(e, authMiddleware)

	graphRepo := graph.NewRepository(db, log)
	merger := graph.NewMerger(db, graphRepo, log)
	graphSvc := graph.NewService(graphRepo, merger, cfg, log)
	graph.RegisterRoutes(e, graph.NewHandler(graphSvc), authMiddleware)

	// The monitor is never started, so build concurrency stays at the
	// scaler minimum during tests.
	pathRepo := pathindex.NewRepository(db, log)
	snapRepo := snapshot.NewRepository(db, log)
	zones, err := syshealth.LoadConfig("")
	if err != nil {
		panic(err)
	}
	monitor := syshealth.NewMonitor(zones, testDB.DB, log)
	embedder := embeddings.NewHashService(log)
	builder := snapshot.NewBuilder(testDB.DB, graphRepo, pathRepo, snapRepo, embedder, holder, monitor, cfg, log)
	jobs := snapshot.NewJobService(testDB.DB, builder, log)
	storageSvc, _ := storage.NewService(storage.NewConfig(), log)
	exporter := snapshot.NewExporter(storageSvc, holder, snapRepo, log)
	snapshotHandler := snapshot.NewHandler(holder, jobs, snapRepo, exporter, graphRepo)
	snapshot.RegisterRoutes(e, snapshotHandler, authMiddleware)

	profiles, err := query.LoadProfiles(cfg.Query.ProfilesPath)
	if err != nil {
		panic(err)
	}
	cache := query.NewCache(cfg.Query.CacheSize)
	querySvc := query.NewService(holder, profiles, embedder, cache, cfg, log)
	query.RegisterRoutes(e, query.NewHandler(querySvc), authMiddleware)

	synth, err := traversal.NewSynthesizer(cfg.Query.AnswerTemplatePath, log)
	if err != nil {
		panic(err)
	}
	traversalSvc := traversal.NewService(holder, querySvc, synth, cfg, log)
	traversal.RegisterRoutes(e, traversal.NewHandler(traversalSvc), authMiddleware)

	validator, err := ingest.NewValidator()
	if err != nil {
		panic(err)
	}
	ingestSvc := ingest.NewService(graphRepo, jobs, log)
	ingest.RegisterRoutes(e, ingest.NewHandler(validator, ingestSvc), authMiddleware)

	monitoring.RegisterRoutes(e, monitoring.NewHandler(jobs), authMiddleware)

	return &TestServer{
		Echo:           e,
		TestDB:         testDB,
		DB:             db,
		Config:         cfg,
		Log:            log,
		AuthMiddleware: authMiddleware,
		Holder:         holder,
		Builder:        builder,
		Jobs:           jobs,
		Graphs:         graphRepo,
	}
}

// registerAuthProbeRoutes adds fixture endpoints the auth e2e suite exercises.
func registerAuthProbeRoutes(e *echo.Echo, authMiddleware *auth.Middleware) {
	protected := e.Group("/api/test")
	protected.Use(authMiddleware.RequireAuth())
	protected.GET("/me", func(c echo.Context) error {
		client := auth.GetClient(c)
		if client == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "No client in context")
		}
		return c.JSON(http.StatusOK, echo.Map{
			"tokenId": client.TokenID,
			"name":    client.Name,
			"scopes":  client.Scopes,
		})
	})

	scoped := e.Group("/api/test/scoped")
	scoped.Use(authMiddleware.RequireAuth())
	scoped.Use(authMiddleware.RequireScopes(auth.ScopeQueryRead))
	scoped.GET("", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"message": "You have query:read scope"})
	})
}

// RequestOption mutates an outgoing test request.
type RequestOption func(*http.Request)

// WithHeader sets one header.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set(key, value)
	}
}

// WithAuth sets a bearer Authorization header.
func WithAuth(token string) RequestOption {
	return WithHeader("Authorization", "Bearer "+token)
}

// WithRawAuth sets the Authorization header verbatim, for malformed-scheme
// tests.
func WithRawAuth(value string) RequestOption {
	return WithHeader("Authorization", value)
}

// WithJSONBody marshals body and attaches it with the JSON content type.
func WithJSONBody(body any) RequestOption {
	return func(r *http.Request) {
		data, err := json.Marshal(body)
		if err != nil {
			panic(err)
		}
		r.Header.Set("Content-Type", "application/json")
		r.Body = io.NopCloser(strings.NewReader(string(data)))
		r.ContentLength = int64(len(data))
	}
}
