package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"SERVER_PORT" envDefault:"3002"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"ENVIRONMENT" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// Database settings
	Database DatabaseConfig

	// Retrieval engine tuning knobs
	Engine EngineConfig

	// Query serving configuration
	Query QueryConfig

	// Embeddings configuration
	Embeddings EmbeddingsConfig

	// API token authentication
	Auth AuthConfig

	// Index build worker configuration
	Indexing IndexingConfig

	// Background task scheduling
	Scheduler SchedulerConfig

	// OpenTelemetry tracing
	Otel OtelConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"3600s"` // long-lived SSE streams
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"3600s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port         int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User         string        `env:"POSTGRES_USER" envDefault:"meridian"`
	Password     string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database     string        `env:"POSTGRES_DB" envDefault:"meridian"`
	SSLMode      string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	MaxOpenConns int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	MaxIdleConns int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	MaxIdleTime  time.Duration `env:"DB_MAX_IDLE_TIME" envDefault:"5m"`
	QueryDebug   bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// EngineConfig holds the graph and path-index tuning knobs
type EngineConfig struct {
	// MaxDepth bounds path precomputation; lookups beyond it miss.
	MaxDepth int `env:"ENGINE_MAX_DEPTH" envDefault:"4"`

	// MaxNodesVisited caps each BFS expansion. Hitting the cap marks the
	// affected entries partial instead of failing the build.
	MaxNodesVisited int `env:"ENGINE_MAX_NODES_VISITED" envDefault:"10000"`

	// MergeThreshold is the minimum name-match confidence for automatic
	// node merging during a merge pass.
	MergeThreshold float64 `env:"ENGINE_MERGE_THRESHOLD" envDefault:"0.9"`

	// BuildParallelism is the number of concurrent BFS expansions during
	// an index build. Zero means GOMAXPROCS.
	BuildParallelism int `env:"ENGINE_BUILD_PARALLELISM" envDefault:"0"`

	// HNSW approximate search. Below MinNodes the vector index stays exact.
	HNSWEnabled  bool `env:"ENGINE_HNSW_ENABLED" envDefault:"true"`
	HNSWMinNodes int  `env:"ENGINE_HNSW_MIN_NODES" envDefault:"2000"`
	HNSWEfSearch int  `env:"ENGINE_HNSW_EF_SEARCH" envDefault:"64"`
}

// QueryConfig holds query serving settings
type QueryConfig struct {
	// Timeout is the per-query deadline. Components that miss it are
	// dropped and the response is flagged partial.
	Timeout time.Duration `env:"QUERY_TIMEOUT" envDefault:"2s"`

	// CacheSize is the number of (query, profile) entries kept in the LRU.
	CacheSize int `env:"QUERY_CACHE_SIZE" envDefault:"512"`

	// ProfilesPath optionally points at a YAML file overriding the
	// built-in weight profiles.
	ProfilesPath string `env:"QUERY_PROFILES_PATH" envDefault:""`

	// DefaultTopK is the result count when the request does not set one.
	DefaultTopK int `env:"QUERY_DEFAULT_TOP_K" envDefault:"10"`

	// MaxTopK bounds the requested result count.
	MaxTopK int `env:"QUERY_MAX_TOP_K" envDefault:"100"`

	// Traversal settings
	MaxHops             int     `env:"TRAVERSAL_MAX_HOPS" envDefault:"3"`
	MaxHopsCeiling      int     `env:"TRAVERSAL_MAX_HOPS_CEILING" envDefault:"4"`
	MinAnswerConfidence float64 `env:"TRAVERSAL_MIN_ANSWER_CONFIDENCE" envDefault:"0.35"`

	// AnswerTemplatePath optionally replaces the embedded Handlebars
	// template used to synthesize traversal answers.
	AnswerTemplatePath string `env:"TRAVERSAL_ANSWER_TEMPLATE_PATH" envDefault:""`
}

// EmbeddingsConfig holds embedding service configuration
type EmbeddingsConfig struct {
	// Provider: "vertex", "genai", or "hash" (deterministic, no network).
	// Empty selects automatically based on available credentials.
	Provider string `env:"EMBEDDING_PROVIDER" envDefault:""`

	// GCP Project ID for Vertex AI
	GCPProjectID string `env:"GCP_PROJECT_ID" envDefault:""`

	// Vertex AI location (e.g., "us-central1")
	VertexAILocation string `env:"VERTEX_AI_LOCATION" envDefault:"us-central1"`

	// Embedding model name
	Model string `env:"EMBEDDING_MODEL" envDefault:"text-embedding-004"`

	// Embedding dimension (768 for text-embedding-004)
	Dimension int `env:"EMBEDDING_DIMENSION" envDefault:"768"`

	// Google API Key for Generative AI (development)
	GoogleAPIKey string `env:"GOOGLE_API_KEY" envDefault:""`

	// Disable embeddings network calls (for testing)
	NetworkDisabled bool `env:"EMBEDDINGS_NETWORK_DISABLED" envDefault:"false"`

	// RequestsPerMinute rate-limits calls to remote providers
	RequestsPerMinute int `env:"EMBEDDING_REQUESTS_PER_MINUTE" envDefault:"300"`
}

// IsEnabled returns true if a remote embedding provider is configured.
// When false the engine falls back to the deterministic hash provider.
func (e *EmbeddingsConfig) IsEnabled() bool {
	if e.NetworkDisabled || e.Provider == "hash" {
		return false
	}
	return (e.GCPProjectID != "" && e.VertexAILocation != "") || e.GoogleAPIKey != ""
}

// UseVertexAI returns true if Vertex AI should be used
func (e *EmbeddingsConfig) UseVertexAI() bool {
	if !e.IsEnabled() {
		return false
	}
	return e.GCPProjectID != "" && e.VertexAILocation != ""
}

// AuthConfig holds API token authentication settings
type AuthConfig struct {
	// Disabled bypasses authentication entirely. Local development only.
	Disabled bool `env:"AUTH_DISABLED" envDefault:"false"`

	// APIKey is a static key accepted via the X-API-Key header with full
	// scopes, for single-operator deployments without token management.
	APIKey string `env:"AUTH_API_KEY" envDefault:""`
}

// IsConfigured returns true if some authentication path is available
func (a *AuthConfig) IsConfigured() bool {
	return a.Disabled || a.APIKey != ""
}

// IndexingConfig holds index build worker settings
type IndexingConfig struct {
	// WorkerIntervalMs is the job polling interval in milliseconds
	WorkerIntervalMs int `env:"INDEX_WORKER_INTERVAL_MS" envDefault:"5000"`

	// RebuildOnStart forces a full index rebuild during startup even when
	// a persisted path index exists
	RebuildOnStart bool `env:"INDEX_REBUILD_ON_START" envDefault:"false"`
}

// WorkerInterval returns the worker interval as a Duration
func (i *IndexingConfig) WorkerInterval() time.Duration {
	return time.Duration(i.WorkerIntervalMs) * time.Millisecond
}

// SchedulerConfig holds background task scheduling settings
type SchedulerConfig struct {
	// Enabled determines if the cron scheduler runs
	Enabled bool `env:"SCHEDULER_ENABLED" envDefault:"true"`

	// RebuildCheckInterval is how often pending graph changes are checked
	// and an index rebuild is enqueued if needed
	RebuildCheckInterval time.Duration `env:"SCHEDULER_REBUILD_CHECK_INTERVAL" envDefault:"1m"`

	// ArchiveCron is the cron expression (with seconds) for snapshot
	// archive exports. Empty disables archiving.
	ArchiveCron string `env:"SCHEDULER_ARCHIVE_CRON" envDefault:"0 0 3 * * *"`

	// ArchiveRetentionDays is how long exported archives are kept before
	// being pruned from the bucket. Zero keeps them forever.
	ArchiveRetentionDays int `env:"SCHEDULER_ARCHIVE_RETENTION_DAYS" envDefault:"30"`

	// StatsInterval is how often cache and snapshot stats are logged
	StatsInterval time.Duration `env:"SCHEDULER_STATS_INTERVAL" envDefault:"15m"`
}

// IsProduction returns true when running in the production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// NewConfig loads configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.Int("engine_max_depth", cfg.Engine.MaxDepth),
		slog.Bool("auth_disabled", cfg.Auth.Disabled),
	)

	return cfg, nil
}
