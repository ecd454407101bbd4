// Package embeddings provides embedding generation functionality.
package embeddings

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"golang.org/x/time/rate"

	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/pkg/embeddings/genai"
	"github.com/meridian-ai/meridian/pkg/embeddings/hash"
	"github.com/meridian-ai/meridian/pkg/embeddings/vertex"
)

// NewHashService creates a service pinned to the deterministic hash provider
// (for testing and offline tools)
func NewHashService(log *slog.Logger) *Service {
	return &Service{
		client:   hash.NewClient(),
		provider: hash.Provider,
		quality:  QualityDeterministic,
		log:      log,
	}
}

// Module provides the embeddings fx.Module
var Module = fx.Module("embeddings",
	fx.Provide(NewService),
)

// Service provides embedding generation with automatic client selection.
// There is always a working provider: when no remote provider is configured
// (or network access is disabled) the deterministic hash provider serves.
type Service struct {
	client   Client
	provider string
	quality  QualityClass
	limiter  *rate.Limiter
	log      *slog.Logger
}

// NewService creates a new embeddings service
func NewService(lc fx.Lifecycle, cfg *config.Config, log *slog.Logger) *Service {
	embCfg := cfg.Embeddings

	svc := &Service{
		client:   hash.NewClient(),
		provider: hash.Provider,
		quality:  QualityDeterministic,
		log:      log,
	}

	if !embCfg.IsEnabled() {
		log.Info("remote embeddings disabled, using deterministic hash provider",
			slog.String("provider", hash.Provider))
		return svc
	}

	// Initialize remote client on startup. Failures keep the hash fallback
	// rather than failing the app.
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if embCfg.UseVertexAI() {
				log.Info("initializing Vertex AI embeddings client",
					slog.String("project", embCfg.GCPProjectID),
					slog.String("location", embCfg.VertexAILocation),
					slog.String("model", embCfg.Model),
				)

				client, err := vertex.NewClient(ctx, vertex.Config{
					ProjectID: embCfg.GCPProjectID,
					Location:  embCfg.VertexAILocation,
					Model:     embCfg.Model,
				}, vertex.WithLogger(log))
				if err != nil {
					log.Error("failed to initialize Vertex AI client, keeping hash provider",
						slog.String("error", err.Error()))
					return nil
				}
				svc.useRemote(client, embCfg.Model, embCfg.RequestsPerMinute)
				log.Info("Vertex AI embeddings client initialized")
			} else if embCfg.GoogleAPIKey != "" {
				log.Info("initializing Google Generative AI embeddings client",
					slog.String("model", embCfg.Model),
				)

				client, err := genai.NewClient(ctx, genai.Config{
					APIKey: embCfg.GoogleAPIKey,
					Model:  embCfg.Model,
				}, genai.WithLogger(log))
				if err != nil {
					log.Error("failed to initialize Generative AI client, keeping hash provider",
						slog.String("error", err.Error()))
					return nil
				}
				svc.useRemote(client, embCfg.Model, embCfg.RequestsPerMinute)
				log.Info("Google Generative AI embeddings client initialized")
			}
			return nil
		},
	})

	return svc
}

// useRemote swaps in a remote client with a request rate limit
func (s *Service) useRemote(client Client, model string, requestsPerMinute int) {
	s.client = client
	s.provider = model
	s.quality = QualitySemantic
	if requestsPerMinute > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute)
	}
}

// Provider returns the provider namespace embeddings are stored under
func (s *Service) Provider() string {
	return s.provider
}

// Quality returns the active provider's quality class
func (s *Service) Quality() QualityClass {
	return s.quality
}

// IsSemantic returns true when a remote semantic provider is active
func (s *Service) IsSemantic() bool {
	return s.quality == QualitySemantic
}

// EmbedQuery generates an embedding for a single query
func (s *Service) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.client.EmbedQuery(ctx, query)
}

// EmbedDocuments generates embeddings for multiple documents
func (s *Service) EmbedDocuments(ctx context.Context, documents []string) ([][]float32, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.client.EmbedDocuments(ctx, documents)
}

// wait blocks until the rate limiter admits another request. The hash
// provider has no limiter and never blocks.
func (s *Service) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.Wait(ctx)
}
