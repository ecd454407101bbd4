package graph

import (
	"context"
	"log/slog"

	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/pkg/logger"
)

// Service handles business logic for graph operations.
type Service struct {
	repo   *Repository
	merger *Merger
	cfg    *config.Config
	log    *slog.Logger
}

// NewService creates a new graph service.
func NewService(repo *Repository, merger *Merger, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		merger: merger,
		cfg:    cfg,
		log:    log.With(logger.Scope("graph.svc")),
	}
}

// GetNode fetches a single node by id.
func (s *Service) GetNode(ctx context.Context, id string) (*Node, error) {
	return s.repo.GetNode(ctx, id)
}

// Neighbors lists edges adjacent to a node, optionally filtered by edge
// type and direction.
func (s *Service) Neighbors(ctx context.Context, nodeID, edgeType string, direction Direction) ([]Neighbor, error) {
	return s.repo.Neighbors(ctx, nodeID, edgeType, direction)
}

// Merge runs a dedup pass over the given namespace. A zero threshold
// falls back to the configured default.
func (s *Service) Merge(ctx context.Context, namespace string, threshold float64) (*MergeReport, error) {
	if threshold == 0 {
		threshold = s.cfg.Engine.MergeThreshold
	}
	return s.merger.Run(ctx, namespace, threshold)
}

// Stats returns aggregate counts for the stored graph.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.GetStats(ctx)
}

// MergeLog returns recent merge decisions, newest first.
func (s *Service) MergeLog(ctx context.Context, limit, offset int) ([]*MergeLogEntry, int, error) {
	return s.repo.ListMergeLog(ctx, limit, offset)
}
