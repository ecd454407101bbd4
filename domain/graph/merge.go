package graph

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/meridian-ai/meridian/pkg/apperror"
	"github.com/meridian-ai/meridian/pkg/logger"
)

// Merger unifies an ingested source namespace into the canonical graph
// using three-tier name deduplication.
type Merger struct {
	db   bun.IDB
	repo *Repository
	log  *slog.Logger
}

// NewMerger creates a new merger.
func NewMerger(db bun.IDB, repo *Repository, log *slog.Logger) *Merger {
	return &Merger{
		db:   db,
		repo: repo,
		log:  log.With(logger.Scope("graph.merge")),
	}
}

// MergeReport summarizes one merge pass.
type MergeReport struct {
	Namespace       string           `json:"namespace"`
	Threshold       float64          `json:"threshold"`
	Considered      int              `json:"considered"`
	Merged          int              `json:"merged"`
	BoundaryMerged  int              `json:"boundary_merged"`
	KeptDistinct    int              `json:"kept_distinct"`
	EdgesRedirected int              `json:"edges_redirected"`
	Entries         []*MergeLogEntry `json:"entries"`
	TookMS          int64            `json:"took_ms"`
}

// matchConfidence scores a duplicate/canonical name pair. Exact match is
// 1.0, case-insensitive 0.9, fuzzy substring containment (contained name
// at least 5 characters) 0.7. Zero means the pair is not a candidate.
func matchConfidence(duplicate, canonical string) (float64, string) {
	if duplicate == canonical {
		return 1.0, MergeTierExact
	}
	if strings.EqualFold(duplicate, canonical) {
		return 0.9, MergeTierCaseInsensitive
	}
	a := strings.ToLower(duplicate)
	b := strings.ToLower(canonical)
	if len(b) >= 5 && strings.Contains(a, b) {
		return 0.7, MergeTierFuzzySubstring
	}
	if len(a) >= 5 && strings.Contains(b, a) {
		return 0.7, MergeTierFuzzySubstring
	}
	return 0, ""
}

// Run executes one merge pass: every node in the source namespace is
// matched against the rest of the graph, and matches at or above the
// threshold are merged into their canonical node (edges redirected, the
// duplicate deleted). A confidence exactly at the threshold still merges
// under the keep-canonical policy but is recorded as boundary_merged.
// The whole pass is one transaction, so a failed pass never leaves a
// partially redirected graph.
func (m *Merger) Run(ctx context.Context, namespace string, threshold float64) (*MergeReport, error) {
	if namespace == "" {
		return nil, apperror.NewBadRequest("namespace is required")
	}
	if threshold <= 0 || threshold > 1 {
		return nil, apperror.NewBadRequest("threshold must be in (0, 1]")
	}

	started := time.Now()
	report := &MergeReport{
		Namespace: namespace,
		Threshold: threshold,
		Entries:   []*MergeLogEntry{},
	}

	err := m.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var duplicates []*Node
		if err := tx.NewSelect().Model(&duplicates).
			Where("namespace = ?", namespace).
			Order("seq ASC").
			Scan(ctx); err != nil {
			return err
		}

		var canonicals []*Node
		if err := tx.NewSelect().Model(&canonicals).
			Where("namespace != ?", namespace).
			Order("seq ASC").
			Scan(ctx); err != nil {
			return err
		}

		for _, dup := range duplicates {
			best := bestMatch(dup, canonicals)
			if best == nil {
				continue
			}
			report.Considered++

			entry := &MergeLogEntry{
				ID:            uuid.New(),
				CanonicalID:   best.node.ID,
				DuplicateID:   dup.ID,
				DuplicateName: dup.Name,
				Tier:          best.tier,
				Confidence:    best.confidence,
				Threshold:     threshold,
				CreatedAt:     time.Now().UTC(),
			}

			switch {
			case best.confidence > threshold:
				entry.Decision = MergeDecisionMerged
			case best.confidence == threshold:
				entry.Decision = MergeDecisionBoundary
			default:
				entry.Decision = MergeDecisionKeptDistinct
			}

			if entry.Decision != MergeDecisionKeptDistinct {
				redirected, err := m.mergeInto(ctx, tx, dup.ID, best.node.ID)
				if err != nil {
					return err
				}
				entry.EdgesRedirected = redirected
				report.EdgesRedirected += redirected
				if entry.Decision == MergeDecisionBoundary {
					report.BoundaryMerged++
					m.log.Warn("boundary merge decision",
						slog.String("duplicate", dup.ID),
						slog.String("canonical", best.node.ID),
						slog.Float64("confidence", best.confidence))
				} else {
					report.Merged++
				}
			} else {
				report.KeptDistinct++
			}

			if _, err := tx.NewInsert().Model(entry).Exec(ctx); err != nil {
				return err
			}
			report.Entries = append(report.Entries, entry)
		}

		if report.Merged+report.BoundaryMerged > 0 {
			return m.repo.markDirty(ctx, tx)
		}
		return nil
	})
	if err != nil {
		if appErr, ok := err.(*apperror.Error); ok {
			return nil, appErr
		}
		return nil, apperror.ErrMergeConflict.WithInternal(err)
	}

	report.TookMS = time.Since(started).Milliseconds()

	m.log.Info("merge pass completed",
		slog.String("namespace", namespace),
		slog.Float64("threshold", threshold),
		slog.Int("merged", report.Merged),
		slog.Int("boundary_merged", report.BoundaryMerged),
		slog.Int("kept_distinct", report.KeptDistinct),
		slog.Int("edges_redirected", report.EdgesRedirected),
		slog.Int64("took_ms", report.TookMS))

	return report, nil
}

type mergeCandidate struct {
	node       *Node
	confidence float64
	tier       string
}

// bestMatch returns the strongest canonical candidate for a duplicate,
// breaking confidence ties toward the lexicographically smallest id so
// repeated passes decide identically.
func bestMatch(dup *Node, canonicals []*Node) *mergeCandidate {
	var best *mergeCandidate
	for _, cand := range canonicals {
		conf, tier := matchConfidence(dup.Name, cand.Name)
		if conf == 0 {
			continue
		}
		if best == nil || conf > best.confidence ||
			(conf == best.confidence && cand.ID < best.node.ID) {
			best = &mergeCandidate{node: cand, confidence: conf, tier: tier}
		}
	}
	return best
}

// mergeInto redirects every edge of the duplicate to the canonical node
// and deletes the duplicate. Edges that would become self-loops or would
// collide with an existing canonical edge are dropped rather than
// duplicated. Returns the number of redirected edges.
func (m *Merger) mergeInto(ctx context.Context, tx bun.Tx, dupID, canonicalID string) (int, error) {
	// Edges between the pair would become self-loops after redirection.
	if _, err := tx.NewDelete().
		Model((*Edge)(nil)).
		Where("(from_id = ? AND to_id = ?) OR (from_id = ? AND to_id = ?)",
			dupID, canonicalID, canonicalID, dupID).
		Exec(ctx); err != nil {
		return 0, err
	}

	redirected := 0

	res, err := tx.NewUpdate().
		Model((*Edge)(nil)).
		Set("from_id = ?", canonicalID).
		Where("from_id = ?", dupID).
		Where("NOT EXISTS (SELECT 1 FROM engine.edges c WHERE c.from_id = ? AND c.to_id = e.to_id AND c.type = e.type)", canonicalID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err == nil {
		redirected += int(n)
	}

	res, err = tx.NewUpdate().
		Model((*Edge)(nil)).
		Set("to_id = ?", canonicalID).
		Where("to_id = ?", dupID).
		Where("NOT EXISTS (SELECT 1 FROM engine.edges c WHERE c.to_id = ? AND c.from_id = e.from_id AND c.type = e.type)", canonicalID).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	if n, err := res.RowsAffected(); err == nil {
		redirected += int(n)
	}

	// Leftovers collided with edges the canonical node already has.
	if _, err := tx.NewDelete().
		Model((*Edge)(nil)).
		Where("from_id = ? OR to_id = ?", dupID, dupID).
		Exec(ctx); err != nil {
		return 0, err
	}

	if _, err := tx.NewDelete().
		Model((*Node)(nil)).
		Where("id = ?", dupID).
		Exec(ctx); err != nil {
		return 0, err
	}

	return redirected, nil
}
