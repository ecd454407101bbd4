package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/meridian-ai/meridian/domain/lexical"
	"github.com/meridian-ai/meridian/domain/snapshot"
	"github.com/meridian-ai/meridian/domain/vector"
	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/pkg/apperror"
	"github.com/meridian-ai/meridian/pkg/embeddings"
	"github.com/meridian-ai/meridian/pkg/logger"
	"github.com/meridian-ai/meridian/pkg/mathutil"
	"github.com/meridian-ai/meridian/pkg/tracing"
)

// graphSeedLimit caps how many top-scored candidates act as proximity
// seeds. Proximity is evidence propagation, not another retrieval pass,
// so a handful of strong seeds is enough.
const graphSeedLimit = 5

// candidateMultiplier widens the per-component fetch so fusion has
// enough overlap to rerank before truncating to topK.
const candidateMultiplier = 4

// defaultMaxDepth is the proximity hop budget when the request leaves
// max_depth unset.
const defaultMaxDepth = 4

// Service runs hybrid queries against the current serving snapshot.
type Service struct {
	holder   *snapshot.Holder
	profiles *ProfileSet
	embedder *embeddings.Service
	cache    *Cache
	cfg      *config.Config
	log      *slog.Logger
}

// NewService creates the query engine.
func NewService(holder *snapshot.Holder, profiles *ProfileSet, embedder *embeddings.Service, cache *Cache, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		holder:   holder,
		profiles: profiles,
		embedder: embedder,
		cache:    cache,
		cfg:      cfg,
		log:      log.With(logger.Scope("query.svc")),
	}
}

// Cache exposes the result cache, for stats and swap hooks.
func (s *Service) Cache() *Cache {
	return s.cache
}

// Profiles returns the loaded profile set.
func (s *Service) Profiles() *ProfileSet {
	return s.profiles
}

// candidate accumulates per-component scores during fusion. Lexical and
// vector scores are already clamped to [0,1] when stored here.
type candidate struct {
	nodeID  string
	lexical float64
	vector  float64
	graph   float64
	trace   *GraphTrace
}

// Query runs one hybrid query: lexical and vector retrieval in parallel
// under the configured deadline, then graph-proximity propagation from
// the strongest candidates, then weighted fusion. The snapshot is pinned
// once at entry; a concurrent rebuild never changes a query mid-flight.
func (s *Service) Query(ctx context.Context, req Request) (*Response, error) {
	snap := s.holder.Current()
	if snap == nil {
		return nil, apperror.ErrSnapshotUnavailable
	}

	text := strings.TrimSpace(req.Query)
	if text == "" {
		return nil, apperror.ErrBadRequest.WithMessage("query text is required")
	}
	topK := mathutil.ClampLimit(req.TopK, s.cfg.Query.DefaultTopK, s.cfg.Query.MaxTopK)
	// The build depth caps the request: paths beyond it were never indexed.
	depthCap := s.cfg.Engine.MaxDepth
	if depthCap <= 0 {
		depthCap = defaultMaxDepth
	}
	maxDepth := req.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxDepth
	}
	maxDepth = mathutil.ClampInt(maxDepth, 1, depthCap)

	profile, err := s.resolveProfile(req.Profile, snap)
	if err != nil {
		return nil, err
	}

	ctx, span := tracing.Start(ctx, "query.run",
		attribute.String("meridian.query.profile", profile.Name),
		attribute.Int("meridian.query.top_k", topK),
		attribute.Int("meridian.query.max_depth", maxDepth),
	)
	defer span.End()

	key := cacheKey(text, profile.Name, topK, maxDepth, req.StackFilter)
	if cached, ok := s.cache.Get(key); ok {
		return cached, nil
	}

	start := time.Now()
	lexResults, vecResults, partial := s.retrieve(ctx, snap, text, topK*candidateMultiplier)

	candidates := s.fuse(snap, lexResults, vecResults, req.StackFilter)
	s.propagate(snap, candidates, maxDepth)

	ranked := rank(candidates, profile, topK)

	resp := &Response{
		Query:      text,
		Profile:    profile.Name,
		Weights:    Weights{Vector: profile.Vector, Lexical: profile.Lexical, Graph: profile.Graph},
		Candidates: s.materialize(snap, ranked, profile),
		Partial:    partial,
		SnapshotID: snap.ID.String(),
		TookMs:     time.Since(start).Milliseconds(),
	}

	// Partial responses reflect a missed deadline, not the index state,
	// so they never enter the cache.
	if !partial {
		s.cache.Set(key, resp)
	}

	s.log.DebugContext(ctx, "query served",
		slog.String("profile", profile.Name),
		slog.Int("candidates", len(resp.Candidates)),
		slog.Bool("partial", partial),
		slog.Int64("took_ms", resp.TookMs))
	return resp, nil
}

func (s *Service) resolveProfile(name string, snap *snapshot.Snapshot) (Profile, error) {
	if name == "" {
		return s.profiles.ForQuality(snap.Quality), nil
	}
	p, ok := s.profiles.Get(name)
	if !ok {
		return Profile{}, apperror.ErrBadRequest.WithMessage(
			fmt.Sprintf("unknown profile %q, available: %s", name, strings.Join(s.profiles.Names(), ", ")))
	}
	return p, nil
}

// retrieve runs the lexical and vector searches concurrently. Whichever
// component misses the deadline contributes nothing and flips the
// partial flag; the other component's results still serve.
func (s *Service) retrieve(ctx context.Context, snap *snapshot.Snapshot, text string, limit int) ([]lexical.Result, []vector.Result, bool) {
	deadline := time.NewTimer(s.cfg.Query.Timeout)
	defer deadline.Stop()

	lexCh := make(chan []lexical.Result, 1)
	vecCh := make(chan []vector.Result, 1)

	go func() {
		lexCh <- snap.Lexical.Search(text, limit)
	}()
	go func() {
		vec, err := s.embedder.EmbedQuery(ctx, text)
		if err != nil {
			s.log.WarnContext(ctx, "query embedding failed, vector component skipped", logger.Error(err))
			vecCh <- nil
			return
		}
		vecCh <- snap.Vectors.Search(snap.Provider, vec, limit, 0)
	}()

	var (
		lexResults []lexical.Result
		vecResults []vector.Result
		lexDone    bool
		vecDone    bool
		partial    bool
	)
	for !lexDone || !vecDone {
		select {
		case lexResults = <-lexCh:
			lexDone = true
		case vecResults = <-vecCh:
			vecDone = true
		case <-deadline.C:
			partial = true
			return lexResults, vecResults, partial
		case <-ctx.Done():
			partial = true
			return lexResults, vecResults, partial
		}
	}
	return lexResults, vecResults, partial
}

// fuse joins the two result lists into one candidate map. Lexical BM25
// scores are unbounded, so they are normalized by the best score in this
// result set before clamping; cosine similarities are clamped directly.
func (s *Service) fuse(snap *snapshot.Snapshot, lexResults []lexical.Result, vecResults []vector.Result, stackFilter string) map[string]*candidate {
	candidates := make(map[string]*candidate, len(lexResults)+len(vecResults))

	admit := func(nodeID string) *candidate {
		if stackFilter != "" {
			node := snap.View.Node(nodeID)
			if node == nil || node.Stack() != stackFilter {
				return nil
			}
		}
		c, ok := candidates[nodeID]
		if !ok {
			c = &candidate{nodeID: nodeID}
			candidates[nodeID] = c
		}
		return c
	}

	var maxLex float64
	for _, r := range lexResults {
		if r.Score > maxLex {
			maxLex = r.Score
		}
	}
	for _, r := range lexResults {
		c := admit(r.NodeID)
		if c == nil {
			continue
		}
		if maxLex > 0 {
			c.lexical = mathutil.Clamp01(r.Score / maxLex)
		}
	}
	for _, r := range vecResults {
		c := admit(r.NodeID)
		if c == nil {
			continue
		}
		c.vector = mathutil.Clamp01(r.Similarity)
	}
	return candidates
}

// propagate computes the graph proximity component: the strongest
// candidates act as seeds, and every candidate inherits the best
// seed evidence discounted by hop distance, evidence/(1+hops). A
// candidate is not its own seed, and paths longer than maxDepth
// contribute nothing even when the index stores them.
func (s *Service) propagate(snap *snapshot.Snapshot, candidates map[string]*candidate, maxDepth int) {
	seeds := topSeeds(candidates, graphSeedLimit)
	if len(seeds) == 0 {
		return
	}

	for _, c := range candidates {
		for _, seed := range seeds {
			if seed.nodeID == c.nodeID {
				continue
			}
			hops, ok := snap.Paths.HopsAny(seed.nodeID, c.nodeID)
			if !ok || hops > maxDepth {
				continue
			}
			evidence := seedEvidence(seed)
			score := evidence / float64(1+hops)
			if score > c.graph {
				c.graph = score
				c.trace = &GraphTrace{Seed: seed.nodeID, Hops: hops, SeedEvidence: evidence}
			}
		}
	}
}

func seedEvidence(c *candidate) float64 {
	if c.lexical > c.vector {
		return c.lexical
	}
	return c.vector
}

func topSeeds(candidates map[string]*candidate, limit int) []*candidate {
	seeds := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		if seedEvidence(c) > 0 {
			seeds = append(seeds, c)
		}
	}
	sort.Slice(seeds, func(i, j int) bool {
		ei, ej := seedEvidence(seeds[i]), seedEvidence(seeds[j])
		if ei != ej {
			return ei > ej
		}
		return seeds[i].nodeID < seeds[j].nodeID
	})
	if len(seeds) > limit {
		seeds = seeds[:limit]
	}
	return seeds
}

// rank orders candidates by the profile-weighted combined score,
// breaking ties by lexical score and then node id so results are stable
// across runs.
func rank(candidates map[string]*candidate, p Profile, topK int) []*candidate {
	ranked := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		ranked = append(ranked, c)
	}
	combined := func(c *candidate) float64 {
		return p.Vector*c.vector + p.Lexical*c.lexical + p.Graph*mathutil.Clamp01(c.graph)
	}
	sort.Slice(ranked, func(i, j int) bool {
		ci, cj := combined(ranked[i]), combined(ranked[j])
		if ci != cj {
			return ci > cj
		}
		if ranked[i].lexical != ranked[j].lexical {
			return ranked[i].lexical > ranked[j].lexical
		}
		return ranked[i].nodeID < ranked[j].nodeID
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked
}

func (s *Service) materialize(snap *snapshot.Snapshot, ranked []*candidate, p Profile) []Candidate {
	out := make([]Candidate, 0, len(ranked))
	for _, c := range ranked {
		node := snap.View.Node(c.nodeID)
		if node == nil {
			continue
		}
		graphScore := mathutil.Clamp01(c.graph)
		out = append(out, Candidate{
			NodeID:       c.nodeID,
			Name:         node.Name,
			Stack:        node.Stack(),
			Type:         node.Type,
			Description:  node.Description,
			Combined:     p.Vector*c.vector + p.Lexical*c.lexical + p.Graph*graphScore,
			LexicalScore: c.lexical,
			VectorScore:  c.vector,
			GraphScore:   graphScore,
			GraphTrace:   c.trace,
		})
	}
	return out
}

func cacheKey(text, profile string, topK, maxDepth int, stackFilter string) string {
	return fmt.Sprintf("%s|%s|%d|%d|%s", strings.ToLower(text), profile, topK, maxDepth, stackFilter)
}
