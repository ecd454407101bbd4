package traversal

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/meridian-ai/meridian/domain/graph"
	"github.com/meridian-ai/meridian/domain/lexical"
	"github.com/meridian-ai/meridian/domain/query"
	"github.com/meridian-ai/meridian/domain/snapshot"
	"github.com/meridian-ai/meridian/internal/config"
	"github.com/meridian-ai/meridian/pkg/apperror"
	"github.com/meridian-ai/meridian/pkg/logger"
	"github.com/meridian-ai/meridian/pkg/tracing"
)

// oracleTopK is how many candidates each per-stack oracle consultation
// fetches. Only the top one continues the chain; the rest absorb ties.
const oracleTopK = 3

// Service drives the traversal state machine over the serving snapshot,
// using the hybrid query engine as the per-stack oracle.
type Service struct {
	holder *snapshot.Holder
	oracle *query.Service
	synth  *Synthesizer
	cfg    *config.Config
	log    *slog.Logger
}

// NewService creates the traversal service.
func NewService(holder *snapshot.Holder, oracle *query.Service, synth *Synthesizer, cfg *config.Config, log *slog.Logger) *Service {
	return &Service{
		holder: holder,
		oracle: oracle,
		synth:  synth,
		cfg:    cfg,
		log:    log.With(logger.Scope("traversal.svc")),
	}
}

// terminationReason distinguishes why the hop loop stopped. Only a
// natural stop (the chain ran out of new edges to follow) can produce an
// answered outcome; budget and cycle stops are always exhausted.
type terminationReason int

const (
	stopNatural terminationReason = iota
	stopBudget
	stopCycle
)

// move is the transition chosen after a hop: which stack to consult
// next and the edge that justified it.
type move struct {
	state    State
	stack    string
	edgeType string
	// hint augments the oracle text on within-stack moves so the oracle
	// converges on the edge target instead of re-ranking the same node.
	hint string
}

// Traverse runs the state machine to a terminal outcome. onHop, when
// non-nil, is invoked after every completed hop; the SSE handler uses it
// to stream the trace as it grows.
func (s *Service) Traverse(ctx context.Context, req Request, onHop func(TraceEntry)) (*Result, error) {
	snap := s.holder.Current()
	if snap == nil {
		return nil, apperror.ErrSnapshotUnavailable
	}

	text := strings.TrimSpace(req.Query)
	if text == "" {
		return nil, apperror.ErrBadRequest.WithMessage("query text is required")
	}
	maxHops := s.clampHops(req.MaxHops)

	ctx, span := tracing.Start(ctx, "traversal.run",
		attribute.Int("meridian.traversal.max_hops", maxHops),
	)
	defer span.End()

	stack, err := s.entryStack(ctx, snap, req, text)
	if err != nil {
		return nil, err
	}
	if stack == "" {
		// Nothing in the graph matches at all; go straight to synthesis.
		return s.synthesize(ctx, req, Result{Query: text}, nil, stopNatural), nil
	}

	var (
		trace       []TraceEntry
		confidence  float64
		last        *query.Candidate
		visited     = map[string]bool{}
		seen        = map[string]bool{}
		state       = StateStackEntry
		hint        string
		arrivalEdge string
		reason      = stopNatural
	)

	for hop := 1; hop <= maxHops; hop++ {
		visited[stack] = true

		oracleText := text
		if hint != "" {
			oracleText = text + " " + hint
		}
		resp, err := s.oracle.Query(ctx, query.Request{Query: oracleText, StackFilter: stack, TopK: oracleTopK})
		if err != nil {
			return nil, err
		}
		if len(resp.Candidates) == 0 {
			break
		}
		best := resp.Candidates[0]
		seen[best.NodeID] = true

		// Hop n's confidence feeds hop n+1: the chain can only get
		// weaker as it moves away from the entry stack.
		if hop == 1 {
			confidence = best.Combined
		} else {
			confidence *= best.Combined
		}
		last = &best

		entry := TraceEntry{
			Hop:        hop,
			State:      state,
			Stack:      stack,
			EdgeType:   arrivalEdge,
			NodeID:     best.NodeID,
			Name:       best.Name,
			Confidence: confidence,
		}
		trace = append(trace, entry)
		if onHop != nil {
			onHop(entry)
		}

		next, sawCycle := s.nextMove(snap, best.NodeID, stack, visited, seen)
		if next == nil {
			if sawCycle {
				reason = stopCycle
			}
			break
		}
		if hop == maxHops {
			reason = stopBudget
			break
		}

		arrivalEdge = next.edgeType
		state = next.state
		stack = next.stack
		hint = next.hint
	}

	result := Result{Query: text, Trace: trace, Hops: len(trace), Confidence: confidence}
	return s.synthesize(ctx, req, result, last, reason), nil
}

func (s *Service) clampHops(requested int) int {
	hops := requested
	if hops <= 0 {
		hops = s.cfg.Query.MaxHops
	}
	if hops > s.cfg.Query.MaxHopsCeiling {
		hops = s.cfg.Query.MaxHopsCeiling
	}
	if hops < 1 {
		hops = 1
	}
	return hops
}

// entryStack picks the stack the traversal starts in: the caller's
// choice when given, otherwise the stack of the strongest unrestricted
// candidate.
func (s *Service) entryStack(ctx context.Context, snap *snapshot.Snapshot, req Request, text string) (string, error) {
	if req.StartStack != "" {
		for _, stack := range snap.View.Stacks() {
			if stack == req.StartStack {
				return req.StartStack, nil
			}
		}
		return "", apperror.ErrBadRequest.WithMessage("unknown start stack: " + req.StartStack)
	}

	resp, err := s.oracle.Query(ctx, query.Request{Query: text, TopK: 1})
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", nil
	}
	return resp.Candidates[0].Stack, nil
}

// nextMove picks the transition out of the hop's accepted candidate,
// following outgoing edges only: the strongest edge to an unvisited
// stack wins (cross-stack hop); failing that, the strongest edge to a
// new node inside the current stack (within-stack traverse). An edge
// back into an already visited stack is the cycle guard.
func (s *Service) nextMove(snap *snapshot.Snapshot, nodeID, current string, visited, seen map[string]bool) (*move, bool) {
	type option struct {
		edge   *graph.Edge
		target *graph.Node
	}
	var options []option
	for _, e := range snap.View.OutEdges(nodeID) {
		if n := snap.View.Node(e.ToID); n != nil {
			options = append(options, option{edge: e, target: n})
		}
	}
	sort.Slice(options, func(i, j int) bool {
		if options[i].edge.Weight != options[j].edge.Weight {
			return options[i].edge.Weight > options[j].edge.Weight
		}
		if options[i].edge.Type != options[j].edge.Type {
			return options[i].edge.Type < options[j].edge.Type
		}
		return options[i].target.ID < options[j].target.ID
	})

	var withinFallback *move
	sawCycle := false
	for _, opt := range options {
		stack := opt.target.Stack()
		switch {
		case stack == current:
			if withinFallback == nil && !seen[opt.target.ID] {
				withinFallback = &move{
					state:    StateWithinStack,
					stack:    current,
					edgeType: opt.edge.Type,
					hint:     opt.target.Name,
				}
			}
		case visited[stack]:
			sawCycle = true
		default:
			return &move{state: StateCrossStack, stack: stack, edgeType: opt.edge.Type}, false
		}
	}
	return withinFallback, sawCycle
}

// synthesize renders the answer and applies the acceptance predicates:
// a candidate exists, the chain confidence clears the floor, and the
// answer's node shares at least one query term. All three must hold, and
// only a naturally terminated chain can be answered.
func (s *Service) synthesize(ctx context.Context, req Request, result Result, last *query.Candidate, reason terminationReason) *Result {
	actx := answerContext{Query: result.Query, Hops: result.Hops, Confidence: result.Confidence}
	if last != nil {
		actx.NodeID = last.NodeID
		actx.Name = last.Name
		actx.Description = last.Description
		actx.Stack = last.Stack
		result.NodeID = last.NodeID
	}
	result.Answer = s.synth.Render(actx)

	accepted := reason == stopNatural &&
		last != nil &&
		result.Confidence >= s.cfg.Query.MinAnswerConfidence &&
		termOverlap(result.Query, last)

	if accepted {
		result.Outcome = OutcomeAnswered
	} else {
		result.Outcome = OutcomeExhausted
	}

	s.log.DebugContext(ctx, "traversal finished",
		slog.String("outcome", string(result.Outcome)),
		slog.Int("hops", result.Hops),
		slog.Float64("confidence", result.Confidence))
	return &result
}

// termOverlap reports whether the query and the candidate share a
// non-stopword token.
func termOverlap(text string, c *query.Candidate) bool {
	queryTerms := map[string]bool{}
	for _, t := range lexical.Tokenize(text) {
		queryTerms[t] = true
	}
	candidateText := c.Name + " " + c.Description
	for _, t := range lexical.Tokenize(candidateText) {
		if queryTerms[t] {
			return true
		}
	}
	return false
}
