// Package traversal resolves a query across stack boundaries: each hop
// consults one stack of the graph as an oracle and feeds its confidence
// into the next hop until an answer is synthesized or the hop budget runs
// out.
package traversal

// State is one phase of the traversal state machine.
type State string

const (
	StateReceived    State = "received"
	StateStackEntry  State = "stack_entry"
	StateWithinStack State = "within_stack_traverse"
	StateCrossStack  State = "cross_stack_hop"
	StateSynthesize  State = "synthesize"
)

// Outcome is the terminal result of a traversal.
type Outcome string

const (
	// OutcomeAnswered means all acceptance predicates passed.
	OutcomeAnswered Outcome = "answered"

	// OutcomeExhausted means the hop budget ran out, a cycle was cut, or
	// the synthesized answer failed acceptance. The best partial answer
	// is still returned.
	OutcomeExhausted Outcome = "exhausted"
)
