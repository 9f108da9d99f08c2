package scheduler

import "github.com/vivekjami/banking-stage/external"

// Policy decides which pending items are eligible for dispatch given the
// accounts currently locked by in-flight batches (spec §4.6). Scheduler
// itself owns priority ordering and cost-tracker admission; a Policy answers
// only the conflict question.
type Policy interface {
	// Eligible reports whether a transaction touching accounts may be
	// dispatched given the current in-flight lock state.
	Eligible(accounts []external.AccountID) bool
	// Lock records accounts as in-flight, owned by batchID.
	Lock(batchID uint64, accounts []external.AccountID)
	// Unlock releases the accounts held by batchID.
	Unlock(batchID uint64)
}

// Kind selects which Policy implementation the Scheduler constructs (spec
// §6, scheduler_kind).
type Kind string

const (
	KindPriorityGraph Kind = "priority_graph"
	KindGreedy        Kind = "greedy"
)

// NewPolicy constructs the Policy named by kind, defaulting to the greedy
// policy for any unrecognized value.
func NewPolicy(kind Kind) Policy {
	if kind == KindPriorityGraph {
		return newPriorityGraphPolicy()
	}
	return newGreedyPolicy()
}
