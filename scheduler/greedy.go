package scheduler

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/vivekjami/banking-stage/external"
)

// greedyPolicy is spec §4.6's greedy scheduler: it ignores dependency
// ordering entirely and treats every in-flight writable account as a flat
// lock set. A transaction is eligible iff none of its writable accounts
// appear in that set.
type greedyPolicy struct {
	locked   mapset.Set[external.AccountID]
	byBatch  map[uint64][]external.AccountID
}

func newGreedyPolicy() *greedyPolicy {
	return &greedyPolicy{
		locked:  mapset.NewThreadUnsafeSet[external.AccountID](),
		byBatch: make(map[uint64][]external.AccountID),
	}
}

// Eligible implements Policy.
func (g *greedyPolicy) Eligible(accounts []external.AccountID) bool {
	for _, a := range accounts {
		if g.locked.Contains(a) {
			return false
		}
	}
	return true
}

// Lock implements Policy.
func (g *greedyPolicy) Lock(batchID uint64, accounts []external.AccountID) {
	for _, a := range accounts {
		g.locked.Add(a)
	}
	g.byBatch[batchID] = append(g.byBatch[batchID], accounts...)
}

// Unlock implements Policy.
func (g *greedyPolicy) Unlock(batchID uint64) {
	for _, a := range g.byBatch[batchID] {
		g.locked.Remove(a)
	}
	delete(g.byBatch, batchID)
}
