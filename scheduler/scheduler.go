// Package scheduler implements spec §4.6: priority-ordered admission of
// non-vote transactions into worker-bound batches, honoring the Cost Tracker
// and a pluggable account-conflict Policy, with retry-bounded fairness.
package scheduler

import (
	"container/heap"
	"sync"

	"github.com/google/uuid"
	"github.com/vivekjami/banking-stage/cost"
	"github.com/vivekjami/banking-stage/external"
	"github.com/vivekjami/banking-stage/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.SCHD)

// DefaultBatchTargetSize is how many transactions a ConsumeWork holds before
// the Scheduler dispatches it, absent a worker-queue-short override.
const DefaultBatchTargetSize = 128

// DefaultMaxRetriesPerBank bounds how many scheduling rounds a single
// transaction may be retried within one bank before it is dropped as
// starved (spec §4.6, §8 retry liveness).
const DefaultMaxRetriesPerBank = 32

// pendingQueue is a container/heap priority queue of *Item, ordered by
// effective fee-per-compute-unit descending and, within equal priority,
// enqueue order ascending (oldest-first fairness, spec §4.6). It mirrors the
// teacher's txPriorityQueue (mining.go) generalized to a fixed comparator.
type pendingQueue struct {
	items []*Item
}

func (q *pendingQueue) Len() int { return len(q.items) }

func (q *pendingQueue) Less(i, j int) bool {
	a, b := q.items[i], q.items[j]
	if a.EffectiveFee != b.EffectiveFee {
		return a.EffectiveFee > b.EffectiveFee
	}
	return a.Enqueued < b.Enqueued
}

func (q *pendingQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *pendingQueue) Push(x interface{}) { q.items = append(q.items, x.(*Item)) }

func (q *pendingQueue) Pop() interface{} {
	n := len(q.items)
	item := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	return item
}

// Scheduler is spec §4.6's non-vote Scheduler.
type Scheduler struct {
	mu sync.Mutex

	model    *cost.Model
	tracker  *cost.Tracker
	policy   Policy
	feeCache external.PrioritizationFeeCache

	pending *pendingQueue
	seq     int64

	batchTargetSize   int
	maxRetriesPerBank int

	kind        Kind
	nextBatchID uint64
	lockIDOf    map[uuid.UUID]uint64

	starvationDrops uint64
}

// NewScheduler returns a Scheduler enforcing tracker's limits via model,
// choosing eligible batches with the policy named by kind. feeCache may be
// nil, in which case a zero-fee transaction is ordered purely by
// enqueue-order fairness; non-nil, it is consulted as the priority-fee
// fallback described in external.PrioritizationFeeCache's contract.
func NewScheduler(model *cost.Model, tracker *cost.Tracker, kind Kind, feeCache external.PrioritizationFeeCache) *Scheduler {
	return &Scheduler{
		model:             model,
		tracker:           tracker,
		policy:            NewPolicy(kind),
		feeCache:          feeCache,
		kind:              kind,
		pending:           &pendingQueue{},
		batchTargetSize:   DefaultBatchTargetSize,
		maxRetriesPerBank: DefaultMaxRetriesPerBank,
		lockIDOf:          make(map[uuid.UUID]uint64),
	}
}

// SetBatchTargetSize overrides DefaultBatchTargetSize.
func (s *Scheduler) SetBatchTargetSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchTargetSize = n
}

// Submit adds tx to the pending set with a fresh enqueue sequence number.
func (s *Scheduler) Submit(tx external.Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	heap.Push(s.pending, &Item{Tx: tx, Enqueued: s.seq, EffectiveFee: s.effectiveFee(tx)})
}

// effectiveFee returns tx's declared fee, falling back to the
// prioritization fee cache's historical estimate for its writable accounts
// when the transaction declared none (spec §4.8).
func (s *Scheduler) effectiveFee(tx external.Transaction) uint64 {
	if fee := tx.FeePerComputeUnit(); fee != 0 || s.feeCache == nil {
		return fee
	}
	if fee, ok := s.feeCache.EstimateFee(tx.WritableAccounts()); ok {
		return fee
	}
	return 0
}

// PendingLen returns the number of transactions awaiting a scheduling round.
func (s *Scheduler) PendingLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending.Len()
}

// StarvationDrops returns how many transactions were dropped for exceeding
// maxRetriesPerBank, whether their retries came from failed admissions in
// Schedule or from retryable outcomes in Reconcile (spec §4.6 fairness).
func (s *Scheduler) StarvationDrops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starvationDrops
}

// Schedule runs one scheduling round against bank: it walks the pending set
// in priority order, admits what the Cost Tracker and Policy allow into
// worker-sized ConsumeWork batches, and returns every batch ready to
// dispatch. Transactions that cannot be admitted this round (policy
// conflict, retryable cost-tracker failure) remain pending; permanent-drop
// failures and starved transactions are discarded.
func (s *Scheduler) Schedule(bank external.BankID) []*ConsumeWork {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []*ConsumeWork
	var cur *ConsumeWork
	var skipped []*Item

	for s.pending.Len() > 0 {
		item := heap.Pop(s.pending).(*Item)

		accounts := item.Tx.WritableAccounts()
		if !s.policy.Eligible(accounts) {
			skipped = append(skipped, item)
			continue
		}

		itemCost := s.model.Calculate(item.Tx)
		_, err := s.tracker.TryAdd(item, itemCost, accounts, item.Tx.IsVote())
		if err != nil {
			if cost.IsPermanentDrop(err) {
				log.Debugf("dropping transaction: %s", err)
				continue
			}
			item.Retries++
			if item.Retries > s.maxRetriesPerBank {
				s.starvationDrops++
				log.Warnf("dropping starved transaction after %d retries", item.Retries)
				continue
			}
			skipped = append(skipped, item)
			continue
		}
		item.Cost = itemCost

		if cur == nil {
			s.nextBatchID++
			cur = &ConsumeWork{BatchID: uuid.New(), Bank: bank}
			s.lockIDOf[cur.BatchID] = s.nextBatchID
		}
		s.policy.Lock(s.lockIDOf[cur.BatchID], accounts)
		cur.Items = append(cur.Items, item)

		if len(cur.Items) >= s.batchTargetSize {
			ready = append(ready, cur)
			cur = nil
		}
	}

	if cur != nil {
		ready = append(ready, cur)
	}

	for _, item := range skipped {
		heap.Push(s.pending, item)
	}

	return ready
}

// Reconcile processes a FinishedConsumeWork: it releases the Policy's
// account locks for the batch, reconciles each outcome against the Cost
// Tracker, and returns retryable transactions to the pending set.
func (s *Scheduler) Reconcile(f *FinishedConsumeWork) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lockID, ok := s.lockIDOf[f.Work.BatchID]; ok {
		s.policy.Unlock(lockID)
		delete(s.lockIDOf, f.Work.BatchID)
	}

	for i, item := range f.Work.Items {
		if i >= len(f.Outcomes) {
			break
		}
		outcome := f.Outcomes[i]
		switch outcome.Kind {
		case OutcomeCommitted:
			s.tracker.ReconcileCommitted(item, outcome.UsedCU)
		case OutcomeDropped:
			s.tracker.ReconcileNotCommitted(item)
		case OutcomeRetryable:
			s.tracker.ReconcileNotCommitted(item)
			if IsTerminal(outcome.Reason) {
				log.Debugf("dropping transaction with terminal reason: %s", outcome.Reason)
				continue
			}
			item.Retries++
			if item.Retries > s.maxRetriesPerBank {
				s.starvationDrops++
				log.Warnf("dropping starved transaction after %d retries (%s)", item.Retries, outcome.Reason)
				continue
			}
			heap.Push(s.pending, item)
		}
	}
}

// Reset discards the pending set and all in-flight bookkeeping.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &pendingQueue{}
	s.lockIDOf = make(map[uuid.UUID]uint64)
	s.nextBatchID = 0
	s.policy = NewPolicy(s.kind)
}
