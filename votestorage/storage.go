// Package votestorage implements spec §4.5: per-validator vote queues with
// stake-weighted draining, duplicate suppression, and epoch-boundary
// awareness. It is owned exclusively by whichever goroutine calls it (the
// Vote Worker, per spec §5) - there is no cross-thread mutation contract to
// honor beyond that single owner.
package votestorage

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/vivekjami/banking-stage/external"
	"github.com/vivekjami/banking-stage/logger"
	"github.com/vivekjami/banking-stage/packet"
)

var log, _ = logger.Get(logger.SubsystemTags.VOTE)

const (
	// MaxPerValidator bounds each validator's FIFO queue.
	MaxPerValidator = 1000
	// DuplicateSuppressionCapacity bounds the global dedup set.
	DuplicateSuppressionCapacity = 100_000
	// MaxPacketAgeSlots evicts a vote once it is this many slots old.
	MaxPacketAgeSlots = 150
	// UnprocessedBufferStepSize caps one drain's output (spec §4.5).
	UnprocessedBufferStepSize = 16
)

// sourceRank implements the tie-break preference Local > Tpu > Gossip.
// packet.Source has no "Local" variant in the upstream channel taxonomy;
// NonVote-sourced votes never reach this package, so votes that originated
// from this node's own RPC submission are enqueued through ReceiveLocal,
// which sets the local flag on their queuedVote.
func sourceRank(p *packet.Packet, local bool) int {
	switch {
	case local:
		return 0
	case p.Source == packet.TpuVote:
		return 1
	default:
		return 2
	}
}

// queuedVote is one entry of a validator's FIFO queue.
type queuedVote struct {
	pkt        *packet.Packet
	local      bool
	receivedAt time.Time
}

// EpochInfo snapshots the stake distribution and epoch identity as of the
// last cache_epoch_boundary_info call.
type EpochInfo struct {
	Epoch      uint64
	Stakes     map[string]uint64
	TotalStake uint64
}

// Storage is spec §4.5's VoteStorage.
type Storage struct {
	mu sync.Mutex

	queues map[string][]*queuedVote
	dup    *lru.Cache

	epoch EpochInfo

	missedEpochRefreshes uint64

	rng *rand.Rand
}

// New returns an empty Storage.
func New() *Storage {
	dup, err := lru.New(DuplicateSuppressionCapacity)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// DuplicateSuppressionCapacity never is.
		panic(err)
	}
	return &Storage{
		queues: make(map[string][]*queuedVote),
		dup:    dup,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Receive enqueues a vote packet received over TPU/gossip (packet.VoteSink).
// Use ReceiveLocal for votes submitted directly to this node.
func (s *Storage) Receive(p *packet.Packet) {
	s.receive(p, false)
}

// ReceiveLocal enqueues a vote packet submitted directly to this node (e.g.
// via RPC), tagged for the Local > Tpu > Gossip tie-break.
func (s *Storage) ReceiveLocal(p *packet.Packet) {
	s.receive(p, true)
}

// receive enqueues a vote packet under its validator identity unless its
// vote signature has already been seen (spec §4.5). local marks a packet
// submitted directly to this node (e.g. via RPC) rather than received over
// TPU/gossip, for the Local > Tpu > Gossip tie-break.
func (s *Storage) receive(p *packet.Packet, local bool) {
	sig := p.Tx.VoteSignature()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dup.Contains(sig) {
		return
	}
	s.dup.Add(sig, struct{}{})

	identity := p.Tx.VoteValidatorIdentity()
	q := s.queues[identity]
	if len(q) >= MaxPerValidator {
		// Queue is full; the new vote is dropped rather than evicting
		// an older one, preserving FIFO order for what remains.
		return
	}
	s.queues[identity] = append(q, &queuedVote{pkt: p, local: local, receivedAt: time.Now()})
}

// Reinsert returns retryable votes to their validator queues, stamping each
// with receivedAt[p] (the current time when absent) and local[p] (spec
// §4.5). Age-based eviction goes by each vote's slot, so it applies to
// reinserted votes as well. Votes whose validator queue is already at
// capacity are dropped.
func (s *Storage) Reinsert(votes []*packet.Packet, receivedAt map[*packet.Packet]time.Time, local map[*packet.Packet]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range votes {
		identity := p.Tx.VoteValidatorIdentity()
		q := s.queues[identity]
		if len(q) >= MaxPerValidator {
			continue
		}
		when := receivedAt[p]
		if when.IsZero() {
			when = time.Now()
		}
		s.queues[identity] = append(q, &queuedVote{pkt: p, local: local[p], receivedAt: when})
	}
}

// Clear discards every buffered vote across every validator (spec §4.9
// step 3, the Forward action: "clear the vote buffer").
func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues = make(map[string][]*queuedVote)
}

// Len returns the total number of buffered votes across every validator.
func (s *Storage) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, q := range s.queues {
		n += len(q)
	}
	return n
}

// DrainUnprocessed drains up to UnprocessedBufferStepSize votes, picking
// each from a validator queue by stake-weighted draw (spec §4.5), and returns
// them ordered Local > Tpu > Gossip, then by receive time. currentSlot is
// used for age-based eviction of votes older than MaxPacketAgeSlots.
func (s *Storage) DrainUnprocessed(bank external.Bank, currentSlot uint64) []*packet.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()

	stakes := bank.VoteAccountStakes()
	weights := make(map[string]uint64, len(stakes))
	var total uint64
	for id, stake := range stakes {
		if stake == 0 {
			continue
		}
		if _, ok := s.queues[id]; !ok {
			continue
		}
		weights[id] = stake
		total += stake
	}

	type popped struct {
		q    *queuedVote
		rank int
	}
	var out []popped

	for len(out) < UnprocessedBufferStepSize && total > 0 {
		id, ok := s.weightedPick(weights, total)
		if !ok {
			break
		}

		q := s.queues[id]
		head := q[0]
		s.queues[id] = q[1:]
		if len(s.queues[id]) == 0 {
			delete(s.queues, id)
			delete(weights, id)
			total -= stakes[id]
		}

		if currentSlot > head.pkt.Tx.VoteSlot() && currentSlot-head.pkt.Tx.VoteSlot() > MaxPacketAgeSlots {
			log.Tracef("evicting stale vote from %s: age exceeds %d slots", id, MaxPacketAgeSlots)
			continue
		}

		out = append(out, popped{q: head, rank: sourceRank(head.pkt, head.local)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].rank != out[j].rank {
			return out[i].rank < out[j].rank
		}
		return out[i].q.receivedAt.Before(out[j].q.receivedAt)
	})

	result := make([]*packet.Packet, len(out))
	for i, p := range out {
		result[i] = p.q.pkt
	}
	return result
}

// weightedPick draws one validator identity from weights proportional to
// its stake share of total. Implemented as a linear scan over a cumulative
// weight, which is adequate at the validator-set sizes this core targets;
// the spec leaves the sampling strategy an implementation choice (§9).
func (s *Storage) weightedPick(weights map[string]uint64, total uint64) (string, bool) {
	if total == 0 || len(weights) == 0 {
		return "", false
	}
	target := uint64(s.rng.Int63n(int64(total)))
	var cum uint64
	for id, w := range weights {
		cum += w
		if target < cum {
			return id, true
		}
	}
	// Floating point / integer rounding may leave target >= cum by a
	// hair; fall back to any remaining entry.
	for id := range weights {
		return id, true
	}
	return "", false
}

// CacheEpochBoundaryInfo refreshes the stake map and epoch identity. It is
// invoked on ForwardAndHold (spec §4.5) and must be called at least once
// per epoch transition; a failed refresh is logged and counted but not
// retried synchronously (spec §4.9 expanded, §9 Open Question resolution).
func (s *Storage) CacheEpochBoundaryInfo(bank external.Bank, epoch uint64) {
	stakes := bank.VoteAccountStakes()
	if stakes == nil {
		s.mu.Lock()
		s.missedEpochRefreshes++
		s.mu.Unlock()
		log.Warnf("epoch boundary refresh for epoch %d returned no stake data; will retry on the next ForwardAndHold tick", epoch)
		return
	}

	var total uint64
	for _, w := range stakes {
		total += w
	}

	s.mu.Lock()
	s.epoch = EpochInfo{Epoch: epoch, Stakes: stakes, TotalStake: total}
	s.mu.Unlock()
}

// EpochInfo returns the last cached epoch boundary snapshot.
func (s *Storage) EpochInfo() EpochInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// MissedEpochRefreshes returns how many CacheEpochBoundaryInfo calls found
// no stake data to cache.
func (s *Storage) MissedEpochRefreshes() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.missedEpochRefreshes
}
