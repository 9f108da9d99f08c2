package packet

import (
	"sync/atomic"
	"time"

	"github.com/vivekjami/banking-stage/external"
	"github.com/vivekjami/banking-stage/logger"
)

var log, _ = logger.Get(logger.SubsystemTags.RECV)

// emptyBufferTimeout is how long ReceiveAndBuffer blocks for a batch when the
// local non-vote buffer is empty; drainBufferTimeout is used otherwise, to
// avoid starving the Scheduler while a backlog exists (spec §4.2).
const (
	emptyBufferTimeout               = 100 * time.Millisecond
	drainBufferTimeout time.Duration = 0
)

// DrainCap bounds how many batches ReceiveAndBuffer pulls from upstream in
// one call before returning control to the caller's tick loop.
const DrainCap = 64

// RawBatch is what an upstream channel carries: a batch of not-yet-
// deserialized packets sharing one source tag (spec §6).
type RawBatch struct {
	Packets []RawPacket
	Source  Source
}

// RawPacket is a packet as it arrives from the network layer, before
// deserialization.
type RawPacket struct {
	Raw     []byte
	Discard bool
}

// Deserializer turns wire bytes into the transaction projection the rest of
// the core reasons about. Deserialization format is out of scope for this
// module (spec §1); callers supply this hook.
type Deserializer interface {
	Deserialize(raw []byte) (external.Transaction, error)
}

// VoteSink receives filtered vote packets (spec §4.5's Vote Storage).
type VoteSink interface {
	Receive(p *Packet)
}

// NonVoteSink receives filtered non-vote packets (the Scheduler's pending
// set) and reports how many it currently holds, which drives the adaptive
// timeout.
type NonVoteSink interface {
	Submit(p *Packet)
	Len() int
}

// Counters are the saturating counters of spec §4.2.
type Counters struct {
	PassedSigverify          uint64
	FailedSanitization       uint64
	FailedPrioritization     uint64
	InvalidVote              uint64
	ExcessivePrecompile      uint64
	InsufficientComputeLimit uint64
}

// Receiver implements spec §4.2: it drains upstream channels under an
// adaptive timeout, applies the Filter, and routes surviving packets to
// either the Vote Storage or the non-vote buffer.
type Receiver struct {
	deserializer Deserializer
	filter       *Filter
	votes        VoteSink
	nonVotes     NonVoteSink

	passedSigverify      uint64
	failedSanitization   uint64
	failedPrioritization uint64
	invalidVote          uint64
}

// NewReceiver returns a Receiver wired to the given collaborators.
func NewReceiver(deserializer Deserializer, filter *Filter, votes VoteSink, nonVotes NonVoteSink) *Receiver {
	return &Receiver{deserializer: deserializer, filter: filter, votes: votes, nonVotes: nonVotes}
}

// ReceiveAndBuffer pulls batches from the three upstream channels until
// DrainCap batches have been consumed or the adaptive timeout elapses with
// nothing to read, deserializing, filtering and routing each packet as it
// goes. It returns the number of batches consumed.
func (r *Receiver) ReceiveAndBuffer(nonVoteCh, tpuVoteCh, gossipVoteCh <-chan RawBatch) int {
	drained := 0
	for drained < DrainCap {
		timeout := drainBufferTimeout
		if r.nonVotes.Len() == 0 {
			timeout = emptyBufferTimeout
		}

		timer := time.NewTimer(timeout)
		timeoutCh := timer.C

		select {
		case batch, ok := <-nonVoteCh:
			stopTimer(timer)
			if !ok {
				return drained
			}
			r.ingest(batch)
			drained++
		case batch, ok := <-tpuVoteCh:
			stopTimer(timer)
			if !ok {
				return drained
			}
			r.ingest(batch)
			drained++
		case batch, ok := <-gossipVoteCh:
			stopTimer(timer)
			if !ok {
				return drained
			}
			r.ingest(batch)
			drained++
		case <-timeoutCh:
			return drained
		}
	}
	return drained
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (r *Receiver) ingest(batch RawBatch) {
	for _, raw := range batch.Packets {
		if raw.Discard {
			saturatingIncr(&r.failedSanitization)
			continue
		}

		tx, err := r.deserializer.Deserialize(raw.Raw)
		if err != nil {
			log.Tracef("dropping packet: %s", err)
			saturatingIncr(&r.failedSanitization)
			continue
		}

		if batch.Source.IsVote() && !tx.IsVote() {
			saturatingIncr(&r.invalidVote)
			continue
		}

		pkt := NewPacket(raw.Raw, tx, batch.Source)

		if reason := r.filter.Apply(pkt); reason != FilterReasonNone {
			continue
		}

		saturatingIncr(&r.passedSigverify)

		if batch.Source.IsVote() {
			r.votes.Receive(pkt)
		} else {
			r.nonVotes.Submit(pkt)
		}
	}
}

// Counters returns a snapshot of the receiver's saturating counters, merged
// with the Filter's own rejection counts.
func (r *Receiver) Counters() Counters {
	fc := r.filter.Counts()
	return Counters{
		PassedSigverify:          atomic.LoadUint64(&r.passedSigverify),
		FailedSanitization:       atomic.LoadUint64(&r.failedSanitization),
		FailedPrioritization:     atomic.LoadUint64(&r.failedPrioritization),
		InvalidVote:              atomic.LoadUint64(&r.invalidVote),
		ExcessivePrecompile:      fc.ExcessivePrecompile,
		InsufficientComputeLimit: fc.InsufficientComputeLimit,
	}
}
