package packet

import (
	"sync/atomic"

	"github.com/vivekjami/banking-stage/cost"
)

// MaxPrecompileSignatures is the cap on Ed25519/Secp256k1/Secp256r1
// precompile instructions a transaction may carry before being rejected
// (spec §4.1).
const MaxPrecompileSignatures = 8

// FilterReason classifies why the Filter rejected a packet.
type FilterReason int

const (
	// FilterReasonNone indicates the packet passed.
	FilterReasonNone FilterReason = iota
	// FilterReasonInsufficientComputeLimit is the minimum-compute-budget
	// predicate's rejection.
	FilterReasonInsufficientComputeLimit
	// FilterReasonExcessivePrecompile is the precompile-cap predicate's
	// rejection.
	FilterReasonExcessivePrecompile
)

// FilterCounts are saturating rejection counters, one per FilterReason.
// Saturating arithmetic is a requirement (spec §9): telemetry must never
// wrap to zero under sustained load.
type FilterCounts struct {
	InsufficientComputeLimit uint64
	ExcessivePrecompile      uint64
}

// Filter evaluates the two static admission predicates of spec §4.1 on
// every deserialized transaction before it is buffered.
type Filter struct {
	insufficientComputeLimit uint64
	excessivePrecompile      uint64
}

// NewFilter returns a Filter with zeroed counters.
func NewFilter() *Filter {
	return &Filter{}
}

// Check evaluates both predicates against p.Tx and returns the first one
// that fails, or FilterReasonNone if the packet passes. Both predicates are
// pure functions of the transaction, so applying Check twice on the same
// packet always yields the same verdict (spec §8, filter idempotence).
func (f *Filter) Check(p *Packet) FilterReason {
	tx := p.Tx

	if tx.ComputeUnitLimit() < cost.StaticBuiltinCostSum {
		saturatingIncr(&f.insufficientComputeLimit)
		return FilterReasonInsufficientComputeLimit
	}

	if tx.PrecompileSignatureCount() > MaxPrecompileSignatures {
		saturatingIncr(&f.excessivePrecompile)
		return FilterReasonExcessivePrecompile
	}

	return FilterReasonNone
}

// Apply runs Check and sets p.Discard when the packet is rejected,
// returning the reason either way.
func (f *Filter) Apply(p *Packet) FilterReason {
	reason := f.Check(p)
	if reason != FilterReasonNone {
		p.Discard = true
	}
	return reason
}

// Counts returns a snapshot of the rejection counters.
func (f *Filter) Counts() FilterCounts {
	return FilterCounts{
		InsufficientComputeLimit: atomic.LoadUint64(&f.insufficientComputeLimit),
		ExcessivePrecompile:      atomic.LoadUint64(&f.excessivePrecompile),
	}
}

// saturatingIncr increments *v by one unless it is already at its maximum,
// in which case it is left unchanged.
func saturatingIncr(v *uint64) {
	for {
		cur := atomic.LoadUint64(v)
		if cur == ^uint64(0) {
			return
		}
		if atomic.CompareAndSwapUint64(v, cur, cur+1) {
			return
		}
	}
}
