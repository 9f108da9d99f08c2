// Package packet defines the immutable packet type the core ingests from
// upstream channels, and the static admission Filter applied to every packet
// before it is buffered (spec §4.1/§4.2).
package packet

import "github.com/vivekjami/banking-stage/external"

// Source identifies which upstream channel a packet arrived on.
type Source int

const (
	// NonVote packets flow into the Scheduler's pending set.
	NonVote Source = iota
	// TpuVote packets arrive over the TPU vote channel.
	TpuVote
	// GossipVote packets arrive over the gossip vote channel.
	GossipVote
)

func (s Source) String() string {
	switch s {
	case NonVote:
		return "non-vote"
	case TpuVote:
		return "tpu-vote"
	case GossipVote:
		return "gossip-vote"
	default:
		return "unknown"
	}
}

// IsVote reports whether this source carries consensus-vote transactions.
func (s Source) IsVote() bool {
	return s == TpuVote || s == GossipVote
}

// Packet holds raw bytes, the deserialized transaction projection, a discard
// flag, and the recognized source. All but the discard flag are fixed once
// deserialized; Filter.Apply sets Discard on a rejected packet.
type Packet struct {
	Raw     []byte
	Tx      external.Transaction
	Discard bool
	Source  Source
}

// NewPacket constructs a Packet from its wire bytes and deserialized
// projection. Deserialization itself is an external concern (out of scope);
// callers hand in an already-deserialized external.Transaction.
func NewPacket(raw []byte, tx external.Transaction, source Source) *Packet {
	return &Packet{Raw: raw, Tx: tx, Source: source}
}
