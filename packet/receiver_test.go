package packet

import (
	"errors"
	"testing"

	"github.com/vivekjami/banking-stage/cost"
	"github.com/vivekjami/banking-stage/external"
)

var errBadWire = errors.New("bad wire format")

// stubDeserializer turns every raw packet into a fixed fakeTx, except raw
// payloads equal to "bad" which fail deserialization.
type stubDeserializer struct {
	computeLimit uint64
	isVote       bool
}

func (d stubDeserializer) Deserialize(raw []byte) (external.Transaction, error) {
	if string(raw) == "bad" {
		return nil, errBadWire
	}
	return &fakeTx{computeLimit: d.computeLimit, isVote: d.isVote}, nil
}

type recordingVoteSink struct {
	received []*Packet
}

func (s *recordingVoteSink) Receive(p *Packet) { s.received = append(s.received, p) }

type recordingNonVoteSink struct {
	submitted []*Packet
}

func (s *recordingNonVoteSink) Submit(p *Packet) { s.submitted = append(s.submitted, p) }
func (s *recordingNonVoteSink) Len() int         { return len(s.submitted) }

// unused is a permanently-nil channel: selecting on it never fires, so it
// stands in for "this upstream source isn't exercised by this test" without
// racing a closed channel against one carrying real data.
var unused chan RawBatch

func TestReceiverRoutesNonVote(t *testing.T) {
	deserializer := stubDeserializer{computeLimit: cost.StaticBuiltinCostSum}
	filter := NewFilter()
	votes := &recordingVoteSink{}
	nonVotes := &recordingNonVoteSink{}
	r := NewReceiver(deserializer, filter, votes, nonVotes)

	nonVoteCh := make(chan RawBatch, 1)
	nonVoteCh <- RawBatch{Packets: []RawPacket{{Raw: []byte("a")}}, Source: NonVote}
	close(nonVoteCh)

	r.ReceiveAndBuffer(nonVoteCh, unused, unused)

	if len(nonVotes.submitted) != 1 {
		t.Fatalf("expected 1 non-vote packet submitted, got %d", len(nonVotes.submitted))
	}
	if len(votes.received) != 0 {
		t.Fatalf("expected no vote packets, got %d", len(votes.received))
	}
}

func TestReceiverRoutesVotes(t *testing.T) {
	deserializer := stubDeserializer{computeLimit: cost.StaticBuiltinCostSum, isVote: true}
	filter := NewFilter()
	votes := &recordingVoteSink{}
	nonVotes := &recordingNonVoteSink{}
	r := NewReceiver(deserializer, filter, votes, nonVotes)

	tpuVoteCh := make(chan RawBatch, 1)
	tpuVoteCh <- RawBatch{Packets: []RawPacket{{Raw: []byte("v")}}, Source: TpuVote}
	close(tpuVoteCh)

	r.ReceiveAndBuffer(unused, tpuVoteCh, unused)

	if len(votes.received) != 1 {
		t.Fatalf("expected 1 vote packet received, got %d", len(votes.received))
	}
}

func TestReceiverDropsDiscardedAndFailedDeserialization(t *testing.T) {
	deserializer := stubDeserializer{computeLimit: cost.StaticBuiltinCostSum}
	filter := NewFilter()
	votes := &recordingVoteSink{}
	nonVotes := &recordingNonVoteSink{}
	r := NewReceiver(deserializer, filter, votes, nonVotes)

	nonVoteCh := make(chan RawBatch, 1)
	nonVoteCh <- RawBatch{Packets: []RawPacket{
		{Raw: []byte("a"), Discard: true},
		{Raw: []byte("bad")},
	}, Source: NonVote}
	close(nonVoteCh)

	r.ReceiveAndBuffer(nonVoteCh, unused, unused)

	if len(nonVotes.submitted) != 0 {
		t.Fatalf("expected nothing submitted, got %d", len(nonVotes.submitted))
	}
	if r.Counters().FailedSanitization != 2 {
		t.Fatalf("expected FailedSanitization=2, got %d", r.Counters().FailedSanitization)
	}
}

func TestReceiverRejectsInvalidVoteSource(t *testing.T) {
	deserializer := stubDeserializer{computeLimit: cost.StaticBuiltinCostSum, isVote: false}
	filter := NewFilter()
	votes := &recordingVoteSink{}
	nonVotes := &recordingNonVoteSink{}
	r := NewReceiver(deserializer, filter, votes, nonVotes)

	tpuVoteCh := make(chan RawBatch, 1)
	tpuVoteCh <- RawBatch{Packets: []RawPacket{{Raw: []byte("v")}}, Source: TpuVote}
	close(tpuVoteCh)

	r.ReceiveAndBuffer(unused, tpuVoteCh, unused)

	if len(votes.received) != 0 {
		t.Fatalf("expected non-vote transaction on a vote channel to be rejected, got %d routed", len(votes.received))
	}
	if r.Counters().InvalidVote != 1 {
		t.Fatalf("expected InvalidVote=1, got %d", r.Counters().InvalidVote)
	}
}
