package votestorage

import (
	"strconv"
	"testing"

	"github.com/vivekjami/banking-stage/external"
	"github.com/vivekjami/banking-stage/packet"
)

type fakeVoteTx struct {
	identity string
	sig      string
	slot     uint64
}

func (f *fakeVoteTx) WritableAccounts() []external.AccountID { return nil }
func (f *fakeVoteTx) SignatureCount() int                     { return 1 }
func (f *fakeVoteTx) PrecompileSignatureCount() int           { return 0 }
func (f *fakeVoteTx) ComputeUnitLimit() uint64                { return 0 }
func (f *fakeVoteTx) LoadedAccountsDataSizeLimit() uint64     { return 0 }
func (f *fakeVoteTx) SerializedSize() uint64                  { return 0 }
func (f *fakeVoteTx) FeePerComputeUnit() uint64                { return 0 }
func (f *fakeVoteTx) IsVote() bool                             { return true }
func (f *fakeVoteTx) ContainsVoteInstruction() bool            { return true }
func (f *fakeVoteTx) VoteValidatorIdentity() string            { return f.identity }
func (f *fakeVoteTx) VoteSignature() string                    { return f.sig }
func (f *fakeVoteTx) VoteSlot() uint64                          { return f.slot }

type fakeBank struct {
	slot   uint64
	epoch  uint64
	stakes map[string]uint64
}

func (b *fakeBank) ID() external.BankID { return external.BankID(b.slot) }
func (b *fakeBank) Slot() uint64        { return b.slot }
func (b *fakeBank) Epoch() uint64       { return b.epoch }
func (b *fakeBank) CommitTransactions(batch external.BatchView, results []external.ExecutionResult) (external.CommitResults, error) {
	return external.CommitResults{}, nil
}
func (b *fakeBank) VoteAccountStakes() map[string]uint64 { return b.stakes }

func votePacket(identity, sig string, slot uint64) *packet.Packet {
	return packet.NewPacket(nil, &fakeVoteTx{identity: identity, sig: sig, slot: slot}, packet.TpuVote)
}

func TestStorageDuplicateSuppression(t *testing.T) {
	s := New()
	p := votePacket("v1", "sig-a", 10)

	s.Receive(p)
	s.Receive(p)

	if got := s.Len(); got != 1 {
		t.Fatalf("expected duplicate vote to be suppressed, got len %d", got)
	}
}

func TestStorageAgeBasedEviction(t *testing.T) {
	s := New()
	s.Receive(votePacket("v1", "sig-a", 10))

	bank := &fakeBank{slot: 10 + MaxPacketAgeSlots + 1, stakes: map[string]uint64{"v1": 100}}
	out := s.DrainUnprocessed(bank, bank.slot)

	if len(out) != 0 {
		t.Fatalf("expected stale vote to be evicted rather than drained, got %d", len(out))
	}
	if s.Len() != 0 {
		t.Fatalf("expected evicted vote removed from storage, got len %d", s.Len())
	}
}

func TestStorageDrainIsStakeWeighted(t *testing.T) {
	s := New()
	for i := 0; i < MaxPerValidator; i++ {
		s.Receive(votePacket("heavy", sigFor("heavy", i), 10))
	}
	for i := 0; i < MaxPerValidator; i++ {
		s.Receive(votePacket("light", sigFor("light", i), 10))
	}

	bank := &fakeBank{slot: 10, stakes: map[string]uint64{"heavy": 900, "light": 100}}

	var heavyCount, lightCount int
	for i := 0; i < 50; i++ {
		out := s.DrainUnprocessed(bank, bank.slot)
		for _, p := range out {
			switch p.Tx.VoteValidatorIdentity() {
			case "heavy":
				heavyCount++
			case "light":
				lightCount++
			}
		}
	}

	if heavyCount <= lightCount {
		t.Fatalf("expected stake-weighted draining to favor the heavier validator, heavy=%d light=%d", heavyCount, lightCount)
	}
}

func TestStorageEpochBoundaryMissedRefreshIsTolerated(t *testing.T) {
	s := New()
	bank := &fakeBank{slot: 10, epoch: 1, stakes: map[string]uint64{"v1": 100}}
	s.CacheEpochBoundaryInfo(bank, 1)

	if got := s.EpochInfo().Epoch; got != 1 {
		t.Fatalf("expected epoch 1 cached, got %d", got)
	}

	emptyBank := &fakeBank{slot: 20, epoch: 2, stakes: nil}
	s.CacheEpochBoundaryInfo(emptyBank, 2)

	if got := s.MissedEpochRefreshes(); got != 1 {
		t.Fatalf("expected one missed refresh counted, got %d", got)
	}
	if got := s.EpochInfo().Epoch; got != 1 {
		t.Fatalf("expected stale cache preserved after a missed refresh, got epoch %d", got)
	}
}

func sigFor(identity string, i int) string {
	return identity + "-" + strconv.Itoa(i)
}
