package cost

import (
	"testing"

	"github.com/vivekjami/banking-stage/external"
)

type fakeTx struct {
	writable      []external.AccountID
	sigCount      int
	precompiles   int
	computeLimit  uint64
	loadedDataLim uint64
	serializedLen uint64
	feePerCU      uint64
	isVote        bool
}

func (f *fakeTx) WritableAccounts() []external.AccountID    { return f.writable }
func (f *fakeTx) SignatureCount() int                       { return f.sigCount }
func (f *fakeTx) PrecompileSignatureCount() int              { return f.precompiles }
func (f *fakeTx) ComputeUnitLimit() uint64                   { return f.computeLimit }
func (f *fakeTx) LoadedAccountsDataSizeLimit() uint64        { return f.loadedDataLim }
func (f *fakeTx) SerializedSize() uint64                     { return f.serializedLen }
func (f *fakeTx) FeePerComputeUnit() uint64                  { return f.feePerCU }
func (f *fakeTx) IsVote() bool                               { return f.isVote }
func (f *fakeTx) ContainsVoteInstruction() bool              { return f.isVote }
func (f *fakeTx) VoteValidatorIdentity() string              { return "" }
func (f *fakeTx) VoteSignature() string                      { return "" }
func (f *fakeTx) VoteSlot() uint64                           { return 0 }

func TestModelCalculateNonVote(t *testing.T) {
	m := NewModel()
	tx := &fakeTx{
		writable:      []external.AccountID{"a", "b"},
		sigCount:      1,
		precompiles:   0,
		computeLimit:  10_000,
		loadedDataLim: 100,
		serializedLen: 400,
	}

	c := m.Calculate(tx)

	if c.SignatureCost != SignatureCost {
		t.Errorf("expected signature cost %d, got %d", SignatureCost, c.SignatureCost)
	}
	if c.WriteLockCost != 2*WriteLockCost {
		t.Errorf("expected write lock cost %d, got %d", 2*WriteLockCost, c.WriteLockCost)
	}
	if c.DataBytesCost != 100 {
		t.Errorf("expected data bytes cost 100, got %d", c.DataBytesCost)
	}
	if c.LoadedAccountsDataSizeCost != 100 {
		t.Errorf("expected loaded data cost 100, got %d", c.LoadedAccountsDataSizeCost)
	}
	if c.ProgramExecutionCost != builtinInstructionCost+10_000 {
		t.Errorf("expected program cost %d, got %d", builtinInstructionCost+10_000, c.ProgramExecutionCost)
	}
}

func TestModelCalculateVoteUsesFixedCost(t *testing.T) {
	m := NewModel()
	tx := &fakeTx{isVote: true}

	c := m.Calculate(tx)
	if c != VoteFixedCost {
		t.Errorf("expected fixed vote cost %+v, got %+v", VoteFixedCost, c)
	}
}
