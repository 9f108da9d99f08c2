package committer

import (
	"context"
	"testing"

	"github.com/vivekjami/banking-stage/external"
	"github.com/vivekjami/banking-stage/scheduler"
)

type fakeTx struct {
	writable []external.AccountID
	isVote   bool
}

func (f *fakeTx) WritableAccounts() []external.AccountID { return f.writable }
func (f *fakeTx) SignatureCount() int                     { return 1 }
func (f *fakeTx) PrecompileSignatureCount() int           { return 0 }
func (f *fakeTx) ComputeUnitLimit() uint64                { return 0 }
func (f *fakeTx) LoadedAccountsDataSizeLimit() uint64     { return 0 }
func (f *fakeTx) SerializedSize() uint64                  { return 0 }
func (f *fakeTx) FeePerComputeUnit() uint64                { return 0 }
func (f *fakeTx) IsVote() bool                             { return f.isVote }
func (f *fakeTx) ContainsVoteInstruction() bool            { return f.isVote }
func (f *fakeTx) VoteValidatorIdentity() string            { return "v" }
func (f *fakeTx) VoteSignature() string                    { return "sig" }
func (f *fakeTx) VoteSlot() uint64                          { return 0 }

type fakeBank struct{}

func (fakeBank) ID() external.BankID { return 1 }
func (fakeBank) Slot() uint64        { return 1 }
func (fakeBank) Epoch() uint64       { return 0 }
func (fakeBank) CommitTransactions(external.BatchView, []external.ExecutionResult) (external.CommitResults, error) {
	return external.CommitResults{}, nil
}
func (fakeBank) VoteAccountStakes() map[string]uint64 { return nil }

type fakeVoteSender struct {
	sent []external.Transaction
}

func (s *fakeVoteSender) Send(ctx context.Context, tx external.Transaction) error {
	s.sent = append(s.sent, tx)
	return nil
}

type fakeFeeCache struct {
	updated []external.Transaction
}

func (c *fakeFeeCache) Update(committed []external.Transaction) { c.updated = committed }
func (c *fakeFeeCache) EstimateFee([]external.AccountID) (uint64, bool) { return 0, false }

type fakeStatusSender struct {
	batches [][]external.TransactionStatus
}

func (s *fakeStatusSender) Send(batch []external.TransactionStatus) {
	s.batches = append(s.batches, batch)
}

func newWork(items ...*scheduler.Item) *scheduler.ConsumeWork {
	return &scheduler.ConsumeWork{Bank: external.BankID(1), Items: items}
}

func TestCommitterForwardsVotesExactlyOnce(t *testing.T) {
	voteSender := &fakeVoteSender{}
	feeCache := &fakeFeeCache{}
	c := New(voteSender, feeCache)

	work := newWork(&scheduler.Item{Tx: &fakeTx{isVote: true}}, &scheduler.Item{Tx: &fakeTx{isVote: false}})
	finished := &scheduler.FinishedConsumeWork{
		Work:     work,
		Outcomes: []scheduler.Outcome{{Kind: scheduler.OutcomeCommitted}, {Kind: scheduler.OutcomeCommitted}},
	}

	if _, err := c.Commit(fakeBank{}, finished); err != nil {
		t.Fatalf("Commit failed: %s", err)
	}

	if len(voteSender.sent) != 1 {
		t.Fatalf("expected exactly 1 vote forwarded, got %d", len(voteSender.sent))
	}
	if len(feeCache.updated) != 2 {
		t.Fatalf("expected fee cache updated with both committed transactions, got %d", len(feeCache.updated))
	}
}

func TestCommitterSkipsStatusEmitWithoutSender(t *testing.T) {
	c := New(&fakeVoteSender{}, &fakeFeeCache{})
	work := newWork(&scheduler.Item{Tx: &fakeTx{}})
	finished := &scheduler.FinishedConsumeWork{Work: work, Outcomes: []scheduler.Outcome{{Kind: scheduler.OutcomeCommitted}}}

	if _, err := c.Commit(fakeBank{}, finished); err != nil {
		t.Fatalf("Commit failed: %s", err)
	}
	// No panic/error with statusSender nil is the behavior under test.
}

func TestCommitterEmitsStatusWithoutBalancesWhenCollectorMissing(t *testing.T) {
	status := &fakeStatusSender{}
	c := New(&fakeVoteSender{}, &fakeFeeCache{}).WithStatusSender(status, nil)
	work := newWork(&scheduler.Item{Tx: &fakeTx{}})
	finished := &scheduler.FinishedConsumeWork{Work: work, Outcomes: []scheduler.Outcome{{Kind: scheduler.OutcomeCommitted, UsedCU: 42}}}

	if _, err := c.Commit(fakeBank{}, finished); err != nil {
		t.Fatalf("Commit failed: %s", err)
	}

	if len(status.batches) != 1 || len(status.batches[0]) != 1 {
		t.Fatalf("expected one status batch with one entry, got %+v", status.batches)
	}
	entry := status.batches[0][0]
	if entry.UsedCU != 42 {
		t.Fatalf("expected UsedCU 42, got %d", entry.UsedCU)
	}
	if entry.PreBalances != nil || entry.PostBalances != nil {
		t.Fatalf("expected no balances without a collector, got %+v/%+v", entry.PreBalances, entry.PostBalances)
	}
}
