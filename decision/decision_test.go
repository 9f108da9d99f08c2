package decision

import (
	"testing"
	"time"

	"github.com/vivekjami/banking-stage/external"
)

type fakeBank struct{}

func (fakeBank) ID() external.BankID { return 1 }
func (fakeBank) Slot() uint64        { return 1 }
func (fakeBank) Epoch() uint64       { return 0 }
func (fakeBank) CommitTransactions(external.BatchView, []external.ExecutionResult) (external.CommitResults, error) {
	return external.CommitResults{}, nil
}
func (fakeBank) VoteAccountStakes() map[string]uint64 { return nil }

func newMaker(bankOK, shortly, leader bool, leaderAfter, me string) *Maker {
	return New(
		func() (external.Bank, bool) {
			if bankOK {
				return fakeBank{}, true
			}
			return nil, false
		},
		func() bool { return shortly },
		func() bool { return leader },
		func(uint64) string { return leaderAfter },
		func() string { return me },
	)
}

func TestDecisionActiveBankConsumes(t *testing.T) {
	m := newMaker(true, false, false, "", "me")
	if got := m.Decide().Kind; got != Consume {
		t.Fatalf("expected Consume, got %s", got)
	}
}

func TestDecisionWouldBeLeaderShortlyHolds(t *testing.T) {
	m := newMaker(false, true, false, "", "me")
	if got := m.Decide().Kind; got != Hold {
		t.Fatalf("expected Hold, got %s", got)
	}
}

func TestDecisionWouldBeLeaderForwardsAndHolds(t *testing.T) {
	m := newMaker(false, false, true, "", "me")
	if got := m.Decide().Kind; got != ForwardAndHold {
		t.Fatalf("expected ForwardAndHold, got %s", got)
	}
}

func TestDecisionOtherLeaderForwards(t *testing.T) {
	m := newMaker(false, false, false, "other", "me")
	if got := m.Decide().Kind; got != Forward {
		t.Fatalf("expected Forward, got %s", got)
	}
}

func TestDecisionSelfLeaderAfterSlotsHolds(t *testing.T) {
	m := newMaker(false, false, false, "me", "me")
	if got := m.Decide().Kind; got != Hold {
		t.Fatalf("expected Hold, got %s", got)
	}
}

func TestDecisionUnknownLeaderHolds(t *testing.T) {
	m := newMaker(false, false, false, "", "me")
	if got := m.Decide().Kind; got != Hold {
		t.Fatalf("expected Hold, got %s", got)
	}
}

func TestDecisionCacheIsReusedWithinTTL(t *testing.T) {
	calls := 0
	m := New(
		func() (external.Bank, bool) { calls++; return fakeBank{}, true },
		func() bool { return false },
		func() bool { return false },
		func(uint64) string { return "" },
		func() string { return "me" },
	)

	m.Decide()
	m.Decide()

	if calls != 1 {
		t.Fatalf("expected the underlying queries consulted once within the cache TTL, got %d calls", calls)
	}
}

func TestDecisionCacheExpiresAfterTTL(t *testing.T) {
	calls := 0
	m := New(
		func() (external.Bank, bool) { calls++; return fakeBank{}, true },
		func() bool { return false },
		func() bool { return false },
		func(uint64) string { return "" },
		func() string { return "me" },
	)

	m.Decide()
	time.Sleep(cacheTTL + 2*time.Millisecond)
	m.Decide()

	if calls != 2 {
		t.Fatalf("expected the cache to expire and re-consult queries, got %d calls", calls)
	}
}
