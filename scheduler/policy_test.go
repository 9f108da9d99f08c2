package scheduler

import (
	"testing"

	"github.com/vivekjami/banking-stage/external"
)

func TestGreedyPolicyEligibility(t *testing.T) {
	p := newGreedyPolicy()
	accounts := []external.AccountID{"a", "b"}

	if !p.Eligible(accounts) {
		t.Fatalf("expected fresh policy to admit any account set")
	}

	p.Lock(1, accounts)
	if p.Eligible([]external.AccountID{"b"}) {
		t.Fatalf("expected account 'b' locked by batch 1 to be ineligible")
	}
	if p.Eligible([]external.AccountID{"c"}) == false {
		t.Fatalf("expected unrelated account 'c' to remain eligible")
	}

	p.Unlock(1)
	if !p.Eligible(accounts) {
		t.Fatalf("expected accounts eligible again after unlock")
	}
}

func TestGreedyPolicyUnlockOnlyReleasesOwnBatch(t *testing.T) {
	p := newGreedyPolicy()
	p.Lock(1, []external.AccountID{"a"})
	p.Lock(2, []external.AccountID{"b"})

	p.Unlock(1)

	if !p.Eligible([]external.AccountID{"a"}) {
		t.Fatalf("expected 'a' released by unlocking batch 1")
	}
	if p.Eligible([]external.AccountID{"b"}) {
		t.Fatalf("expected 'b' to remain locked by batch 2")
	}
}

func TestPriorityGraphPolicyEligibility(t *testing.T) {
	p := newPriorityGraphPolicy()
	accounts := []external.AccountID{"x"}

	if !p.Eligible(accounts) {
		t.Fatalf("expected fresh policy to admit any account set")
	}

	p.Lock(10, accounts)
	if p.Eligible(accounts) {
		t.Fatalf("expected account 'x' locked by batch 10 to be ineligible")
	}

	p.Unlock(10)
	if !p.Eligible(accounts) {
		t.Fatalf("expected account 'x' eligible again after unlock")
	}
}

func TestPriorityGraphPolicyIndependentAccountsDoNotConflict(t *testing.T) {
	p := newPriorityGraphPolicy()
	p.Lock(1, []external.AccountID{"a"})

	if !p.Eligible([]external.AccountID{"b"}) {
		t.Fatalf("expected disjoint account set to remain eligible")
	}
}
