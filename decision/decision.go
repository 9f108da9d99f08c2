// Package decision implements spec §4.3's Decision Maker: a small, pure
// decision table driven entirely by pluggable query closures so it is
// unit-testable without a real Proof-of-History recorder (spec §9).
package decision

import (
	"time"

	"github.com/vivekjami/banking-stage/external"
)

// Tick/slot constants (spec §4.3).
const (
	ForwardAtSlotOffset = 2
	HoldSlotOffset      = 20
	TicksPerSlot        = 64
)

// cacheTTL is how long a decide() result is reused before the queries are
// consulted again (spec §4.3, §8 decision cache freshness).
const cacheTTL = 5 * time.Millisecond

// Kind is one of the four verdicts a Decision Maker may reach.
type Kind int

const (
	Consume Kind = iota
	Forward
	ForwardAndHold
	Hold
)

func (k Kind) String() string {
	switch k {
	case Consume:
		return "Consume"
	case Forward:
		return "Forward"
	case ForwardAndHold:
		return "ForwardAndHold"
	case Hold:
		return "Hold"
	default:
		return "Unknown"
	}
}

// Decision is spec §3's BufferedPacketsDecision. Bank is populated only when
// Kind == Consume.
type Decision struct {
	Kind Kind
	Bank external.Bank
}

// Maker is spec §4.3's Decision Maker. Every external dependency is a
// closure rather than a concrete PoH handle, per spec §9's "pluggable query
// closures... isolate pure logic from the PoH recorder".
type Maker struct {
	bankStart              func() (external.Bank, bool)
	wouldBeLeaderShortly   func() bool
	wouldBeLeader          func() bool
	leaderPubkeyAfterSlots func(n uint64) string
	myPubkey               func() string

	cached   Decision
	deadline time.Time
}

// New returns a Maker driven by the given queries. See external.PohRecorder
// for the production source of these closures.
func New(
	bankStart func() (external.Bank, bool),
	wouldBeLeaderShortly func() bool,
	wouldBeLeader func() bool,
	leaderPubkeyAfterSlots func(n uint64) string,
	myPubkey func() string,
) *Maker {
	return &Maker{
		bankStart:              bankStart,
		wouldBeLeaderShortly:   wouldBeLeaderShortly,
		wouldBeLeader:          wouldBeLeader,
		leaderPubkeyAfterSlots: leaderPubkeyAfterSlots,
		myPubkey:               myPubkey,
	}
}

// FromRecorder adapts an external.PohRecorder into a Maker.
func FromRecorder(r external.PohRecorder) *Maker {
	return New(r.BankStart, r.WouldBeLeaderShortly, r.WouldBeLeader, r.LeaderPubkeyAfterSlots, r.MyPubkey)
}

// Decide returns the current BufferedPacketsDecision, consulting the cache
// first (spec §4.3: "cache is consulted first and bypasses all queries on
// hit").
func (m *Maker) Decide() Decision {
	now := time.Now()
	if now.Before(m.deadline) {
		return m.cached
	}

	d := m.compute()
	m.cached = d
	m.deadline = now.Add(cacheTTL)
	return d
}

// compute evaluates the decision table's conditions in order; first match
// wins (spec §4.3).
func (m *Maker) compute() Decision {
	if bank, ok := m.bankStart(); ok {
		return Decision{Kind: Consume, Bank: bank}
	}

	if m.wouldBeLeaderShortly() {
		return Decision{Kind: Hold}
	}

	if m.wouldBeLeader() {
		return Decision{Kind: ForwardAndHold}
	}

	leader := m.leaderPubkeyAfterSlots(ForwardAtSlotOffset)
	me := m.myPubkey()
	if leader != "" && leader != me {
		return Decision{Kind: Forward}
	}

	if leader == me {
		return Decision{Kind: Hold}
	}

	return Decision{Kind: Hold}
}
