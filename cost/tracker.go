package cost

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/vivekjami/banking-stage/external"
)

// Default ceilings (spec §6 configuration surface).
const (
	DefaultMaxBlockCU           uint64 = 48_000_000
	DefaultMaxVoteCU            uint64 = 36_000_000
	DefaultMaxAccountCU         uint64 = 12_000_000
	DefaultMaxAccountDataBlock  uint64 = 100_000_000
	DefaultMaxAccountDataTotal  uint64 = 300_000_000
)

// Admission failures (spec §4.4). Each is a distinct sentinel so callers can
// classify retry policy with errors.Is rather than string matching.
var (
	ErrWouldExceedMaxBlockCostLimit      = errors.New("would exceed max block cost limit")
	ErrWouldExceedMaxVoteCostLimit       = errors.New("would exceed max vote cost limit")
	ErrWouldExceedMaxAccountCostLimit    = errors.New("would exceed max account cost limit")
	ErrWouldExceedAccountDataBlockLimit  = errors.New("would exceed account data block limit")
	ErrWouldExceedAccountDataTotalLimit  = errors.New("would exceed account data total limit")
)

// IsPermanentDrop reports whether an admission failure's retry policy is
// permanent drop (spec §4.4 table) rather than retry-in-next-bank.
func IsPermanentDrop(err error) bool {
	return errors.Is(err, ErrWouldExceedAccountDataTotalLimit)
}

// Limits bundles the five ceilings a Tracker enforces.
type Limits struct {
	MaxBlockCU          uint64
	MaxVoteCU           uint64
	MaxAccountCU        uint64
	MaxAccountDataBlock uint64
	MaxAccountDataTotal uint64
}

// DefaultLimits returns the spec's default ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxBlockCU:          DefaultMaxBlockCU,
		MaxVoteCU:           DefaultMaxVoteCU,
		MaxAccountCU:        DefaultMaxAccountCU,
		MaxAccountDataBlock: DefaultMaxAccountDataBlock,
		MaxAccountDataTotal: DefaultMaxAccountDataTotal,
	}
}

// admitted records the exact cost vector admitted for one transaction, so
// reconciliation can subtract precisely what try_add added - including to
// per-account accumulators, which Sum() alone can't invert.
type admitted struct {
	cost     TransactionCost
	accounts []external.AccountID
	isVote   bool
}

// Tracker is the per-bank cost accumulator of spec §4.4. All mutation is
// serialized behind a single mutex ("the single hot mutex" of spec §5).
// Reads take the same lock, so a reader waits for any writer in progress;
// there is no lock-free snapshot path because the five accumulators must be
// read consistently together.
type Tracker struct {
	mu sync.Mutex

	limits Limits

	blockCost        uint64
	voteCost         uint64
	accountDataBlock uint64
	accountDataTotal uint64
	perAccount       map[external.AccountID]uint64

	// admittedByID lets ReconcileCommitted/ReconcileNotCommitted find
	// exactly what TryAdd added,
	// keyed by whatever id the caller uses to correlate the two calls
	// (typically a transaction's signature or scheduler-assigned index).
	admittedByID map[interface{}]admitted
}

// NewTracker returns a cost tracker enforcing limits.
func NewTracker(limits Limits) *Tracker {
	return &Tracker{
		limits:       limits,
		perAccount:   make(map[external.AccountID]uint64),
		admittedByID: make(map[interface{}]admitted),
	}
}

// BlockCost returns the current block cost accumulator.
func (t *Tracker) BlockCost() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.blockCost
}

// TryAdd admits cost for the transaction identified by id (any comparable
// value unique within this bank, e.g. its signature) if and only if every
// invariant in spec §3 would still hold afterward. On success it returns the
// new block cost; on failure it returns one of the ErrWouldExceed* sentinels
// and mutates nothing.
func (t *Tracker) TryAdd(id interface{}, cost TransactionCost, accounts []external.AccountID, isVote bool) (newBlockCost uint64, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sum := cost.Sum()

	if t.blockCost+sum > t.limits.MaxBlockCU {
		return 0, errors.WithStack(ErrWouldExceedMaxBlockCostLimit)
	}
	if isVote && t.voteCost+sum > t.limits.MaxVoteCU {
		return 0, errors.WithStack(ErrWouldExceedMaxVoteCostLimit)
	}
	for _, acc := range accounts {
		if t.perAccount[acc]+sum > t.limits.MaxAccountCU {
			return 0, errors.WithStack(ErrWouldExceedMaxAccountCostLimit)
		}
	}
	if t.accountDataBlock+cost.LoadedAccountsDataSizeCost > t.limits.MaxAccountDataBlock {
		return 0, errors.WithStack(ErrWouldExceedAccountDataBlockLimit)
	}
	if t.accountDataTotal+cost.LoadedAccountsDataSizeCost > t.limits.MaxAccountDataTotal {
		return 0, errors.WithStack(ErrWouldExceedAccountDataTotalLimit)
	}

	t.blockCost += sum
	if isVote {
		t.voteCost += sum
	}
	for _, acc := range accounts {
		t.perAccount[acc] += sum
	}
	t.accountDataBlock += cost.LoadedAccountsDataSizeCost
	t.accountDataTotal += cost.LoadedAccountsDataSizeCost

	t.admittedByID[id] = admitted{cost: cost, accounts: accounts, isVote: isVote}

	return t.blockCost, nil
}

// ReconcileCommitted subtracts the admitted program_execution_cost and adds
// back the actual consumed compute units, capped at the admitted value so
// reconciliation never increases block cost (spec §4.4).
func (t *Tracker) ReconcileCommitted(id interface{}, actualCU uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.admittedByID[id]
	if !ok {
		return
	}
	delete(t.admittedByID, id)

	if actualCU > a.cost.ProgramExecutionCost {
		actualCU = a.cost.ProgramExecutionCost
	}
	delta := a.cost.ProgramExecutionCost - actualCU

	t.subtract(delta, a)
}

// ReconcileNotCommitted removes the full admitted cost for a transaction
// that was attempted but not committed, or never attempted at all - both
// cases leave the accumulators as if the transaction had never been
// admitted (spec §4.4). Unlike ReconcileCommitted, this also releases the
// account-data-size charge, since a transaction that never committed never
// actually loaded those accounts.
func (t *Tracker) ReconcileNotCommitted(id interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.admittedByID[id]
	if !ok {
		return
	}
	delete(t.admittedByID, id)

	t.subtract(a.cost.Sum(), a)
	t.accountDataBlock -= a.cost.LoadedAccountsDataSizeCost
	t.accountDataTotal -= a.cost.LoadedAccountsDataSizeCost
}

// subtract removes delta from the block/vote/account accumulators credited
// under admission a. It never touches accountDataBlock/accountDataTotal:
// those stay charged at their admitted value once a transaction commits,
// since the account data it loaded was actually consumed (spec §4.4) - only
// ReconcileNotCommitted releases them. Callers hold t.mu.
func (t *Tracker) subtract(delta uint64, a admitted) {
	t.blockCost -= delta
	if a.isVote {
		t.voteCost -= delta
	}
	for _, acc := range a.accounts {
		t.perAccount[acc] -= delta
		if t.perAccount[acc] == 0 {
			delete(t.perAccount, acc)
		}
	}
}

// Reset discards every accumulator; called when a new bank replaces the old
// one (spec §3, "discarded atomically when a new bank replaces the old").
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.blockCost = 0
	t.voteCost = 0
	t.accountDataBlock = 0
	t.accountDataTotal = 0
	t.perAccount = make(map[external.AccountID]uint64)
	t.admittedByID = make(map[interface{}]admitted)
}
