// Package external declares the boundary between the banking stage core and
// its collaborators: the ledger bank, the PoH recorder, the vote-propagation
// sender and the transaction-status/prioritization-fee sinks. Nothing in this
// module holds a concrete handle to a ledger or a network socket - every
// other package depends on these interfaces only, never on an implementation.
package external

import (
	"context"
	"time"
)

// AccountID identifies an account a transaction locks, in whatever encoding
// the deserialized transaction projection uses (e.g. a base58 address or a
// raw public key). It is opaque to every package except whatever produced it.
type AccountID string

// BankID is a monotonically increasing identity assigned to each bank/slot
// the ledger rotates to.
type BankID uint64

// Bank is the minimal slice of ledger-bank behavior the core needs: the
// ability to commit an executed batch and report its own identity.
type Bank interface {
	// ID returns this bank's monotonic identity.
	ID() BankID

	// Slot returns the slot this bank represents, used for vote
	// age-based eviction (spec §4.5).
	Slot() uint64

	// Epoch returns the epoch this bank's slot falls within, used to
	// detect epoch-boundary transitions (spec §4.5, §4.9).
	Epoch() uint64

	// CommitTransactions applies the given results to ledger state and
	// returns per-transaction commit records.
	CommitTransactions(batch BatchView, results []ExecutionResult) (CommitResults, error)

	// VoteAccountStakes returns the current stake, in arbitrary units,
	// for every validator identity known to this bank's vote accounts.
	// Zero-stake validators may be present or omitted; callers must not
	// assume either.
	VoteAccountStakes() map[string]uint64
}

// BatchView is the read-only view of a dispatched batch a Bank needs in
// order to commit it; it is satisfied by scheduler.ConsumeWork.
type BatchView interface {
	Len() int
	TransactionAt(i int) Transaction
}

// Transaction is the deserialized projection of a transaction the core
// reasons about. Signature bytes, wire encoding and account-store lookups
// remain entirely outside this module.
type Transaction interface {
	// WritableAccounts returns the accounts this transaction locks for
	// writing.
	WritableAccounts() []AccountID
	// SignatureCount returns the number of standard (non-precompile)
	// signatures the transaction carries.
	SignatureCount() int
	// PrecompileSignatureCount returns the number of signature-verification
	// instructions targeting Ed25519/Secp256k1/Secp256r1 precompiles.
	PrecompileSignatureCount() int
	// ComputeUnitLimit returns the transaction's declared compute-unit
	// ceiling.
	ComputeUnitLimit() uint64
	// LoadedAccountsDataSizeLimit returns the transaction's declared
	// ceiling on the total size, in bytes, of accounts it may load.
	LoadedAccountsDataSizeLimit() uint64
	// SerializedSize returns the length, in bytes, of the transaction's
	// wire encoding.
	SerializedSize() uint64
	// FeePerComputeUnit returns the prioritization fee the submitter
	// offers per compute unit, or zero if unset.
	FeePerComputeUnit() uint64
	// IsVote reports whether this transaction is a stake-weighted
	// consensus vote rather than a general-purpose instruction.
	IsVote() bool
	// ContainsVoteInstruction reports whether a committed transaction's
	// program invocations include a vote instruction, for forwarding to
	// the replay-vote sender after commit.
	ContainsVoteInstruction() bool
	// VoteValidatorIdentity returns the validator identity a vote
	// transaction is cast on behalf of. Meaningless when !IsVote().
	VoteValidatorIdentity() string
	// VoteSignature returns the signature used to deduplicate a vote
	// transaction. Meaningless when !IsVote().
	VoteSignature() string
	// VoteSlot returns the slot a vote transaction was produced at, used
	// for age-based eviction from the vote queues. Meaningless when
	// !IsVote().
	VoteSlot() uint64
}

// ExecutionResult is the per-transaction outcome of executing a batch
// against a Bank, produced by the core's execution boundary (see
// consumer.Consumer) and consumed by Bank.CommitTransactions.
type ExecutionResult struct {
	Committed   bool
	UsedCU      uint64
	LoadedBytes uint64
	Logs        []string
	Err         error
}

// CommitResults is returned by Bank.CommitTransactions; CommitTime records
// how long the ledger took to apply the batch.
type CommitResults struct {
	CommitTime time.Duration
}

// LeaderBankNotifier exposes the PoH-driven notion of "the bank currently
// being produced", if any.
type LeaderBankNotifier interface {
	// WaitForInProgress blocks up to timeout for an in-progress bank and
	// returns it, or ok=false on timeout.
	WaitForInProgress(timeout time.Duration) (bank Bank, ok bool)

	// CurrentBank returns the most recently observed bank regardless of
	// whether this node is producing it, for reads that don't require
	// active leadership (spec §4.9's ForwardAndHold epoch refresh).
	CurrentBank() (bank Bank, ok bool)
}

// PohRecorder answers the leadership-timing questions the Decision Maker
// needs without embedding any notion of Proof-of-History itself.
type PohRecorder interface {
	// BankStart returns the active producing bank, if this node is
	// leader right now.
	BankStart() (bank Bank, ok bool)
	// WouldBeLeaderShortly reports whether this node will become leader
	// within one slot.
	WouldBeLeaderShortly() bool
	// WouldBeLeader reports whether this node will become leader within
	// HoldSlotOffset slots.
	WouldBeLeader() bool
	// LeaderPubkeyAfterSlots returns the pubkey scheduled to lead n slots
	// from now, or "" if unknown.
	LeaderPubkeyAfterSlots(n uint64) string
	// MyPubkey returns this node's own identity.
	MyPubkey() string
}

// ReplayVoteSender forwards committed vote transactions to the consensus
// replay path.
type ReplayVoteSender interface {
	// Send offers tx to the replay path, bounded by ctx's deadline.
	Send(ctx context.Context, tx Transaction) error
}

// TransactionStatusSender optionally receives a batch of post-commit status
// records; it is nil whenever Config.StatusSenderEnabled is false.
type TransactionStatusSender interface {
	Send(batch []TransactionStatus)
}

// TransactionStatus is one entry of the optional post-commit status batch
// (committer, §4.8 step 4).
type TransactionStatus struct {
	Index          int
	Committed      bool
	Logs           []string
	UsedCU         uint64
	LoadedBytes    uint64
	PreBalances    map[AccountID]uint64
	PostBalances   map[AccountID]uint64
}

// BalanceCollector assembles pre/post account balances for a committed
// transaction; it is optional (committer §4.8 step 4, "missing balance
// collector => emit status without balances").
type BalanceCollector interface {
	Balances(tx Transaction, bank Bank) (pre, post map[AccountID]uint64)
}

// PrioritizationFeeCache is updated by the Committer with the fees of
// successfully committed transactions and read by the Scheduler as a
// priority hint. See package feecache for the concrete implementation.
type PrioritizationFeeCache interface {
	Update(committed []Transaction)
	EstimateFee(accounts []AccountID) (feePerCU uint64, ok bool)
}
