package scheduler

import (
	"github.com/google/uuid"
	"github.com/vivekjami/banking-stage/cost"
	"github.com/vivekjami/banking-stage/external"
)

// Item is one pending non-vote transaction plus its computed cost and the
// bookkeeping the Scheduler needs to track it across rounds.
type Item struct {
	Tx       external.Transaction
	Cost     cost.TransactionCost
	Enqueued int64 // monotonic sequence, used for oldest-first fairness
	Retries  int

	// EffectiveFee is Tx.FeePerComputeUnit(), or - when the transaction
	// declared none - the prioritization fee cache's historical estimate
	// for its writable accounts (spec §4.8). Computed once at Submit time
	// so the heap comparator never calls back into the cache.
	EffectiveFee uint64
}

// ConsumeWork is a batch of transactions assigned to one worker (spec §3).
type ConsumeWork struct {
	BatchID uuid.UUID
	Bank    external.BankID
	Items   []*Item
}

// Len implements external.BatchView.
func (w *ConsumeWork) Len() int { return len(w.Items) }

// TransactionAt implements external.BatchView.
func (w *ConsumeWork) TransactionAt(i int) external.Transaction { return w.Items[i].Tx }

// OutcomeKind classifies a FinishedConsumeWork entry (spec §3).
type OutcomeKind int

const (
	OutcomeCommitted OutcomeKind = iota
	OutcomeRetryable
	OutcomeDropped
)

// RetryReason classifies why a transaction is retryable or dropped,
// spanning both the admission (§4.4) and execution (§4.7) taxonomies.
type RetryReason string

const (
	ReasonBankUnavailable    RetryReason = "bank_unavailable"
	ReasonBankMismatch       RetryReason = "bank_mismatch"
	ReasonAccountInUse       RetryReason = "account_in_use"
	ReasonBlockhashNotFound  RetryReason = "blockhash_not_found"
	ReasonBlockhashTooOld    RetryReason = "blockhash_too_old"
	ReasonAccountLoadedTwice RetryReason = "account_loaded_twice"
	ReasonInstructionError   RetryReason = "instruction_error"
	ReasonAlreadyProcessed   RetryReason = "already_processed"
	ReasonInsufficientFunds  RetryReason = "insufficient_funds"
	ReasonInvalidAccountFee  RetryReason = "invalid_account_for_fee"
	ReasonCallChainTooDeep   RetryReason = "call_chain_too_deep"
	ReasonTooManyLocks       RetryReason = "too_many_account_locks"
	ReasonAccountNotFound    RetryReason = "account_not_found"
	ReasonCostLimitExceeded  RetryReason = "cost_limit_exceeded"
	ReasonDataLimitExceeded  RetryReason = "account_data_total_limit_exceeded"
	ReasonStarvation         RetryReason = "starvation"
)

// terminalReasons are execution outcomes spec §7 classifies as terminal for
// that transaction: no later bank or retry round can make them succeed, so
// they must be dropped immediately rather than re-queued. account_in_use,
// blockhash_not_found, bank_unavailable and bank_mismatch are the converse
// retryable cases and are deliberately absent here. The remaining reasons
// aren't named in §7's worked example but share the terminal ones' shape -
// a structural property of the transaction itself (duplicate account locks,
// an unpayable fee, too deep a call chain, too many locks, an account that
// doesn't exist) rather than transient contention, so they're classified
// terminal too; cost_limit_exceeded is the one admission-time reason that
// stays retryable, mirroring cost.ErrWouldExceedMaxBlockCostLimit's own
// retry policy.
var terminalReasons = map[RetryReason]bool{
	ReasonAlreadyProcessed:   true,
	ReasonInstructionError:   true,
	ReasonInsufficientFunds:  true,
	ReasonBlockhashTooOld:    true,
	ReasonAccountLoadedTwice: true,
	ReasonInvalidAccountFee:  true,
	ReasonCallChainTooDeep:   true,
	ReasonTooManyLocks:       true,
	ReasonAccountNotFound:    true,
	ReasonDataLimitExceeded:  true,
	ReasonStarvation:         true,
}

// IsTerminal reports whether reason is permanently unprocessable (spec §7)
// and so should be dropped on sight instead of returned to the pending set.
func IsTerminal(reason RetryReason) bool {
	return terminalReasons[reason]
}

// Outcome is the per-index result of executing a ConsumeWork batch.
type Outcome struct {
	Kind        OutcomeKind
	UsedCU      uint64
	LoadedBytes uint64
	Reason      RetryReason
}

// FinishedConsumeWork is a ConsumeWork plus its per-index outcomes.
type FinishedConsumeWork struct {
	Work     *ConsumeWork
	Outcomes []Outcome
}
