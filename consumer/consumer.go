// Package consumer declares the execution boundary each Consume Worker calls
// into (spec §4.7 step 3) and implements the worker loop itself (spec §4.7,
// §9 "a trait-style capability object rather than embedding the recorder").
// Nothing here touches ledger state directly: sanitization, account loading
// and program execution are the ledger runtime's job, reached only through
// the Consumer interface.
package consumer

import (
	"github.com/vivekjami/banking-stage/external"
	"github.com/vivekjami/banking-stage/scheduler"
)

// Consumer executes a dispatched batch against bank and reports a
// scheduler.Outcome for every item, in order. It is the external boundary to
// the ledger's transaction-processing pipeline (spec §1 Non-goals: "full
// ledger replay" is excluded, but executing one already-scheduled batch
// against a live bank is this module's concern to orchestrate, not to
// implement).
type Consumer interface {
	ProcessAndRecordAgedTransactions(bank external.Bank, batch external.BatchView) []scheduler.Outcome
}
