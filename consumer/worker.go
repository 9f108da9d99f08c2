package consumer

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/vivekjami/banking-stage/external"
	"github.com/vivekjami/banking-stage/logger"
	"github.com/vivekjami/banking-stage/scheduler"
	"github.com/vivekjami/banking-stage/util/panics"
)

var log, _ = logger.Get(logger.SubsystemTags.CONS)

// bankWaitTimeout bounds how long a worker waits for an in-progress bank
// before marking its whole batch retryable (spec §4.7 step 1).
const bankWaitTimeout = 50 * time.Millisecond

// MetricsInterval is how often Stats should be expected to be scraped; the
// worker itself only accumulates counters, leaving the scrape cadence to the
// caller (spec §4.7, "metrics are reported on a 20 ms interval").
const MetricsInterval = 20 * time.Millisecond

// Stats is a snapshot of one worker's cumulative counters (spec §4.7).
type Stats struct {
	Attempted         uint64
	Committed         uint64
	BankWaitSuccesses uint64
	BankWaitFailures  uint64
	ExecuteTime       time.Duration
	BankWaitTime      time.Duration
}

// Worker is spec §4.7's Consume Worker: a single goroutine that blocking-
// reads ConsumeWork from a channel, executes each batch against the current
// bank, and emits FinishedConsumeWork for the Scheduler/Committer to
// reconcile.
type Worker struct {
	id       uuid.UUID
	notifier external.LeaderBankNotifier
	consumer Consumer

	attempted         uint64
	committed         uint64
	bankWaitSuccesses uint64
	bankWaitFailures  uint64
	executeTimeNanos  int64
	bankWaitTimeNanos int64
}

// NewWorker returns a Worker that acquires banks via notifier and executes
// batches via consumer.
func NewWorker(notifier external.LeaderBankNotifier, consumer Consumer) *Worker {
	return &Worker{id: uuid.New(), notifier: notifier, consumer: consumer}
}

// ID returns this worker's identity. Neither FinishedConsumeWork nor Stats
// carries it.
func (w *Worker) ID() uuid.UUID { return w.id }

// Run blocking-reads from in until it is closed, dispatching each batch's
// FinishedConsumeWork onto out. It is meant to be launched via
// panics.GoroutineWrapperFunc so a panic inside one worker does not take the
// others down silently.
func (w *Worker) Run(in <-chan *scheduler.ConsumeWork, out chan<- *scheduler.FinishedConsumeWork) {
	for work := range in {
		out <- w.process(work)
	}
}

// RunWrapped launches Run in a panic-handled goroutine (spec §5, every
// Consume Worker is an independent thread role).
func (w *Worker) RunWrapped(in <-chan *scheduler.ConsumeWork, out chan<- *scheduler.FinishedConsumeWork) {
	panics.GoroutineWrapperFunc(log)(func() { w.Run(in, out) })
}

func (w *Worker) process(work *scheduler.ConsumeWork) *scheduler.FinishedConsumeWork {
	atomic.AddUint64(&w.attempted, uint64(len(work.Items)))

	waitStart := time.Now()
	bank, ok := w.notifier.WaitForInProgress(bankWaitTimeout)
	atomic.AddInt64(&w.bankWaitTimeNanos, int64(time.Since(waitStart)))

	if !ok {
		atomic.AddUint64(&w.bankWaitFailures, 1)
		return w.allRetryable(work, scheduler.ReasonBankUnavailable)
	}
	atomic.AddUint64(&w.bankWaitSuccesses, 1)

	if bank.ID() != work.Bank {
		return w.allRetryable(work, scheduler.ReasonBankMismatch)
	}

	execStart := time.Now()
	outcomes := w.consumer.ProcessAndRecordAgedTransactions(bank, work)
	atomic.AddInt64(&w.executeTimeNanos, int64(time.Since(execStart)))

	for _, o := range outcomes {
		if o.Kind == scheduler.OutcomeCommitted {
			atomic.AddUint64(&w.committed, 1)
		}
	}

	return &scheduler.FinishedConsumeWork{Work: work, Outcomes: outcomes}
}

func (w *Worker) allRetryable(work *scheduler.ConsumeWork, reason scheduler.RetryReason) *scheduler.FinishedConsumeWork {
	outcomes := make([]scheduler.Outcome, len(work.Items))
	for i := range outcomes {
		outcomes[i] = scheduler.Outcome{Kind: scheduler.OutcomeRetryable, Reason: reason}
	}
	return &scheduler.FinishedConsumeWork{Work: work, Outcomes: outcomes}
}

// Stats returns a snapshot of this worker's cumulative counters.
func (w *Worker) Stats() Stats {
	return Stats{
		Attempted:         atomic.LoadUint64(&w.attempted),
		Committed:         atomic.LoadUint64(&w.committed),
		BankWaitSuccesses: atomic.LoadUint64(&w.bankWaitSuccesses),
		BankWaitFailures:  atomic.LoadUint64(&w.bankWaitFailures),
		ExecuteTime:       time.Duration(atomic.LoadInt64(&w.executeTimeNanos)),
		BankWaitTime:      time.Duration(atomic.LoadInt64(&w.bankWaitTimeNanos)),
	}
}
