// Package committer implements spec §4.8: applying a worker's results to the
// bank, forwarding committed votes, refreshing the prioritization fee cache,
// and optionally emitting transaction-status batches.
package committer

import (
	"context"
	"time"

	"github.com/vivekjami/banking-stage/external"
	"github.com/vivekjami/banking-stage/logger"
	"github.com/vivekjami/banking-stage/scheduler"
)

var log, _ = logger.Get(logger.SubsystemTags.COMM)

// voteSendTimeout bounds how long forwarding one committed vote to the
// replay sender may take (spec §4.8 step 2, "time-limited").
const voteSendTimeout = 50 * time.Millisecond

// Timings is the per-substep duration breakdown spec §4.8 requires ("all
// four sub-steps are timed separately").
type Timings struct {
	Commit       time.Duration
	VoteForward  time.Duration
	FeeCacheUpdate time.Duration
	StatusEmit   time.Duration
}

// Committer is spec §4.8's Committer. It holds no bank reference of its own
// - banks rotate every slot, so Commit takes the bank its batch targeted as
// an argument.
type Committer struct {
	voteSender       external.ReplayVoteSender
	feeCache         external.PrioritizationFeeCache
	statusSender     external.TransactionStatusSender
	balanceCollector external.BalanceCollector
}

// New returns a Committer. voteSender and feeCache are required;
// statusSender and balanceCollector are optional (spec §4.8, "missing
// status sender => skip", "missing balance collector => emit status without
// balances").
func New(voteSender external.ReplayVoteSender, feeCache external.PrioritizationFeeCache) *Committer {
	return &Committer{voteSender: voteSender, feeCache: feeCache}
}

// WithStatusSender attaches an optional transaction-status sender.
func (c *Committer) WithStatusSender(sender external.TransactionStatusSender, collector external.BalanceCollector) *Committer {
	c.statusSender = sender
	c.balanceCollector = collector
	return c
}

// Commit applies one finished batch's committed results to bank and runs the
// remaining three sub-steps, returning a per-substep timing breakdown.
func (c *Committer) Commit(bank external.Bank, f *scheduler.FinishedConsumeWork) (Timings, error) {
	var t Timings

	results := make([]external.ExecutionResult, len(f.Outcomes))
	for i, o := range f.Outcomes {
		results[i] = external.ExecutionResult{
			Committed:   o.Kind == scheduler.OutcomeCommitted,
			UsedCU:      o.UsedCU,
			LoadedBytes: o.LoadedBytes,
		}
	}

	commitStart := time.Now()
	_, err := bank.CommitTransactions(f.Work, results)
	t.Commit = time.Since(commitStart)
	if err != nil {
		log.Errorf("commit_transactions failed: %s", err)
		return t, err
	}

	var committed []external.Transaction
	for i, o := range f.Outcomes {
		if o.Kind == scheduler.OutcomeCommitted {
			committed = append(committed, f.Work.Items[i].Tx)
		}
	}

	forwardStart := time.Now()
	c.forwardVotes(committed)
	t.VoteForward = time.Since(forwardStart)

	feeStart := time.Now()
	c.feeCache.Update(committed)
	t.FeeCacheUpdate = time.Since(feeStart)

	statusStart := time.Now()
	c.emitStatus(bank, f)
	t.StatusEmit = time.Since(statusStart)

	return t, nil
}

// forwardVotes offers every committed vote instruction to the replay-vote
// sender exactly once (spec §8, Committer vote-forwarding).
func (c *Committer) forwardVotes(committed []external.Transaction) {
	for _, tx := range committed {
		if !tx.ContainsVoteInstruction() {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), voteSendTimeout)
		err := c.voteSender.Send(ctx, tx)
		cancel()
		if err != nil {
			log.Warnf("failed to forward committed vote: %s", err)
		}
	}
}

// emitStatus compiles and sends the optional post-commit status batch (spec
// §4.8 step 4).
func (c *Committer) emitStatus(bank external.Bank, f *scheduler.FinishedConsumeWork) {
	if c.statusSender == nil {
		return
	}

	batch := make([]external.TransactionStatus, len(f.Outcomes))
	for i, o := range f.Outcomes {
		status := external.TransactionStatus{
			Index:       i,
			Committed:   o.Kind == scheduler.OutcomeCommitted,
			UsedCU:      o.UsedCU,
			LoadedBytes: o.LoadedBytes,
		}
		if c.balanceCollector != nil {
			status.PreBalances, status.PostBalances = c.balanceCollector.Balances(f.Work.Items[i].Tx, bank)
		}
		batch[i] = status
	}
	c.statusSender.Send(batch)
}
