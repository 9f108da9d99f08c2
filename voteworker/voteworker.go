// Package voteworker implements spec §4.9: a dedicated decision+execute loop
// for consensus-vote transactions, with its own Decision Maker, Vote
// Storage, and Consumer pipeline, entirely separate from the non-vote
// Scheduler/Worker pool.
package voteworker

import (
	"time"

	"github.com/google/uuid"
	"github.com/vivekjami/banking-stage/committer"
	"github.com/vivekjami/banking-stage/consumer"
	"github.com/vivekjami/banking-stage/cost"
	"github.com/vivekjami/banking-stage/decision"
	"github.com/vivekjami/banking-stage/external"
	"github.com/vivekjami/banking-stage/logger"
	"github.com/vivekjami/banking-stage/packet"
	"github.com/vivekjami/banking-stage/scheduler"
	"github.com/vivekjami/banking-stage/util/panics"
	"github.com/vivekjami/banking-stage/votestorage"
)

var log, _ = logger.Get(logger.SubsystemTags.VOTW)

// SlotBoundaryCheckPeriod bounds how often decide() is consulted (spec §4.9
// step 2).
const SlotBoundaryCheckPeriod = 10 * time.Millisecond

// noopNonVoteSink discards anything routed to it; the Vote Worker's
// receiver never sees a non-vote channel, but packet.Receiver requires a
// NonVoteSink to exist regardless.
type noopNonVoteSink struct{}

func (noopNonVoteSink) Submit(p *packet.Packet) {}
func (noopNonVoteSink) Len() int                { return 0 }

// Worker is spec §4.9's Vote Worker.
type Worker struct {
	storage   *votestorage.Storage
	maker     *decision.Maker
	notifier  external.LeaderBankNotifier
	model     *cost.Model
	tracker   *cost.Tracker
	consumer  consumer.Consumer
	committer *committer.Committer
	receiver  *packet.Receiver
}

// New returns a Vote Worker wired to its own Vote Storage and Receiver,
// sharing the cost model/tracker, Decision Maker queries, consumer pipeline
// and committer the caller constructs for it.
func New(
	deserializer packet.Deserializer,
	filter *packet.Filter,
	maker *decision.Maker,
	notifier external.LeaderBankNotifier,
	model *cost.Model,
	tracker *cost.Tracker,
	cons consumer.Consumer,
	comm *committer.Committer,
) *Worker {
	storage := votestorage.New()
	receiver := packet.NewReceiver(deserializer, filter, storage, noopNonVoteSink{})
	return &Worker{
		storage:   storage,
		maker:     maker,
		notifier:  notifier,
		model:     model,
		tracker:   tracker,
		consumer:  cons,
		committer: comm,
		receiver:  receiver,
	}
}

// Storage exposes the Vote Worker's own Vote Storage, e.g. for metrics.
func (w *Worker) Storage() *votestorage.Storage { return w.storage }

// Run drives the loop of spec §4.9 until either upstream channel closes
// (clean shutdown, spec §5) or stop is closed.
func (w *Worker) Run(tpuVoteCh, gossipVoteCh <-chan packet.RawBatch, stop <-chan struct{}) {
	var nonVoteCh <-chan packet.RawBatch // never produces; the vote worker does not handle non-votes

	ticker := time.NewTicker(SlotBoundaryCheckPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		default:
		}

		w.receiver.ReceiveAndBuffer(nonVoteCh, tpuVoteCh, gossipVoteCh)

		select {
		case <-ticker.C:
			w.act(w.maker.Decide())
		default:
		}
	}
}

// RunWrapped launches Run in a panic-handled goroutine.
func (w *Worker) RunWrapped(tpuVoteCh, gossipVoteCh <-chan packet.RawBatch, stop <-chan struct{}) {
	panics.GoroutineWrapperFunc(log)(func() { w.Run(tpuVoteCh, gossipVoteCh, stop) })
}

func (w *Worker) act(d decision.Decision) {
	switch d.Kind {
	case decision.Consume:
		w.consume(d.Bank)
	case decision.Forward:
		w.storage.Clear()
	case decision.ForwardAndHold:
		if bank, ok := w.notifier.CurrentBank(); ok {
			w.storage.CacheEpochBoundaryInfo(bank, bank.Epoch())
		}
	case decision.Hold:
		// No-op: retain buffered votes, take no action this cycle.
	}
}

// admittedVote pairs a drained packet with the scheduler.Item tracking its
// admitted cost, so retryable outcomes can be reinserted into storage.
type admittedVote struct {
	pkt  *packet.Packet
	item *scheduler.Item
}

// consume drains up to votestorage.UnprocessedBufferStepSize votes, admits
// each against the cost tracker's vote lane, executes the batch through the
// Consumer, commits it, and reinserts retryable votes (spec §4.9 step 3,
// Consume branch). Reinserted votes are stamped with the reinsertion time;
// their original receive time and local tag are not carried over.
func (w *Worker) consume(bank external.Bank) {
	packets := w.storage.DrainUnprocessed(bank, bank.Slot())
	if len(packets) == 0 {
		return
	}

	work := &scheduler.ConsumeWork{BatchID: uuid.New(), Bank: bank.ID()}
	var admitted []admittedVote

	for _, p := range packets {
		c := w.model.Calculate(p.Tx)
		item := &scheduler.Item{Tx: p.Tx, Cost: c}
		if _, err := w.tracker.TryAdd(item, c, p.Tx.WritableAccounts(), true); err != nil {
			log.Tracef("dropping vote: %s", err)
			continue
		}
		work.Items = append(work.Items, item)
		admitted = append(admitted, admittedVote{pkt: p, item: item})
	}

	if len(work.Items) == 0 {
		return
	}

	outcomes := w.consumer.ProcessAndRecordAgedTransactions(bank, work)
	finished := &scheduler.FinishedConsumeWork{Work: work, Outcomes: outcomes}

	var retry []*packet.Packet
	receivedAt := make(map[*packet.Packet]time.Time)
	local := make(map[*packet.Packet]bool)

	for i, a := range admitted {
		if i >= len(outcomes) {
			break
		}
		switch outcomes[i].Kind {
		case scheduler.OutcomeCommitted:
			w.tracker.ReconcileCommitted(a.item, outcomes[i].UsedCU)
		case scheduler.OutcomeRetryable:
			w.tracker.ReconcileNotCommitted(a.item)
			if scheduler.IsTerminal(outcomes[i].Reason) {
				log.Debugf("dropping vote with terminal reason: %s", outcomes[i].Reason)
				continue
			}
			retry = append(retry, a.pkt)
			receivedAt[a.pkt] = time.Now()
		case scheduler.OutcomeDropped:
			w.tracker.ReconcileNotCommitted(a.item)
		}
	}

	if _, err := w.committer.Commit(bank, finished); err != nil {
		log.Errorf("vote commit failed: %s", err)
	}

	if len(retry) > 0 {
		w.storage.Reinsert(retry, receivedAt, local)
	}
}
