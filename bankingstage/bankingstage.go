// Package bankingstage wires the nine components of spec §2 together: the
// Packet Receiver, Decision Maker, Cost Model/Tracker, Scheduler, Consume
// Workers, Committer and Vote Worker, plus the ambient metrics/config glue.
// It is the one place in this module that holds every other package's
// concrete type; the ledger, PoH and network collaborators are reached only
// through external's interfaces.
package bankingstage

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vivekjami/banking-stage/committer"
	"github.com/vivekjami/banking-stage/config"
	"github.com/vivekjami/banking-stage/consumer"
	"github.com/vivekjami/banking-stage/cost"
	"github.com/vivekjami/banking-stage/decision"
	"github.com/vivekjami/banking-stage/external"
	"github.com/vivekjami/banking-stage/logger"
	"github.com/vivekjami/banking-stage/metrics"
	"github.com/vivekjami/banking-stage/packet"
	"github.com/vivekjami/banking-stage/scheduler"
	"github.com/vivekjami/banking-stage/util/panics"
	"github.com/vivekjami/banking-stage/votestorage"
	"github.com/vivekjami/banking-stage/voteworker"
)

var log, _ = logger.Get(logger.SubsystemTags.CNFG)

// decisionCheckPeriod is how often the top-level Decision Maker is
// consulted, mirroring the Vote Worker's own SLOT_BOUNDARY_CHECK_PERIOD
// (spec §4.9); the core spec leaves the non-vote cadence otherwise
// unspecified beyond the 5 ms cache itself bounding staleness.
const decisionCheckPeriod = 10 * time.Millisecond

// schedulerSink adapts *scheduler.Scheduler to packet.NonVoteSink.
type schedulerSink struct {
	sched *scheduler.Scheduler
}

func (s schedulerSink) Submit(p *packet.Packet) { s.sched.Submit(p.Tx) }
func (s schedulerSink) Len() int                { return s.sched.PendingLen() }

// Collaborators bundles every external boundary the banking stage needs,
// all supplied by the caller (spec §1 Non-goals: none of these are
// implemented here).
type Collaborators struct {
	Deserializer     packet.Deserializer
	PohRecorder      external.PohRecorder
	BankNotifier     external.LeaderBankNotifier
	Consumer         consumer.Consumer
	VoteSender       external.ReplayVoteSender
	FeeCache         external.PrioritizationFeeCache
	StatusSender     external.TransactionStatusSender   // optional
	BalanceCollector external.BalanceCollector           // optional
	MetricsRegistry  prometheus.Registerer                // optional; nil disables metrics
}

// Stage is the running banking stage.
type Stage struct {
	cfg *config.Config

	model   *cost.Model
	tracker *cost.Tracker
	sched   *scheduler.Scheduler

	filter   *packet.Filter
	receiver *packet.Receiver

	maker    *decision.Maker
	notifier external.LeaderBankNotifier

	workers   []*consumer.Worker
	committer *committer.Committer

	voteWorker *voteworker.Worker

	metrics *metrics.Metrics

	workCh   chan *scheduler.ConsumeWork
	resultCh chan *scheduler.FinishedConsumeWork

	bankMu      sync.RWMutex
	currentBank external.Bank

	stop chan struct{}
}

// New constructs a Stage from cfg and co, wiring every component in the
// teacher's pattern of plain constructor functions plus explicit channel
// ownership (spec §9: "no component holds a direct handle to another's
// mutable state").
func New(cfg *config.Config, co Collaborators) *Stage {
	model := cost.NewModel()
	tracker := cost.NewTracker(cfg.Limits())
	sched := scheduler.NewScheduler(model, tracker, cfg.Kind(), co.FeeCache)
	sched.SetBatchTargetSize(scheduler.DefaultBatchTargetSize)

	filter := packet.NewFilter()
	sink := schedulerSink{sched: sched}
	// The top-level Receiver never routes votes; this module's vote path
	// runs entirely inside the Vote Worker (spec §4.9). A throwaway
	// Storage satisfies packet.VoteSink without ever being drained.
	receiver := packet.NewReceiver(co.Deserializer, filter, votestorage.New(), sink)

	comm := committer.New(co.VoteSender, co.FeeCache)
	if co.StatusSender != nil && cfg.StatusSenderEnabled {
		comm = comm.WithStatusSender(co.StatusSender, co.BalanceCollector)
	}

	numWorkers := cfg.NumWorkers
	if numWorkers <= 0 {
		numWorkers = config.DefaultNumWorkers
	}
	workers := make([]*consumer.Worker, numWorkers)
	for i := range workers {
		workers[i] = consumer.NewWorker(co.BankNotifier, co.Consumer)
	}

	vw := voteworker.New(co.Deserializer, filter, decision.FromRecorder(co.PohRecorder), co.BankNotifier, model, tracker, co.Consumer, comm)

	var m *metrics.Metrics
	if co.MetricsRegistry != nil {
		m = metrics.New(co.MetricsRegistry)
	}

	return &Stage{
		cfg:       cfg,
		model:     model,
		tracker:   tracker,
		sched:     sched,
		filter:    filter,
		receiver:  receiver,
		maker:     decision.FromRecorder(co.PohRecorder),
		notifier:  co.BankNotifier,
		workers:   workers,
		committer: comm,

		voteWorker: vw,

		metrics: m,

		workCh:   make(chan *scheduler.ConsumeWork, numWorkers*2),
		resultCh: make(chan *scheduler.FinishedConsumeWork, numWorkers*2),

		stop: make(chan struct{}),
	}
}

// Run launches every thread role (spec §5) in its own goroutine and returns
// without waiting for them; the roles keep running until Stop is called.
// nonVoteCh, tpuVoteCh and gossipVoteCh are the three upstream packet
// channels (spec §6); ownership of each belongs to exactly one internal
// loop - the top-level Receiver reads only nonVoteCh, the Vote Worker reads
// only the other two.
func (s *Stage) Run(nonVoteCh, tpuVoteCh, gossipVoteCh <-chan packet.RawBatch) {
	wrap := panics.GoroutineWrapperFunc(log)

	wrap(func() { s.runReceiveLoop(nonVoteCh) })
	wrap(func() { s.runDecisionLoop() })
	wrap(func() { s.runResultLoop() })
	if s.metrics != nil {
		wrap(func() { s.runMetricsLoop() })
	}

	for _, w := range s.workers {
		w.RunWrapped(s.workCh, s.resultCh)
	}

	s.voteWorker.RunWrapped(tpuVoteCh, gossipVoteCh, s.stop)
}

// Stop closes the stop channel, which ends the receive, decision, metrics and
// vote-worker loops, and closes the worker channel, so blocked workers
// observe a clean shutdown (spec §5). The result loop is not ended by Stop:
// it keeps draining resultCh, which is never closed.
func (s *Stage) Stop() {
	close(s.stop)
	close(s.workCh)
}

func (s *Stage) runReceiveLoop(nonVoteCh <-chan packet.RawBatch) {
	var noVotes <-chan packet.RawBatch // the top-level Receiver never handles votes
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		s.receiver.ReceiveAndBuffer(nonVoteCh, noVotes, noVotes)
	}
}

func (s *Stage) runDecisionLoop() {
	ticker := time.NewTicker(decisionCheckPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			d := s.maker.Decide()
			if d.Kind != decision.Consume {
				continue
			}
			s.setCurrentBank(d.Bank)
			for _, work := range s.sched.Schedule(d.Bank.ID()) {
				select {
				case s.workCh <- work:
				case <-s.stop:
					return
				}
			}
		}
	}
}

func (s *Stage) runResultLoop() {
	for f := range s.resultCh {
		s.sched.Reconcile(f)

		anyCommitted := false
		for _, o := range f.Outcomes {
			if o.Kind == scheduler.OutcomeCommitted {
				anyCommitted = true
				break
			}
		}
		if !anyCommitted {
			continue
		}

		bank := s.getCurrentBank()
		if bank == nil {
			continue
		}
		timings, err := s.committer.Commit(bank, f)
		if err != nil {
			log.Errorf("commit failed: %s", err)
			continue
		}
		if s.metrics != nil {
			s.metrics.ObserveCommit(timings)
		}
	}
}

// runMetricsLoop scrapes every cumulative-counter collaborator on
// consumer.MetricsInterval and folds the delta into s.metrics, mirroring the
// worker's own accumulate-then-scrape split (spec §4.7).
func (s *Stage) runMetricsLoop() {
	ticker := time.NewTicker(consumer.MetricsInterval)
	defer ticker.Stop()

	var prevReceiver packet.Counters
	var prevWorker consumer.Stats
	var prevStarvationDrops uint64

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			curReceiver := s.receiver.Counters()
			s.metrics.ObserveReceiver(prevReceiver, curReceiver)
			prevReceiver = curReceiver

			var curWorker consumer.Stats
			for _, w := range s.workers {
				ws := w.Stats()
				curWorker.Attempted += ws.Attempted
				curWorker.Committed += ws.Committed
				curWorker.BankWaitSuccesses += ws.BankWaitSuccesses
				curWorker.BankWaitFailures += ws.BankWaitFailures
			}
			s.metrics.ObserveWorker(prevWorker, curWorker)
			prevWorker = curWorker

			curStarvationDrops := s.sched.StarvationDrops()
			if delta := curStarvationDrops - prevStarvationDrops; delta > 0 {
				s.metrics.StarvationDrops.Add(float64(delta))
			}
			prevStarvationDrops = curStarvationDrops
		}
	}
}

func (s *Stage) setCurrentBank(bank external.Bank) {
	s.bankMu.Lock()
	defer s.bankMu.Unlock()
	if s.currentBank == nil || s.currentBank.ID() != bank.ID() {
		s.tracker.Reset()
	}
	s.currentBank = bank
}

func (s *Stage) getCurrentBank() external.Bank {
	s.bankMu.RLock()
	defer s.bankMu.RUnlock()
	return s.currentBank
}

// StarvationDrops exposes the Scheduler's starvation-drop count.
func (s *Stage) StarvationDrops() uint64 { return s.sched.StarvationDrops() }
