// Package metrics wires the banking stage's counters and phase timings
// (spec §4.2, §4.7, §4.8 telemetry) into Prometheus collectors. The core
// itself never imports this package's callers' transport - scraping an
// HTTP endpoint is process bootstrap, out of scope (spec §1).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/vivekjami/banking-stage/committer"
	"github.com/vivekjami/banking-stage/consumer"
	"github.com/vivekjami/banking-stage/packet"
)

// Metrics bundles every collector the banking stage registers.
type Metrics struct {
	PassedSigverify      prometheus.Counter
	FailedSanitization   prometheus.Counter
	FailedPrioritization prometheus.Counter
	InvalidVote          prometheus.Counter
	ExcessivePrecompile  prometheus.Counter
	InsufficientCompute  prometheus.Counter

	WorkerAttempted prometheus.Counter
	WorkerCommitted prometheus.Counter
	BankWaitSuccess prometheus.Counter
	BankWaitFailure prometheus.Counter

	StarvationDrops prometheus.Counter

	CommitDuration      prometheus.Histogram
	VoteForwardDuration prometheus.Histogram
	FeeCacheDuration    prometheus.Histogram
	StatusEmitDuration  prometheus.Histogram
}

// New registers every collector against reg and returns the bundle.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		PassedSigverify:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "banking_stage", Subsystem: "receiver", Name: "passed_sigverify_total"}),
		FailedSanitization:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "banking_stage", Subsystem: "receiver", Name: "failed_sanitization_total"}),
		FailedPrioritization: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "banking_stage", Subsystem: "receiver", Name: "failed_prioritization_total"}),
		InvalidVote:          prometheus.NewCounter(prometheus.CounterOpts{Namespace: "banking_stage", Subsystem: "receiver", Name: "invalid_vote_total"}),
		ExcessivePrecompile:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "banking_stage", Subsystem: "receiver", Name: "excessive_precompile_total"}),
		InsufficientCompute:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "banking_stage", Subsystem: "receiver", Name: "insufficient_compute_limit_total"}),

		WorkerAttempted: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "banking_stage", Subsystem: "worker", Name: "attempted_total"}),
		WorkerCommitted: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "banking_stage", Subsystem: "worker", Name: "committed_total"}),
		BankWaitSuccess: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "banking_stage", Subsystem: "worker", Name: "bank_wait_success_total"}),
		BankWaitFailure: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "banking_stage", Subsystem: "worker", Name: "bank_wait_failure_total"}),

		StarvationDrops: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "banking_stage", Subsystem: "scheduler", Name: "starvation_drops_total"}),

		CommitDuration:      prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "banking_stage", Subsystem: "committer", Name: "commit_duration_seconds"}),
		VoteForwardDuration: prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "banking_stage", Subsystem: "committer", Name: "vote_forward_duration_seconds"}),
		FeeCacheDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "banking_stage", Subsystem: "committer", Name: "fee_cache_duration_seconds"}),
		StatusEmitDuration:  prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "banking_stage", Subsystem: "committer", Name: "status_emit_duration_seconds"}),
	}

	reg.MustRegister(
		m.PassedSigverify, m.FailedSanitization, m.FailedPrioritization,
		m.InvalidVote, m.ExcessivePrecompile, m.InsufficientCompute,
		m.WorkerAttempted, m.WorkerCommitted, m.BankWaitSuccess, m.BankWaitFailure,
		m.StarvationDrops,
		m.CommitDuration, m.VoteForwardDuration, m.FeeCacheDuration, m.StatusEmitDuration,
	)

	return m
}

// ObserveReceiver folds a packet.Counters snapshot into the receiver
// collectors. Counters are cumulative, so it records the delta since prev.
func (m *Metrics) ObserveReceiver(prev, cur packet.Counters) {
	m.PassedSigverify.Add(float64(cur.PassedSigverify - prev.PassedSigverify))
	m.FailedSanitization.Add(float64(cur.FailedSanitization - prev.FailedSanitization))
	m.FailedPrioritization.Add(float64(cur.FailedPrioritization - prev.FailedPrioritization))
	m.InvalidVote.Add(float64(cur.InvalidVote - prev.InvalidVote))
	m.ExcessivePrecompile.Add(float64(cur.ExcessivePrecompile - prev.ExcessivePrecompile))
	m.InsufficientCompute.Add(float64(cur.InsufficientComputeLimit - prev.InsufficientComputeLimit))
}

// ObserveWorker folds a consumer.Stats snapshot into the worker collectors.
func (m *Metrics) ObserveWorker(prev, cur consumer.Stats) {
	m.WorkerAttempted.Add(float64(cur.Attempted - prev.Attempted))
	m.WorkerCommitted.Add(float64(cur.Committed - prev.Committed))
	m.BankWaitSuccess.Add(float64(cur.BankWaitSuccesses - prev.BankWaitSuccesses))
	m.BankWaitFailure.Add(float64(cur.BankWaitFailures - prev.BankWaitFailures))
}

// ObserveCommit records one committer.Commit call's per-substep timings.
func (m *Metrics) ObserveCommit(t committer.Timings) {
	m.CommitDuration.Observe(t.Commit.Seconds())
	m.VoteForwardDuration.Observe(t.VoteForward.Seconds())
	m.FeeCacheDuration.Observe(t.FeeCacheUpdate.Seconds())
	m.StatusEmitDuration.Observe(t.StatusEmit.Seconds())
}

// IncStarvationDrops records one scheduler starvation drop.
func (m *Metrics) IncStarvationDrops() {
	m.StarvationDrops.Inc()
}
