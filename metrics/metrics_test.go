package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	io_prometheus_client "github.com/prometheus/client_model/go"
	"github.com/vivekjami/banking-stage/committer"
	"github.com/vivekjami/banking-stage/consumer"
	"github.com/vivekjami/banking-stage/packet"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m io_prometheus_client.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write failed: %s", err)
	}
	return m.GetCounter().GetValue()
}

func TestObserveReceiverRecordsDeltaNotTotal(t *testing.T) {
	m := New(prometheus.NewRegistry())

	prev := packet.Counters{PassedSigverify: 10, InvalidVote: 1}
	cur := packet.Counters{PassedSigverify: 25, InvalidVote: 3}
	m.ObserveReceiver(prev, cur)

	if got := counterValue(t, m.PassedSigverify); got != 15 {
		t.Fatalf("expected delta 15, got %v", got)
	}
	if got := counterValue(t, m.InvalidVote); got != 2 {
		t.Fatalf("expected delta 2, got %v", got)
	}
}

func TestObserveWorkerRecordsDelta(t *testing.T) {
	m := New(prometheus.NewRegistry())

	prev := consumer.Stats{Attempted: 5, Committed: 4}
	cur := consumer.Stats{Attempted: 9, Committed: 7}
	m.ObserveWorker(prev, cur)

	if got := counterValue(t, m.WorkerAttempted); got != 4 {
		t.Fatalf("expected delta 4, got %v", got)
	}
	if got := counterValue(t, m.WorkerCommitted); got != 3 {
		t.Fatalf("expected delta 3, got %v", got)
	}
}

func TestObserveCommitRecordsEachSubstep(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCommit(committer.Timings{
		Commit:         10 * time.Millisecond,
		VoteForward:    2 * time.Millisecond,
		FeeCacheUpdate: 1 * time.Millisecond,
		StatusEmit:     3 * time.Millisecond,
	})

	var hist io_prometheus_client.Metric
	if err := m.CommitDuration.Write(&hist); err != nil {
		t.Fatalf("Write failed: %s", err)
	}
	if hist.GetHistogram().GetSampleCount() != 1 {
		t.Fatalf("expected one observation, got %d", hist.GetHistogram().GetSampleCount())
	}
}

func TestIncStarvationDrops(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.IncStarvationDrops()
	m.IncStarvationDrops()

	if got := counterValue(t, m.StarvationDrops); got != 2 {
		t.Fatalf("expected 2 starvation drops recorded, got %v", got)
	}
}
