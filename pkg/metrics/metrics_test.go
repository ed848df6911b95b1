package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveSequence(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveSequence(10, 49)
	m.ObserveSequence(0, 4)

	if got := testutil.ToFloat64(m.SequencesBuiltTotal); got != 1 {
		t.Errorf("sequences built = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.PostingsCompressed); got != 10 {
		t.Errorf("postings compressed = %v, want 10", got)
	}
}

func TestObserveFlush(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveFlush(nil)
	m.ObserveFlush(errors.New("disk full"))
	m.ObserveFlush(nil)

	if got := testutil.ToFloat64(m.IndexFlushesTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("successful flushes = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.IndexFlushesTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("failed flushes = %v, want 1", got)
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	m.ObserveSequence(5, 20)
	m.ObserveFlush(nil)
}
