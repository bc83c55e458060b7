package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/devmarvs/schoolgate/apperr"
)

func TestMetricsBuckets(t *testing.T) {
	reg := NewWithBuckets([]time.Duration{50 * time.Millisecond, 10 * time.Millisecond})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return now }

	start := reg.Start()
	now = now.Add(20 * time.Millisecond)
	reg.End(start, 200, nil)

	snap := reg.Snapshot()
	if len(snap.Latency.Buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(snap.Latency.Buckets))
	}
	if snap.Latency.Buckets[0].UpperBound != 10*time.Millisecond {
		t.Fatalf("expected sorted buckets, got %v", snap.Latency.Buckets)
	}
	if snap.Latency.Buckets[0].Count != 0 || snap.Latency.Buckets[1].Count != 1 {
		t.Fatalf("unexpected bucket counts: %+v", snap.Latency.Buckets)
	}
	if snap.InFlight != 0 || snap.Requests != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
}

func TestMetricsFailuresByKind(t *testing.T) {
	reg := New()
	reg.End(reg.Start(), 0, apperr.New(apperr.KindTimeout, 0, "slow", nil))
	reg.End(reg.Start(), 503, apperr.New(apperr.KindServerRejected, 503, "down", nil))
	reg.End(reg.Start(), 503, apperr.New(apperr.KindServerRejected, 503, "down", nil))
	reg.End(reg.Start(), 0, errors.New("plain"))
	reg.End(reg.Start(), 200, nil)

	snap := reg.Snapshot()
	if snap.Errors != 4 {
		t.Fatalf("expected 4 errors, got %d", snap.Errors)
	}
	if snap.Failures[apperr.KindServerRejected] != 2 || snap.Failures[apperr.KindTimeout] != 1 {
		t.Fatalf("unexpected failures: %v", snap.Failures)
	}
	if snap.Failures["unknown"] != 1 {
		t.Fatalf("expected unknown failure counted")
	}
	if snap.Statuses[503] != 2 || snap.Statuses[200] != 1 {
		t.Fatalf("unexpected statuses: %v", snap.Statuses)
	}
}

func TestNilRegistryIsNoop(t *testing.T) {
	var reg *Registry
	reg.End(reg.Start(), 200, nil)
	if snap := reg.Snapshot(); snap.Requests != 0 {
		t.Fatalf("expected empty snapshot")
	}
}
