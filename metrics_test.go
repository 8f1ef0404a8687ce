package authcore

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsIgnoredWhenDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true})
	m.Inc(MetricLoginSuccess)
	m.Observe(MetricVerifyLatency, time.Millisecond)

	if m.Value(MetricLoginSuccess) != 0 {
		t.Fatalf("disabled metrics counted")
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled snapshot not empty: %+v", snap)
	}
	if m.LatencyEnabled() {
		t.Fatalf("latency enabled without metrics")
	}
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLogout)
	m.Observe(MetricVerifyLatency, time.Second)
	if m.Enabled() || m.Value(MetricLogout) != 0 {
		t.Fatalf("nil metrics must be inert")
	}
}

func TestMetricsCountersConcurrent(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers, each = 16, 2500
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			id := MetricLoginFailure
			if w%2 == 0 {
				id = MetricSessionRejected
			}
			for i := 0; i < each; i++ {
				m.Inc(id)
			}
		}(w)
	}
	wg.Wait()

	for _, id := range []MetricID{MetricLoginFailure, MetricSessionRejected} {
		if got, want := m.Value(id), uint64(workers/2*each); got != want {
			t.Fatalf("metric %d: got %d want %d", id, got, want)
		}
	}
}

func TestVerifyLatencyBuckets(t *testing.T) {
	cases := []struct {
		d      time.Duration
		bucket int
	}{
		{0, 0},
		{5 * time.Millisecond, 0},
		{6 * time.Millisecond, 1},
		{25 * time.Millisecond, 2},
		{26 * time.Millisecond, 3},
		{100 * time.Millisecond, 4},
		{249 * time.Millisecond, 5},
		{500 * time.Millisecond, 6},
		{3 * time.Second, 7},
	}
	for _, tc := range cases {
		if got := bucketIndex(tc.d); got != tc.bucket {
			t.Fatalf("bucketIndex(%s) = %d, want %d", tc.d, got, tc.bucket)
		}
	}

	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	for _, tc := range cases {
		m.Observe(MetricVerifyLatency, tc.d)
	}
	// Only the verification histogram exists.
	m.Observe(MetricLogout, time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricVerifyLatency]
	want := []uint64{2, 1, 1, 1, 1, 1, 1, 1}
	if len(buckets) != len(want) {
		t.Fatalf("got %d buckets", len(buckets))
	}
	for i := range want {
		if buckets[i] != want[i] {
			t.Fatalf("bucket %d: got %d want %d", i, buckets[i], want[i])
		}
	}
}

func TestMetricsSnapshotCoversEveryCounter(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricPendingReplay)
	m.Inc(metricIDCount)

	snap := m.Snapshot()
	if len(snap.Counters) != int(metricIDCount) {
		t.Fatalf("got %d counters, want %d", len(snap.Counters), metricIDCount)
	}
	if snap.Counters[MetricPendingReplay] != 1 {
		t.Fatalf("pending replay = %d", snap.Counters[MetricPendingReplay])
	}
	if _, ok := snap.Histograms[MetricVerifyLatency]; ok {
		t.Fatalf("histogram present without latency enabled")
	}
}
