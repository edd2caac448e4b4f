package hubauth

import (
	"sync"
	"testing"
	"time"

	"github.com/wellbuilt/hubauth/entitlement"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}

func TestMetricsNilIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLogout)
	m.Observe(MetricDirectoryLatency, time.Second)
	if m.Value(MetricLogout) != 0 || m.Enabled() {
		t.Fatal("expected nil metrics to record nothing")
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 16
	const perG = 2000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricSessionKeptOffline)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricSessionKeptOffline); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsDirectoryLatencyBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		20 * time.Millisecond,
		80 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		900 * time.Millisecond,
		2 * time.Second,
		4 * time.Second,
		10 * time.Second,
	}
	for _, d := range observations {
		m.Observe(MetricDirectoryLatency, d)
	}
	// Counters are not histograms.
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricDirectoryLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if _, ok := snap.Counters[MetricDirectoryLatency]; ok {
		t.Fatal("latency must not appear among counters")
	}
}

func TestMetricsHistogramsOffByDefault(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricDirectoryLatency, time.Millisecond)
	if _, ok := m.Snapshot().Histograms[MetricDirectoryLatency]; ok {
		t.Fatal("expected no histogram without EnableLatencyHistograms")
	}
}

func TestMetricsObserveLookup(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.observeLookup(entitlement.OutcomeCacheHit)
	m.observeLookup(entitlement.OutcomeCacheHit)
	m.observeLookup(entitlement.OutcomeFetched)
	m.observeLookup(entitlement.OutcomeFallback)
	m.observeLookup(entitlement.OutcomeUnavailable)

	snap := m.Snapshot()
	want := map[MetricID]uint64{
		MetricEntitlementCacheHit:    2,
		MetricEntitlementFetched:     1,
		MetricEntitlementFallback:    1,
		MetricEntitlementUnavailable: 1,
	}
	for id, n := range want {
		if snap.Counters[id] != n {
			t.Fatalf("metric %d: expected %d, got %d", id, n, snap.Counters[id])
		}
	}
}

func TestEngineCountsRegistrationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := t.Context()

	if err := env.engine.SubmitRegistration(ctx, RegistrationInput{DisplayName: "J Smith", Passcode: "abcd"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	env.clearPending()
	env.approve("abcd", map[string]any{"displayName": "J Smith"})
	if _, err := env.engine.CompleteRegistration(ctx); err != nil {
		t.Fatalf("complete: %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	for _, id := range []MetricID{MetricRegistrationSubmitted, MetricRegistrationApproved, MetricSessionCreated} {
		if snap.Counters[id] != 1 {
			t.Fatalf("metric %d: expected 1, got %d", id, snap.Counters[id])
		}
	}
}
