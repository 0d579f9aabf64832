package shopAuth

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("disabled metrics must snapshot empty, got %d counters", len(snap.Counters))
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRefreshSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}
	for _, d := range observations {
		m.Observe(MetricLoginLatency, d)
	}

	buckets := m.Snapshot().Histograms[MetricLoginLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestMetricsObserveIgnoresCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("counter ids must not carry a histogram")
	}
	if _, ok := snap.Counters[MetricLoginLatency]; ok {
		t.Fatal("latency ids must not appear as counters")
	}
}

func TestEngineCountsFlowOutcomes(t *testing.T) {
	env := newTestEnv(t)
	env.registerVerified(t, "a@x.com", "alice")
	login := env.login(t, "a@x.com")
	_, _ = env.engine.Login(context.Background(), "a@x.com", "Wrong-password-1")
	if _, err := env.engine.ValidateAccess(context.Background(), login.AccessToken); err != nil {
		t.Fatalf("ValidateAccess failed: %v", err)
	}

	snap := env.engine.MetricsSnapshot()
	for id, want := range map[MetricID]uint64{
		MetricRegisterSuccess:          1,
		MetricEmailVerificationRequest: 1,
		MetricEmailVerificationSuccess: 1,
		MetricLoginSuccess:             1,
		MetricLoginFailure:             1,
		MetricSessionCreated:           1,
	} {
		if got := snap.Counters[id]; got != want {
			t.Fatalf("metric %d = %d, want %d", id, got, want)
		}
	}

	var validations uint64
	for _, n := range snap.Histograms[MetricValidateLatency] {
		validations += n
	}
	if validations != 1 {
		t.Fatalf("expected 1 validate latency sample, got %d", validations)
	}
}
