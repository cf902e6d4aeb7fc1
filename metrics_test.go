package gorbac

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsCountFlows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.signup(t, "ada@example.com", "correct horse")
	if _, err := env.eng.Login(ctx, "ada@example.com", "correct horse"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.eng.Login(ctx, "ada@example.com", "wrong password"); err == nil {
		t.Fatal("expected failure")
	}

	snap := env.eng.Metrics()
	if snap.Counters[MetricSignupSuccess.Name()] != 1 {
		t.Fatalf("signup counter = %d", snap.Counters[MetricSignupSuccess.Name()])
	}
	if snap.Counters[MetricLoginSuccess.Name()] != 1 {
		t.Fatalf("login success counter = %d", snap.Counters[MetricLoginSuccess.Name()])
	}
	if snap.Counters[MetricLoginFailure.Name()] != 1 {
		t.Fatalf("login failure counter = %d", snap.Counters[MetricLoginFailure.Name()])
	}
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	env := newTestEnvConfig(t, cfg)

	env.signup(t, "ada@example.com", "correct horse")
	snap := env.eng.Metrics()
	for name, v := range snap.Counters {
		if v != 0 {
			t.Fatalf("counter %s = %d with metrics disabled", name, v)
		}
	}
}

func TestMetricRegistryConcurrentInc(t *testing.T) {
	m := newMetricRegistry(MetricsConfig{Enabled: true})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()
	if got := m.snapshot().Counters[MetricRefreshSuccess.Name()]; got != 8000 {
		t.Fatalf("counter = %d, want 8000", got)
	}
}

func TestLatencyHistogramBuckets(t *testing.T) {
	m := newMetricRegistry(MetricsConfig{Enabled: true, EnableLatencyHistogram: true})
	m.Observe(500 * time.Microsecond) // bucket 0
	m.Observe(3 * time.Millisecond)   // bucket 2 (<=5ms)
	m.Observe(time.Second)            // overflow

	snap := m.snapshot()
	if len(snap.AuthenticateLatency) != len(AuthenticateLatencyBounds)+1 {
		t.Fatalf("bucket count = %d", len(snap.AuthenticateLatency))
	}
	if snap.AuthenticateLatency[0] != 1 {
		t.Fatalf("bucket 0 = %d", snap.AuthenticateLatency[0])
	}
	if snap.AuthenticateLatency[2] != 1 {
		t.Fatalf("bucket 2 = %d", snap.AuthenticateLatency[2])
	}
	if snap.AuthenticateLatency[len(AuthenticateLatencyBounds)] != 1 {
		t.Fatalf("overflow bucket = %d", snap.AuthenticateLatency[len(AuthenticateLatencyBounds)])
	}
}

func TestHistogramNilWhenDisabled(t *testing.T) {
	m := newMetricRegistry(MetricsConfig{Enabled: true})
	m.Observe(time.Millisecond)
	if m.snapshot().AuthenticateLatency != nil {
		t.Fatal("histogram should be nil when disabled")
	}
}
