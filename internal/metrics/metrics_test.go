package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestNewMetrics(t *testing.T) {
	m := New()

	if m.Processed() != 0 {
		t.Errorf("expected 0 processed, got %d", m.Processed())
	}
	if m.Succeeded() != 0 {
		t.Errorf("expected 0 succeeded, got %d", m.Succeeded())
	}
	if m.P99Latency() != 0 {
		t.Errorf("expected 0 P99 without samples, got %v", m.P99Latency())
	}
}

func TestMetricsRecordSuccessAndFailure(t *testing.T) {
	m := New()

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)
	m.RecordFailure(30 * time.Millisecond)
	m.RecordPanic(40 * time.Millisecond)

	if m.Processed() != 4 {
		t.Errorf("expected 4 processed, got %d", m.Processed())
	}
	if m.Succeeded() != 2 {
		t.Errorf("expected 2 succeeded, got %d", m.Succeeded())
	}
	if m.Failed() != 2 {
		t.Errorf("expected 2 failed (panic counts as failure), got %d", m.Failed())
	}
	if m.Panicked() != 1 {
		t.Errorf("expected 1 panicked, got %d", m.Panicked())
	}
	if rate := m.FailureRate(); rate != 0.5 {
		t.Errorf("expected failure rate 0.5, got %f", rate)
	}
}

func TestMetricsEnqueueCounters(t *testing.T) {
	m := New()

	m.RecordEnqueued()
	m.RecordEnqueued()
	m.RecordRejected()

	if m.Enqueued() != 2 {
		t.Errorf("expected 2 enqueued, got %d", m.Enqueued())
	}
	if m.Rejected() != 1 {
		t.Errorf("expected 1 rejected, got %d", m.Rejected())
	}
}

func TestMetricsAverageLatency(t *testing.T) {
	m := New()

	m.RecordSuccess(10 * time.Millisecond)
	m.RecordSuccess(20 * time.Millisecond)
	m.RecordSuccess(30 * time.Millisecond)

	if avg := m.AverageLatency(); avg != 20*time.Millisecond {
		t.Errorf("expected avg latency 20ms, got %v", avg)
	}
}

func TestMetricsP99Latency(t *testing.T) {
	m := New()

	for i := 1; i <= 100; i++ {
		m.RecordSuccess(time.Duration(i) * time.Millisecond)
	}

	if p99 := m.P99Latency(); p99 != 100*time.Millisecond {
		t.Errorf("expected P99 100ms, got %v", p99)
	}
}

func TestMetricsSampleLimit(t *testing.T) {
	m := NewWithConfig(Config{MaxLatencySamples: 10})

	for i := 1; i <= 50; i++ {
		m.RecordSuccess(time.Duration(i) * time.Millisecond)
	}

	if p99 := m.P99Latency(); p99 != 10*time.Millisecond {
		t.Errorf("expected P99 over the first 10 samples (10ms), got %v", p99)
	}
	if m.Processed() != 50 {
		t.Errorf("expected 50 processed, got %d", m.Processed())
	}
}

func TestMetricsInFlight(t *testing.T) {
	m := New()

	m.BeginInFlight()
	m.BeginInFlight()
	m.BeginInFlight()
	m.EndInFlight()
	m.BeginInFlight()
	m.EndInFlight()
	m.EndInFlight()

	if m.InFlight() != 1 {
		t.Errorf("expected 1 in flight, got %d", m.InFlight())
	}
	if m.MaxInFlight() != 3 {
		t.Errorf("expected max in flight 3, got %d", m.MaxInFlight())
	}
}

func TestMetricsConcurrent(t *testing.T) {
	m := New()
	var wg sync.WaitGroup

	const goroutines = 10
	const perGoroutine = 100

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perGoroutine {
				m.BeginInFlight()
				m.RecordSuccess(time.Millisecond)
				m.EndInFlight()
			}
		}()
	}
	wg.Wait()

	if m.Processed() != goroutines*perGoroutine {
		t.Errorf("expected %d processed, got %d", goroutines*perGoroutine, m.Processed())
	}
	if m.InFlight() != 0 {
		t.Errorf("expected 0 in flight, got %d", m.InFlight())
	}
	if peak := m.MaxInFlight(); peak < 1 || peak > goroutines {
		t.Errorf("max in flight out of range: %d", peak)
	}
}

func TestMetricsResetAndSnapshot(t *testing.T) {
	m := New()

	m.RecordEnqueued()
	m.RecordSuccess(10 * time.Millisecond)
	m.RecordFailure(10 * time.Millisecond)

	snap := m.Snapshot()
	if snap.Enqueued != 1 || snap.Processed != 2 || snap.Succeeded != 1 || snap.Failed != 1 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap.Elapsed <= 0 {
		t.Error("expected positive elapsed time")
	}

	m.Reset()
	if m.P99Latency() != 0 {
		t.Error("expected latency samples cleared after reset")
	}
	if m.Processed() != 2 {
		t.Error("totals must survive a window reset")
	}
}
