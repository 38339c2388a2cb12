package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestNewMemory(t *testing.T) {
	m := NewMemory("test-store-1")

	if m.ID() != "test-store-1" {
		t.Errorf("expected ID 'test-store-1', got '%s'", m.ID())
	}
	if m.Status() != StatusStopped {
		t.Errorf("expected status Stopped, got %v", m.Status())
	}
}

func TestMemoryStartStop(t *testing.T) {
	m := NewMemory("test-store-1")
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Errorf("failed to start store: %v", err)
	}
	if m.Status() != StatusRunning {
		t.Errorf("expected status Running, got %v", m.Status())
	}

	// Double start should fail
	if err := m.Start(ctx); err == nil {
		t.Error("expected error when starting already running store")
	}

	if err := m.Stop(); err != nil {
		t.Errorf("failed to stop store: %v", err)
	}
	if err := m.Stop(); err == nil {
		t.Error("expected error when stopping already stopped store")
	}

	// Close on a stopped store is a no-op
	if err := m.Close(); err != nil {
		t.Errorf("unexpected error from Close: %v", err)
	}
}

func TestMemoryUpsertGet(t *testing.T) {
	m := NewMemory("test-store-1")
	ctx := context.Background()

	if err := m.Upsert(ctx, "key1", "value1"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable before start, got %v", err)
	}

	_ = m.Start(ctx)

	if err := m.Upsert(ctx, "key1", "value1"); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}
	if err := m.Upsert(ctx, "key1", "value2"); err != nil {
		t.Fatalf("failed to upsert: %v", err)
	}

	value, ok, err := m.Get(ctx, "key1")
	if err != nil || !ok {
		t.Fatalf("expected key1 to exist, ok=%v err=%v", ok, err)
	}
	if value != "value2" {
		t.Errorf("expected 'value2', got '%s'", value)
	}

	if _, ok, _ := m.Get(ctx, "missing"); ok {
		t.Error("expected missing key to be absent")
	}

	n, _ := m.Count(ctx)
	if n != 1 {
		t.Errorf("expected count 1, got %d", n)
	}
}

func TestMemorySuspendResume(t *testing.T) {
	m := NewMemory("test-store-1")
	ctx := context.Background()

	if err := m.Suspend(); err == nil {
		t.Error("expected error when suspending stopped store")
	}

	_ = m.Start(ctx)
	_ = m.Upsert(ctx, "key1", "value1")

	if err := m.Suspend(); err != nil {
		t.Fatalf("failed to suspend: %v", err)
	}
	if m.Status() != StatusSuspended {
		t.Errorf("expected status Suspended, got %v", m.Status())
	}

	if err := m.Upsert(ctx, "key2", "value2"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable while suspended, got %v", err)
	}
	if _, _, err := m.Get(ctx, "key1"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable while suspended, got %v", err)
	}

	// Count still reports stored data
	if n, _ := m.Count(ctx); n != 1 {
		t.Errorf("expected count 1 while suspended, got %d", n)
	}

	if err := m.Resume(); err != nil {
		t.Fatalf("failed to resume: %v", err)
	}
	if err := m.Resume(); err == nil {
		t.Error("expected error when resuming running store")
	}

	if err := m.Upsert(ctx, "key2", "value2"); err != nil {
		t.Errorf("expected upsert to succeed after resume: %v", err)
	}
}

func TestMemoryDelay(t *testing.T) {
	m := NewMemory("test-store-1")
	ctx := context.Background()
	_ = m.Start(ctx)

	m.SetDelay(30 * time.Millisecond)
	if m.Delay() != 30*time.Millisecond {
		t.Errorf("expected delay 30ms, got %v", m.Delay())
	}

	start := time.Now()
	_ = m.Upsert(ctx, "key", "value")
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("expected upsert to take at least 30ms, took %v", elapsed)
	}

	short, cancel := context.WithTimeout(ctx, 5*time.Millisecond)
	defer cancel()
	m.SetDelay(time.Second)
	if err := m.Upsert(short, "key", "value"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	m.SetDelay(0)
	if m.Delay() != 0 {
		t.Errorf("expected delay cleared, got %v", m.Delay())
	}
}

func TestMemoryConcurrentUpsert(t *testing.T) {
	m := NewMemory("test-store-1")
	ctx := context.Background()
	_ = m.Start(ctx)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range 100 {
				key := fmt.Sprintf("key-%d-%d", id, j)
				if err := m.Upsert(ctx, key, "value"); err != nil {
					t.Errorf("upsert failed: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	if n, _ := m.Count(ctx); n != 1000 {
		t.Errorf("expected 1000 keys, got %d", n)
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status   Status
		expected string
	}{
		{StatusStopped, "stopped"},
		{StatusRunning, "running"},
		{StatusSuspended, "suspended"},
		{Status(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("Status(%d).String() = %s, expected %s", tt.status, got, tt.expected)
		}
	}
}
