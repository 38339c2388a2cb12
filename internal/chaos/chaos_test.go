package chaos

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"kewkew/internal/events"
	"kewkew/internal/store"
)

func newStores(t *testing.T, n int) []*store.Memory {
	t.Helper()
	stores := make([]*store.Memory, n)
	for i := range stores {
		stores[i] = store.NewMemory(fmt.Sprintf("store-%d", i+1))
		if err := stores[i].Start(context.Background()); err != nil {
			t.Fatalf("failed to start store: %v", err)
		}
	}
	return stores
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Interval != 5*time.Second {
		t.Errorf("expected interval 5s, got %v", config.Interval)
	}
	if config.TargetCount != 1 {
		t.Errorf("expected target count 1, got %d", config.TargetCount)
	}
	if len(config.AttackTypes) != 3 {
		t.Errorf("expected 3 attack types, got %d", len(config.AttackTypes))
	}
}

func TestAttackTypeString(t *testing.T) {
	tests := []struct {
		attack   AttackType
		expected string
	}{
		{AttackKill, "kill"},
		{AttackSuspend, "suspend"},
		{AttackDelay, "delay"},
		{AttackType(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.attack.String(); got != tt.expected {
			t.Errorf("AttackType(%d).String() = %s, want %s", tt.attack, got, tt.expected)
		}
		if tt.expected == "unknown" {
			continue
		}
		if parsed, ok := ParseAttackType(tt.expected); !ok || parsed != tt.attack {
			t.Errorf("ParseAttackType(%q) = %v, %v", tt.expected, parsed, ok)
		}
	}

	if _, ok := ParseAttackType("flood"); ok {
		t.Error("expected unknown attack name to be rejected")
	}
}

func TestMonkeyStartStop(t *testing.T) {
	config := DefaultConfig()
	config.Interval = 100 * time.Millisecond

	monkey := New(newStores(t, 3), config)
	if monkey.IsRunning() {
		t.Error("expected monkey to not be running initially")
	}

	monkey.Start(context.Background())
	if !monkey.IsRunning() {
		t.Error("expected monkey to be running after Start")
	}

	time.Sleep(50 * time.Millisecond)
	monkey.Stop()

	if monkey.IsRunning() {
		t.Error("expected monkey to not be running after Stop")
	}
}

func TestAttackKillFailsWrites(t *testing.T) {
	stores := newStores(t, 1)
	config := DefaultConfig()
	config.AttackTypes = []AttackType{AttackKill}

	monkey := New(stores, config)
	monkey.Attack()

	if stores[0].Status() != store.StatusStopped {
		t.Fatalf("expected store to be stopped, got %v", stores[0].Status())
	}
	if err := stores[0].Upsert(context.Background(), "k", "v"); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
	if monkey.Faulted() != 1 {
		t.Errorf("expected 1 faulted store, got %d", monkey.Faulted())
	}

	// 障害中のストアは再度攻撃されない
	monkey.Attack()
	if monkey.AttackCount() != 1 {
		t.Errorf("expected 1 attack, got %d", monkey.AttackCount())
	}

	monkey.restoreAll()
	if stores[0].Status() != store.StatusRunning {
		t.Errorf("expected store to be running after restore, got %v", stores[0].Status())
	}
}

func TestAttackSuspendAutoRestore(t *testing.T) {
	stores := newStores(t, 3)
	config := DefaultConfig()
	config.Interval = 50 * time.Millisecond
	config.AttackTypes = []AttackType{AttackSuspend}
	config.SuspendTime = 100 * time.Millisecond

	bus := events.NewBus()
	sub := bus.Subscribe()
	defer bus.Close()

	monkey := New(stores, config)
	monkey.SetEventBus(bus)
	monkey.Start(context.Background())

	select {
	case ev := <-sub:
		if ev.Type != events.EventStoreFault || ev.Data.Fault != "suspend" {
			t.Errorf("expected suspend fault event, got %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no fault event received")
	}

	deadline := time.After(2 * time.Second)
	for restored := false; !restored; {
		select {
		case ev := <-sub:
			restored = ev.Type == events.EventStoreRestored
		case <-deadline:
			t.Fatal("no restored event received")
		}
	}

	monkey.Stop()

	for _, s := range stores {
		if s.Status() != store.StatusRunning {
			t.Errorf("expected %s to be running after Stop, got %v", s.ID(), s.Status())
		}
	}
	if monkey.Stats().Restored == 0 {
		t.Error("expected restored count to be recorded")
	}
}

func TestAttackDelay(t *testing.T) {
	stores := newStores(t, 1)
	config := DefaultConfig()
	config.AttackTypes = []AttackType{AttackDelay}
	config.DelayDuration = 50 * time.Millisecond

	monkey := New(stores, config)
	monkey.Attack()

	if stores[0].Delay() != config.DelayDuration {
		t.Errorf("expected delay %v, got %v", config.DelayDuration, stores[0].Delay())
	}

	stats := monkey.Stats()
	if stats.TotalAttacks != 1 || stats.ByType["delay"] != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	monkey.restoreAll()
	if stores[0].Delay() != 0 {
		t.Errorf("expected delay cleared after restore, got %v", stores[0].Delay())
	}
}

func TestMonkeyAttackCount(t *testing.T) {
	config := DefaultConfig()
	config.Interval = 20 * time.Millisecond
	config.AttackTypes = []AttackType{AttackDelay}
	config.DelayDuration = time.Millisecond
	config.SuspendTime = 10 * time.Millisecond

	monkey := New(newStores(t, 3), config)
	monkey.Start(context.Background())
	time.Sleep(150 * time.Millisecond)
	monkey.Stop()

	if monkey.AttackCount() == 0 {
		t.Error("expected at least one attack to be executed")
	}
}

func TestMonkeyNoTargets(t *testing.T) {
	config := DefaultConfig()
	config.Interval = 20 * time.Millisecond

	monkey := New(nil, config)
	monkey.Start(context.Background())
	time.Sleep(60 * time.Millisecond)
	monkey.Stop()

	if monkey.AttackCount() != 0 {
		t.Errorf("expected 0 attacks with no targets, got %d", monkey.AttackCount())
	}
}
