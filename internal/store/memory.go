package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"kewkew/internal/logger"
)

// Status はメモリストアの状態を表す
type Status int

const (
	StatusStopped Status = iota
	StatusRunning
	StatusSuspended
)

func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusRunning:
		return "running"
	case StatusSuspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// Memory はインメモリのキーバリューストア
type Memory struct {
	id     string
	status Status
	delay  time.Duration

	mu   sync.RWMutex
	data map[string]string
}

// NewMemory は停止状態のメモリストアを作成する
func NewMemory(id string) *Memory {
	return &Memory{
		id:     id,
		status: StatusStopped,
		data:   make(map[string]string),
	}
}

// ID はストアIDを返す
func (m *Memory) ID() string {
	return m.id
}

// Start はストアを起動する
func (m *Memory) Start(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == StatusRunning {
		return fmt.Errorf("store %s is already running", m.id)
	}
	m.status = StatusRunning

	logger.Info(m.id, "Store started")
	return nil
}

// Stop はストアを停止する。データは保持される
func (m *Memory) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == StatusStopped {
		return fmt.Errorf("store %s is already stopped", m.id)
	}
	m.status = StatusStopped

	logger.Info(m.id, "Store stopped")
	return nil
}

// Status は現在のステータスを返す
func (m *Memory) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Suspend はストアを一時停止する
func (m *Memory) Suspend() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusRunning {
		return fmt.Errorf("store %s is not running", m.id)
	}
	m.status = StatusSuspended

	logger.Info(m.id, "Store suspended")
	return nil
}

// Resume は一時停止中のストアを再開する
func (m *Memory) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusSuspended {
		return fmt.Errorf("store %s is not suspended", m.id)
	}
	m.status = StatusRunning

	logger.Info(m.id, "Store resumed")
	return nil
}

// SetDelay は各操作に加える遅延を設定する
func (m *Memory) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	if d > 0 {
		logger.Info(m.id, "Delay set to %v", d)
	} else {
		logger.Info(m.id, "Delay cleared")
	}
}

// Delay は現在の遅延設定を返す
func (m *Memory) Delay() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.delay
}

// applyDelay は遅延を適用する。ctx がキャンセルされたら打ち切る
func (m *Memory) applyDelay(ctx context.Context) error {
	d := m.Delay()
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) unavailable() error {
	return fmt.Errorf("%w: %s is %s", ErrUnavailable, m.id, m.status)
}

// Upsert はキーに値を設定する
func (m *Memory) Upsert(ctx context.Context, key, value string) error {
	if err := m.applyDelay(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status != StatusRunning {
		return m.unavailable()
	}
	m.data[key] = value
	return nil
}

// Get はキーに対応する値を取得する
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	if err := m.applyDelay(ctx); err != nil {
		return "", false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.status != StatusRunning {
		return "", false, m.unavailable()
	}
	value, ok := m.data[key]
	return value, ok, nil
}

// Count は保存されているキー数を返す。停止中でも数えられる
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data), nil
}

// Close はストアを停止する。停止済みでもエラーにしない
func (m *Memory) Close() error {
	if m.Status() == StatusStopped {
		return nil
	}
	return m.Stop()
}
