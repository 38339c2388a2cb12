package chaos

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"kewkew/internal/events"
	"kewkew/internal/logger"
	"kewkew/internal/store"
)

// AttackType は障害の種類を表す
type AttackType int

const (
	AttackKill AttackType = iota
	AttackSuspend
	AttackDelay
)

func (a AttackType) String() string {
	switch a {
	case AttackKill:
		return "kill"
	case AttackSuspend:
		return "suspend"
	case AttackDelay:
		return "delay"
	default:
		return "unknown"
	}
}

// ParseAttackType は名前から AttackType を返す
func ParseAttackType(s string) (AttackType, bool) {
	for _, a := range []AttackType{AttackKill, AttackSuspend, AttackDelay} {
		if a.String() == s {
			return a, true
		}
	}
	return 0, false
}

// Config はMonkeyの設定
type Config struct {
	Interval      time.Duration // 攻撃間隔
	TargetCount   int           // 同時攻撃対象数
	AttackTypes   []AttackType  // 有効な攻撃タイプ
	DelayDuration time.Duration // Delay攻撃時の遅延時間
	SuspendTime   time.Duration // 障害の継続時間（0でStopまで継続）
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Interval:      5 * time.Second,
		TargetCount:   1,
		AttackTypes:   []AttackType{AttackKill, AttackSuspend, AttackDelay},
		DelayDuration: 100 * time.Millisecond,
		SuspendTime:   3 * time.Second,
	}
}

// Stats は障害注入の統計情報
type Stats struct {
	TotalAttacks uint64            `json:"total_attacks"`
	ByType       map[string]uint64 `json:"attacks_by_type"`
	Restored     uint64            `json:"restored"`
}

// fault は解除待ちの障害
type fault struct {
	target *store.Memory
	attack AttackType
	at     time.Time
}

// Monkey はストアへの障害注入を実行する
type Monkey struct {
	config   Config
	targets  []*store.Memory
	eventBus *events.Bus

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu           sync.RWMutex
	attackCount  uint64
	restored     uint64
	attackByType map[AttackType]uint64
	lastAttack   time.Time
	faults       map[string]fault
}

// New は新しいMonkeyを作成する
func New(targets []*store.Memory, config Config) *Monkey {
	return &Monkey{
		config:       config,
		targets:      targets,
		faults:       make(map[string]fault),
		attackByType: make(map[AttackType]uint64),
	}
}

// SetEventBus はイベントバスを設定する
func (m *Monkey) SetEventBus(bus *events.Bus) {
	m.eventBus = bus
}

func (m *Monkey) publishEvent(event events.Event) {
	if m.eventBus != nil {
		m.eventBus.Publish(event)
	}
}

// Start は障害注入を開始する
func (m *Monkey) Start(ctx context.Context) {
	if m.running.Swap(true) {
		return
	}

	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.attackLoop()

	if m.config.SuspendTime > 0 {
		m.wg.Add(1)
		go m.restoreLoop()
	}

	logger.Info("chaos", "Monkey started (interval: %v, targets: %d)",
		m.config.Interval, m.config.TargetCount)
}

// Stop は障害注入を停止し、残っている障害を解除する
func (m *Monkey) Stop() {
	if !m.running.Swap(false) {
		return
	}

	m.cancel()
	m.wg.Wait()
	m.restoreAll()

	logger.Info("chaos", "Monkey stopped (total attacks: %d)", m.AttackCount())
}

func (m *Monkey) attackLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.attack()
		}
	}
}

// restoreLoop は継続時間が経過した障害を解除する
func (m *Monkey) restoreLoop() {
	defer m.wg.Done()

	interval := min(m.config.SuspendTime/2, 500*time.Millisecond)
	if interval <= 0 {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.checkAndRestore()
		}
	}
}

// Attack は1回分の攻撃を即座に実行する
func (m *Monkey) Attack() {
	m.attack()
}

func (m *Monkey) attack() {
	targets := m.selectTargets()
	if len(targets) == 0 {
		return
	}

	attackType := m.selectAttackType()
	for _, s := range targets {
		m.executeAttack(s, attackType)
	}

	m.mu.Lock()
	m.attackCount++
	m.lastAttack = time.Now()
	m.mu.Unlock()
}

// selectTargets は稼働中で障害のないストアから攻撃対象を選ぶ
func (m *Monkey) selectTargets() []*store.Memory {
	m.mu.RLock()
	running := make([]*store.Memory, 0, len(m.targets))
	for _, s := range m.targets {
		if _, faulted := m.faults[s.ID()]; faulted {
			continue
		}
		if s.Status() == store.StatusRunning {
			running = append(running, s)
		}
	}
	m.mu.RUnlock()

	if len(running) == 0 {
		return nil
	}

	count := min(max(m.config.TargetCount, 1), len(running))
	rand.Shuffle(len(running), func(i, j int) {
		running[i], running[j] = running[j], running[i]
	})
	return running[:count]
}

func (m *Monkey) selectAttackType() AttackType {
	if len(m.config.AttackTypes) == 0 {
		return AttackKill
	}
	return m.config.AttackTypes[rand.Intn(len(m.config.AttackTypes))]
}

func (m *Monkey) executeAttack(s *store.Memory, attackType AttackType) {
	var err error
	switch attackType {
	case AttackKill:
		err = s.Stop()
	case AttackSuspend:
		err = s.Suspend()
	case AttackDelay:
		s.SetDelay(m.config.DelayDuration)
	}
	if err != nil {
		logger.Warn("chaos", "failed to %s store %s: %v", attackType, s.ID(), err)
		return
	}

	m.mu.Lock()
	m.faults[s.ID()] = fault{target: s, attack: attackType, at: time.Now()}
	m.attackByType[attackType]++
	m.mu.Unlock()

	var delay time.Duration
	if attackType == AttackDelay {
		delay = m.config.DelayDuration
		logger.Warn("chaos", "injected %v delay to store %s", delay, s.ID())
	} else {
		logger.Warn("chaos", "%s store %s", attackType, s.ID())
	}
	m.publishEvent(events.NewStoreFaultEvent(s.ID(), attackType.String(), delay))
}

// restore は障害を解除する
func (m *Monkey) restore(f fault) bool {
	var err error
	switch f.attack {
	case AttackKill:
		err = f.target.Start(context.Background())
	case AttackSuspend:
		err = f.target.Resume()
	case AttackDelay:
		f.target.SetDelay(0)
	}
	if err != nil {
		logger.Warn("chaos", "failed to restore store %s: %v", f.target.ID(), err)
		return false
	}
	m.restored++
	m.publishEvent(events.NewStoreRestoredEvent(f.target.ID()))
	return true
}

func (m *Monkey) checkAndRestore() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for id, f := range m.faults {
		if now.Sub(f.at) >= m.config.SuspendTime {
			if m.restore(f) {
				logger.Info("chaos", "auto-restored store %s after %s", id, f.attack)
			}
			delete(m.faults, id)
		}
	}
}

func (m *Monkey) restoreAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, f := range m.faults {
		if m.restore(f) {
			logger.Info("chaos", "restored store %s on shutdown", id)
		}
	}
	m.faults = make(map[string]fault)
}

// IsRunning は実行中かどうかを返す
func (m *Monkey) IsRunning() bool {
	return m.running.Load()
}

// AttackCount は攻撃回数を返す
func (m *Monkey) AttackCount() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attackCount
}

// Faulted は障害中のストア数を返す
func (m *Monkey) Faulted() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.faults)
}

// Stats は攻撃統計を返す
func (m *Monkey) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byType := make(map[string]uint64)
	for t, count := range m.attackByType {
		byType[t.String()] = count
	}

	return Stats{
		TotalAttacks: m.attackCount,
		ByType:       byType,
		Restored:     m.restored,
	}
}
