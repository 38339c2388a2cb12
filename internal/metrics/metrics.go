package metrics

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

const defaultMaxLatencySamples = 1000

// Metrics はワーカープールの処理メトリクスを収集する
type Metrics struct {
	enqueued  atomic.Uint64
	rejected  atomic.Uint64
	processed atomic.Uint64
	succeeded atomic.Uint64
	failed    atomic.Uint64
	panicked  atomic.Uint64
	latencyNs atomic.Uint64

	inFlight    atomic.Int64
	maxInFlight atomic.Int64

	mu                sync.RWMutex
	startTime         time.Time
	lastResetTime     time.Time
	windowProcessed   uint64
	latencies         []time.Duration
	maxLatencySamples int
}

// Config はメトリクスの設定
type Config struct {
	MaxLatencySamples int // P99算出用に保持するサンプル数
}

// New は新しいメトリクスを作成する
func New() *Metrics {
	return NewWithConfig(Config{MaxLatencySamples: defaultMaxLatencySamples})
}

// NewWithConfig は設定を指定してメトリクスを作成する
func NewWithConfig(config Config) *Metrics {
	samples := config.MaxLatencySamples
	if samples <= 0 {
		samples = defaultMaxLatencySamples
	}
	now := time.Now()
	return &Metrics{
		startTime:         now,
		lastResetTime:     now,
		latencies:         make([]time.Duration, 0, samples),
		maxLatencySamples: samples,
	}
}

// RecordEnqueued はキューへの投入を記録する
func (m *Metrics) RecordEnqueued() {
	m.enqueued.Add(1)
}

// RecordRejected は QueueFull による投入失敗を記録する
func (m *Metrics) RecordRejected() {
	m.rejected.Add(1)
}

// BeginInFlight はハンドラ呼び出しの開始を記録し、最大同時実行数を更新する
func (m *Metrics) BeginInFlight() {
	n := m.inFlight.Add(1)
	for {
		peak := m.maxInFlight.Load()
		if n <= peak || m.maxInFlight.CompareAndSwap(peak, n) {
			return
		}
	}
}

// EndInFlight はハンドラ呼び出しの終了を記録する
func (m *Metrics) EndInFlight() {
	m.inFlight.Add(-1)
}

func (m *Metrics) record(latency time.Duration, sample bool) {
	m.processed.Add(1)
	m.latencyNs.Add(uint64(latency.Nanoseconds()))

	m.mu.Lock()
	m.windowProcessed++
	if sample && len(m.latencies) < m.maxLatencySamples {
		m.latencies = append(m.latencies, latency)
	}
	m.mu.Unlock()
}

// RecordSuccess は成功したアイテム処理を記録する
func (m *Metrics) RecordSuccess(latency time.Duration) {
	m.succeeded.Add(1)
	m.record(latency, true)
}

// RecordFailure は失敗したアイテム処理を記録する
func (m *Metrics) RecordFailure(latency time.Duration) {
	m.failed.Add(1)
	m.record(latency, false)
}

// RecordPanic はハンドラ内の panic を記録する（失敗としても数える）
func (m *Metrics) RecordPanic(latency time.Duration) {
	m.panicked.Add(1)
	m.RecordFailure(latency)
}

func (m *Metrics) Enqueued() uint64  { return m.enqueued.Load() }
func (m *Metrics) Rejected() uint64  { return m.rejected.Load() }
func (m *Metrics) Processed() uint64 { return m.processed.Load() }
func (m *Metrics) Succeeded() uint64 { return m.succeeded.Load() }
func (m *Metrics) Failed() uint64    { return m.failed.Load() }
func (m *Metrics) Panicked() uint64  { return m.panicked.Load() }

// InFlight は現在実行中のハンドラ数を返す
func (m *Metrics) InFlight() int64 {
	return m.inFlight.Load()
}

// MaxInFlight は観測された最大同時実行数を返す
func (m *Metrics) MaxInFlight() int64 {
	return m.maxInFlight.Load()
}

// ItemsPerSecond は直近ウィンドウの処理レートを返す
func (m *Metrics) ItemsPerSecond() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.lastResetTime).Seconds()
	if elapsed == 0 {
		return 0
	}
	return float64(m.windowProcessed) / elapsed
}

// AverageLatency は平均処理時間を返す
func (m *Metrics) AverageLatency() time.Duration {
	total := m.processed.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(m.latencyNs.Load() / total)
}

// P99Latency は成功したアイテムのP99処理時間を返す（サンプルベース）
func (m *Metrics) P99Latency() time.Duration {
	m.mu.RLock()
	sorted := slices.Clone(m.latencies)
	m.mu.RUnlock()

	if len(sorted) == 0 {
		return 0
	}
	slices.Sort(sorted)

	idx := int(float64(len(sorted)) * 0.99)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// FailureRate は失敗率を返す（0.0〜1.0）
func (m *Metrics) FailureRate() float64 {
	total := m.processed.Load()
	if total == 0 {
		return 0
	}
	return float64(m.failed.Load()) / float64(total)
}

// Reset はウィンドウメトリクスをリセットする
func (m *Metrics) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.windowProcessed = 0
	m.lastResetTime = time.Now()
	m.latencies = m.latencies[:0]
}

// Snapshot はメトリクスのスナップショット
type Snapshot struct {
	Enqueued       uint64        `json:"enqueued"`
	Rejected       uint64        `json:"rejected"`
	Processed      uint64        `json:"processed"`
	Succeeded      uint64        `json:"succeeded"`
	Failed         uint64        `json:"failed"`
	Panicked       uint64        `json:"panicked"`
	InFlight       int64         `json:"in_flight"`
	MaxInFlight    int64         `json:"max_in_flight"`
	ItemsPerSecond float64       `json:"items_per_second"`
	AverageLatency time.Duration `json:"average_latency"`
	P99Latency     time.Duration `json:"p99_latency"`
	FailureRate    float64       `json:"failure_rate"`
	Elapsed        time.Duration `json:"elapsed"`
}

// Snapshot は現在のメトリクスのスナップショットを返す
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Enqueued:       m.Enqueued(),
		Rejected:       m.Rejected(),
		Processed:      m.Processed(),
		Succeeded:      m.Succeeded(),
		Failed:         m.Failed(),
		Panicked:       m.Panicked(),
		InFlight:       m.InFlight(),
		MaxInFlight:    m.MaxInFlight(),
		ItemsPerSecond: m.ItemsPerSecond(),
		AverageLatency: m.AverageLatency(),
		P99Latency:     m.P99Latency(),
		FailureRate:    m.FailureRate(),
		Elapsed:        time.Since(m.startTime),
	}
}
