package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"kewkew/internal/chaos"
	"kewkew/internal/deadletter"
	"kewkew/internal/events"
	"kewkew/internal/handler"
	"kewkew/internal/logger"
	"kewkew/internal/producer"
	"kewkew/internal/store"
	"kewkew/internal/worker"
)

// ハンドラ名
const (
	HandlerUpsert = "upsert"
	HandlerPrint  = "print"
)

// ErrChaosNeedsMemoryStore is returned when fault injection is enabled for a
// store that cannot be faulted.
var ErrChaosNeedsMemoryStore = errors.New("chaos injection requires the memory store")

// Config はシナリオの設定
type Config struct {
	Name        string // シナリオ名
	Description string // 説明

	// プール設定
	Workers      int           // ワーカー数
	Capacity     int           // キュー容量（0で無制限）
	Drain        bool          // Finish でキューが空になるまで待つ
	DrainTimeout time.Duration // ドレインの上限時間（0で無制限）

	// 生成設定
	Items       uint64        // 生成数（0で Duration まで）
	Duration    time.Duration // 生成時間の上限（0で無制限）
	Rate        float64       // 1秒あたりの生成数（0で無制限）
	KeyRange    int           // キーの範囲
	ValueSize   int           // 値のサイズ（バイト）
	NonBlocking bool          // AddNow で投入する

	// ハンドラ設定
	Handler        string // upsert | print
	StoreDriver    string // memory | sqlite
	StorePath      string // sqlite のパス（空でインメモリ）
	DeadLetterPath string // 失敗アイテムの出力先（空で破棄）

	// カオス設定
	EnableChaos   bool               // 障害注入を有効化
	ChaosInterval time.Duration      // 攻撃間隔
	ChaosTargets  int                // 同時攻撃対象数
	AttackTypes   []chaos.AttackType // 有効な攻撃タイプ
	ChaosDelay    time.Duration      // Delay攻撃時の遅延
	SuspendTime   time.Duration      // 障害の継続時間
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	pool := worker.DefaultPoolConfig()
	return Config{
		Name:          "default",
		Description:   "Default scenario",
		Workers:       pool.NumWorkers,
		Capacity:      pool.Capacity,
		Drain:         true,
		Items:         1000,
		KeyRange:      1000,
		ValueSize:     32,
		Handler:       HandlerUpsert,
		StoreDriver:   "memory",
		ChaosInterval: 500 * time.Millisecond,
		ChaosTargets:  1,
		AttackTypes:   []chaos.AttackType{chaos.AttackKill, chaos.AttackSuspend, chaos.AttackDelay},
		ChaosDelay:    10 * time.Millisecond,
		SuspendTime:   300 * time.Millisecond,
	}
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if err := c.PoolConfig().Validate(); err != nil {
		return err
	}
	if c.Items == 0 && c.Duration <= 0 {
		return fmt.Errorf("either items or duration must be set")
	}
	if c.Rate < 0 {
		return fmt.Errorf("rate must be non-negative")
	}
	switch c.Handler {
	case HandlerUpsert, HandlerPrint:
	default:
		return fmt.Errorf("unknown handler: %q", c.Handler)
	}
	if c.EnableChaos {
		if c.Handler != HandlerUpsert || (c.StoreDriver != "" && c.StoreDriver != "memory") {
			return ErrChaosNeedsMemoryStore
		}
		if c.ChaosInterval <= 0 {
			return fmt.Errorf("chaos interval must be positive")
		}
	}
	return nil
}

// PoolConfig はプール設定を返す
func (c Config) PoolConfig() worker.PoolConfig {
	return worker.PoolConfig{NumWorkers: c.Workers, Capacity: c.Capacity}
}

// Result はシナリオ実行結果
type Result struct {
	ScenarioName string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration

	// プール
	Workers    int
	Capacity   int
	FinalState string
	DrainError string

	// 生成
	Generated uint64
	Submitted uint64
	Rejected  uint64

	// 処理
	Completed      uint64
	Dropped        uint64
	Abandoned      int
	Panicked       uint64
	FailureRate    float64
	ItemsPerSecond float64
	AvgLatency     time.Duration
	P99Latency     time.Duration
	MaxInFlight    int64

	// 出力
	StoreKeys      int
	DeadLetters    int
	DeadLetterPath string

	// カオス統計
	TotalAttacks  uint64
	AttacksByType map[string]uint64
	FaultedAtEnd  int // 停止時に復旧させたストア数
}

// Engine はシナリオ実行エンジン
type Engine struct {
	config   Config
	eventBus *events.Bus
	log      *logger.Logger
	output   io.Writer

	store      store.Store
	deadLetter *deadletter.Log
	pool       *worker.Pool[handler.Pair]
	producer   *producer.Producer
	monkey     *chaos.Monkey

	mu      sync.Mutex
	running bool
}

// New は新しいEngineを作成する
func New(config Config) *Engine {
	return &Engine{
		config: config,
		log:    logger.Default,
		output: os.Stdout,
	}
}

// SetEventBus はイベントバスを設定する
func (e *Engine) SetEventBus(bus *events.Bus) {
	e.eventBus = bus
}

// SetLogger はプールが使うロガーを設定する
func (e *Engine) SetLogger(l *logger.Logger) {
	e.log = l
}

// SetOutput は print ハンドラの出力先を設定する
func (e *Engine) SetOutput(w io.Writer) {
	e.output = w
}

// Run はシナリオを実行する。ctx がキャンセルされた場合は
// ドレインせずにプールを停止し、それまでの結果を返す
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", e.config.Name, err)
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, fmt.Errorf("scenario is already running")
	}
	e.running = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	logger.Info("", "=== Scenario '%s' started ===", e.config.Name)
	logger.Info("", "Description: %s", e.config.Description)

	result := &Result{
		ScenarioName: e.config.Name,
		StartTime:    time.Now(),
	}

	if err := e.setup(ctx); err != nil {
		e.teardown()
		return nil, fmt.Errorf("setup failed: %w", err)
	}
	defer e.teardown()

	e.runScenario(ctx, result)

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	e.collectResults(ctx, result)

	logger.Info("", "=== Scenario '%s' completed ===", e.config.Name)
	return result, nil
}

// setup はシナリオ実行前のセットアップ
func (e *Engine) setup(ctx context.Context) error {
	var h worker.Handler[handler.Pair]

	switch e.config.Handler {
	case HandlerPrint:
		h = handler.NewPrinter[handler.Pair](e.output)
	default:
		s, err := store.Open(ctx, e.config.StoreDriver, e.config.StorePath)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		e.store = s

		dl, err := deadletter.Open(e.config.DeadLetterPath)
		if err != nil {
			return err
		}
		e.deadLetter = dl
		h = handler.NewUpsert(s, dl, e.log)
	}

	opts := []worker.Option{worker.WithLogger(e.log)}
	if e.eventBus != nil {
		opts = append(opts, worker.WithEventBus(e.eventBus))
	}
	pool, err := worker.New(h, e.config.PoolConfig(), opts...)
	if err != nil {
		return fmt.Errorf("failed to create pool: %w", err)
	}

	producerConfig := producer.DefaultConfig()
	producerConfig.Items = e.config.Items
	producerConfig.Rate = e.config.Rate
	producerConfig.NonBlocking = e.config.NonBlocking
	if e.config.KeyRange > 0 {
		producerConfig.KeyRange = e.config.KeyRange
	}
	if e.config.ValueSize > 0 {
		producerConfig.ValueSize = e.config.ValueSize
	}

	if e.config.EnableChaos {
		mem, ok := e.store.(*store.Memory)
		if !ok {
			_ = pool.Finish(ctx, false)
			return ErrChaosNeedsMemoryStore
		}
		chaosConfig := chaos.DefaultConfig()
		chaosConfig.Interval = e.config.ChaosInterval
		chaosConfig.TargetCount = e.config.ChaosTargets
		if len(e.config.AttackTypes) > 0 {
			chaosConfig.AttackTypes = e.config.AttackTypes
		}
		if e.config.ChaosDelay > 0 {
			chaosConfig.DelayDuration = e.config.ChaosDelay
		}
		chaosConfig.SuspendTime = e.config.SuspendTime
		e.monkey = chaos.New([]*store.Memory{mem}, chaosConfig)
		if e.eventBus != nil {
			e.monkey.SetEventBus(e.eventBus)
		}
	}

	e.mu.Lock()
	e.pool = pool
	e.producer = producer.New(pool, producerConfig)
	e.mu.Unlock()
	return nil
}

// teardown はシナリオ実行後のクリーンアップ
func (e *Engine) teardown() {
	if e.monkey != nil {
		e.monkey.Stop()
	}
	if e.pool != nil {
		_ = e.pool.Finish(context.Background(), false)
	}
	if e.deadLetter != nil {
		if err := e.deadLetter.Close(); err != nil {
			logger.Warn("", "failed to close dead-letter log: %v", err)
		}
	}
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			logger.Warn("", "failed to close store: %v", err)
		}
	}
}

// runScenario は生成、ドレイン、停止を順に行う
func (e *Engine) runScenario(ctx context.Context, result *Result) {
	if e.monkey != nil {
		e.monkey.Start(ctx)
	}

	produceCtx := ctx
	if e.config.Duration > 0 {
		var cancel context.CancelFunc
		produceCtx, cancel = context.WithTimeout(ctx, e.config.Duration)
		defer cancel()
	}

	stats, err := e.producer.Run(produceCtx)
	if err != nil {
		logger.Warn("", "producer stopped early: %v", err)
	}
	result.Generated = stats.Generated
	result.Submitted = stats.Submitted
	result.Rejected = stats.Rejected

	// 中断された場合はドレインしない
	wait := e.config.Drain && ctx.Err() == nil
	drainCtx := ctx
	if e.config.DrainTimeout > 0 {
		var cancel context.CancelFunc
		drainCtx, cancel = context.WithTimeout(ctx, e.config.DrainTimeout)
		defer cancel()
	}

	logger.Info("", "Production finished, finishing pool (wait: %v)...", wait)
	if err := e.pool.Finish(drainCtx, wait); err != nil {
		result.DrainError = err.Error()
	}

	if e.monkey != nil {
		result.FaultedAtEnd = e.monkey.Faulted()
		if result.FaultedAtEnd > 0 {
			logger.Info("", "Restoring %d faulted store(s)", result.FaultedAtEnd)
		}
		e.monkey.Stop()
	}
}

// collectResults は結果を収集する
func (e *Engine) collectResults(ctx context.Context, result *Result) {
	snapshot := e.pool.Metrics()
	result.Workers = e.pool.NumWorkers()
	result.Capacity = e.pool.Capacity()
	result.FinalState = e.pool.State().String()
	result.Completed = e.pool.Completed()
	result.Dropped = e.pool.Dropped()
	result.Abandoned = e.pool.Size()
	result.Panicked = snapshot.Panicked
	result.FailureRate = snapshot.FailureRate
	result.ItemsPerSecond = snapshot.ItemsPerSecond
	result.AvgLatency = snapshot.AverageLatency
	result.P99Latency = snapshot.P99Latency
	result.MaxInFlight = snapshot.MaxInFlight

	if e.store != nil {
		if n, err := e.store.Count(context.WithoutCancel(ctx)); err == nil {
			result.StoreKeys = n
		}
	}
	if e.deadLetter != nil {
		result.DeadLetters = e.deadLetter.Count()
		result.DeadLetterPath = e.deadLetter.Path()
	}
	if e.monkey != nil {
		stats := e.monkey.Stats()
		result.TotalAttacks = stats.TotalAttacks
		result.AttacksByType = stats.ByType
	}
}

// Report は結果をフォーマットして返す
func (r *Result) Report() string {
	capacity := "unbounded"
	if r.Capacity > 0 {
		capacity = fmt.Sprintf("%d", r.Capacity)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `
================================================================================
                         SCENARIO REPORT: %s
================================================================================

EXECUTION SUMMARY
-----------------
  Start Time:     %s
  End Time:       %s
  Duration:       %v
  Workers:        %d
  Capacity:       %s
  Final State:    %s
`,
		r.ScenarioName,
		r.StartTime.Format("2006-01-02 15:04:05"),
		r.EndTime.Format("2006-01-02 15:04:05"),
		r.Duration.Round(time.Millisecond),
		r.Workers,
		capacity,
		r.FinalState,
	)
	if r.DrainError != "" {
		fmt.Fprintf(&b, "  Drain Error:    %s\n", r.DrainError)
	}

	fmt.Fprintf(&b, `
PRODUCER
--------
  Generated:        %d
  Submitted:        %d
  Rejected (full):  %d

PROCESSING
----------
  Completed:        %d
  Dropped:          %d
  Panicked:         %d
  Abandoned:        %d
  Failure Rate:     %.2f%%
  Throughput:       %.1f items/s
  Avg Latency:      %v
  P99 Latency:      %v
  Max In-Flight:    %d

OUTPUT
------
  Store Keys:       %d
  Dead Letters:     %d
`,
		r.Generated,
		r.Submitted,
		r.Rejected,
		r.Completed,
		r.Dropped,
		r.Panicked,
		r.Abandoned,
		r.FailureRate*100,
		r.ItemsPerSecond,
		r.AvgLatency.Round(time.Microsecond),
		r.P99Latency.Round(time.Microsecond),
		r.MaxInFlight,
		r.StoreKeys,
		r.DeadLetters,
	)
	if r.DeadLetterPath != "" {
		fmt.Fprintf(&b, "  Dead Letter File: %s\n", r.DeadLetterPath)
	}

	if r.TotalAttacks > 0 || len(r.AttacksByType) > 0 {
		fmt.Fprintf(&b, "\nCHAOS STATISTICS\n----------------\n  Total Attacks:    %d\n  Faulted at End:   %d\n", r.TotalAttacks, r.FaultedAtEnd)
		types := make([]string, 0, len(r.AttacksByType))
		for t := range r.AttacksByType {
			types = append(types, t)
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Fprintf(&b, "  %-18s%d\n", t+":", r.AttacksByType[t])
		}
	}

	b.WriteString("\n================================================================================")
	return b.String()
}
