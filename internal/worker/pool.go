package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"kewkew/internal/events"
	"kewkew/internal/logger"
	"kewkew/internal/metrics"
	"kewkew/internal/queue"

	"github.com/google/uuid"
)

var (
	// ErrNotImplemented is returned by New when no handler is supplied.
	ErrNotImplemented = errors.New("worker handler is not implemented")
	// ErrInvalidConfiguration is returned by New for an unusable PoolConfig.
	ErrInvalidConfiguration = errors.New("invalid pool configuration")
	// ErrQueueFull is returned by AddNow when a bounded queue is at capacity.
	ErrQueueFull = queue.ErrQueueFull
	// ErrPoolStopped is returned by Add and AddNow once shutdown has begun.
	ErrPoolStopped = errors.New("worker pool is stopped")
)

const maxItemLabel = 64

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	NumWorkers int // ワーカー数（1以上）
	Capacity   int // キュー容量（0で無制限）
}

// DefaultPoolConfig はデフォルト設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers: 3,
		Capacity:   0,
	}
}

// Validate は設定を検証する
func (c PoolConfig) Validate() error {
	if c.NumWorkers < 1 {
		return fmt.Errorf("%w: num_workers must be at least 1, got %d", ErrInvalidConfiguration, c.NumWorkers)
	}
	if c.Capacity < 0 {
		return fmt.Errorf("%w: capacity must be non-negative, got %d", ErrInvalidConfiguration, c.Capacity)
	}
	return nil
}

type options struct {
	parent  context.Context
	logger  *logger.Logger
	metrics *metrics.Metrics
	bus     *events.Bus
	id      string
}

// Option はプールの付加設定
type Option func(*options)

// WithContext sets the parent of the worker context. Cancelling it stops
// the workers as if Finish(ctx, false) had begun.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.parent = ctx }
}

// WithLogger replaces logger.Default for pool and worker messages.
func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics shares m with the caller instead of allocating one per pool.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEventBus publishes state changes and per-item failures to bus.
func WithEventBus(bus *events.Bus) Option {
	return func(o *options) { o.bus = bus }
}

// WithID overrides the generated pool ID used in logs and events.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// Pool はキューとワーカーゴルーチン群を管理する
type Pool[T any] struct {
	id         string
	numWorkers int
	handler    Handler[T]
	queue      *queue.Queue[T]

	log     *logger.Logger
	metrics *metrics.Metrics
	bus     *events.Bus

	ctx         context.Context
	cancel      context.CancelFunc
	stopWatcher func() bool
	wg          sync.WaitGroup

	state      atomic.Int32
	finishOnce sync.Once
	finishErr  error
	done       chan struct{}
}

// New はプールを作成し、ワーカーを即座に起動する
func New[T any](handler Handler[T], config PoolConfig, opts ...Option) (*Pool[T], error) {
	if missing(handler) {
		return nil, ErrNotImplemented
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := options{
		parent: context.Background(),
		logger: logger.Default,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = metrics.New()
	}
	if o.id == "" {
		o.id = "pool-" + uuid.NewString()[:8]
	}

	p := &Pool[T]{
		id:         o.id,
		numWorkers: config.NumWorkers,
		handler:    handler,
		queue:      queue.New[T](config.Capacity),
		log:        o.logger,
		metrics:    o.metrics,
		bus:        o.bus,
		done:       make(chan struct{}),
	}
	p.ctx, p.cancel = context.WithCancel(o.parent)
	// 親コンテキストのキャンセル時に待機中の Add/Get を解放する
	p.stopWatcher = context.AfterFunc(p.ctx, p.queue.Close)

	p.wg.Add(p.numWorkers)
	for i := range p.numWorkers {
		go p.worker(i + 1)
	}

	capacity := "unbounded"
	if config.Capacity > 0 {
		capacity = fmt.Sprintf("%d", config.Capacity)
	}
	p.log.Info(p.id, "pool started with %d workers (capacity: %s)", p.numWorkers, capacity)
	return p, nil
}

// worker は個々のワーカーゴルーチン
func (p *Pool[T]) worker(id int) {
	defer p.wg.Done()
	component := fmt.Sprintf("%s/worker-%d", p.id, id)

	for {
		item, err := p.queue.Get(p.ctx)
		if err != nil {
			p.log.Debug(component, "worker exiting: %v", err)
			return
		}
		p.process(component, id, item)
	}
}

func (p *Pool[T]) process(component string, id int, item T) {
	p.metrics.BeginInFlight()
	start := time.Now()
	ok, recovered := p.invoke(item)
	latency := time.Since(start)
	p.metrics.EndInFlight()

	switch {
	case recovered != nil:
		p.metrics.RecordPanic(latency)
		p.log.Error(component, "handler panicked on item %s: %v", label(item), recovered)
		p.publish(events.NewItemPanickedEvent(p.id, id, label(item), recovered))
		_ = p.queue.Reject()
	case ok:
		p.metrics.RecordSuccess(latency)
		_ = p.queue.Acknowledge()
	default:
		p.metrics.RecordFailure(latency)
		debug := p.log.Enabled(logger.LevelDebug)
		if debug || p.bus != nil {
			itemLabel := label(item)
			switch {
			case !debug:
			case p.ctx.Err() != nil:
				p.log.Debug(component, "item %s interrupted by shutdown", itemLabel)
			default:
				p.log.Debug(component, "handler reported failure for item %s", itemLabel)
			}
			p.publish(events.NewItemFailedEvent(p.id, id, itemLabel))
		}
		_ = p.queue.Reject()
	}
}

// invoke は panic をハンドラ失敗として回収する
func (p *Pool[T]) invoke(item T) (ok bool, recovered any) {
	defer func() {
		if r := recover(); r != nil {
			ok, recovered = false, r
		}
	}()
	return p.handler.Process(p.ctx, item), nil
}

// label はログとイベント用にアイテムを短く文字列化する
func label(item any) string {
	s := fmt.Sprint(item)
	if len(s) <= maxItemLabel {
		return s
	}
	cut := maxItemLabel
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func (p *Pool[T]) publish(event events.Event) {
	if p.bus != nil {
		p.bus.Publish(event)
	}
}

func (p *Pool[T]) setState(s State) {
	p.state.Store(int32(s))
	p.log.Debug(p.id, "state -> %s", s)
	p.publish(events.NewPoolStateEvent(p.id, s.String()))
}

func (p *Pool[T]) accepting() bool {
	s := p.State()
	return s == StateRunning || s == StateDraining
}

// Add はアイテムを投入する。容量上限に達している場合は空きが出るまで待つ
func (p *Pool[T]) Add(ctx context.Context, item T) error {
	if !p.accepting() {
		return ErrPoolStopped
	}
	if err := p.queue.Put(ctx, item); err != nil {
		if errors.Is(err, queue.ErrClosed) {
			return ErrPoolStopped
		}
		return fmt.Errorf("item submission failed due to context cancellation: %w", err)
	}
	p.metrics.RecordEnqueued()
	return nil
}

// AddNow はアイテムを即座に投入する。満杯なら ErrQueueFull を返す
func (p *Pool[T]) AddNow(item T) error {
	if !p.accepting() {
		return ErrPoolStopped
	}
	switch err := p.queue.PutNowait(item); {
	case err == nil:
		p.metrics.RecordEnqueued()
		return nil
	case errors.Is(err, queue.ErrQueueFull):
		p.metrics.RecordRejected()
		p.publish(events.NewQueueFullEvent(p.id))
		return ErrQueueFull
	case errors.Is(err, queue.ErrClosed):
		return ErrPoolStopped
	default:
		return err
	}
}

// Finish はプールを停止する。wait が true の場合はキューが空になり
// 処理中のアイテムがなくなるまで待ってからワーカーを停止する。
// 複数回呼び出しても安全で、最初の呼び出しの結果を返す。
func (p *Pool[T]) Finish(ctx context.Context, wait bool) error {
	p.finishOnce.Do(func() {
		p.finishErr = p.finish(ctx, wait)
		close(p.done)
	})
	return p.finishErr
}

func (p *Pool[T]) finish(ctx context.Context, wait bool) error {
	var drainErr error
	if wait && p.ctx.Err() == nil {
		p.setState(StateDraining)
		p.log.Info(p.id, "draining (pending: %d, outstanding: %d)", p.queue.Size(), p.queue.Outstanding())

		drainCtx, stop := context.WithCancel(ctx)
		unregister := context.AfterFunc(p.ctx, stop)
		if err := p.queue.WaitSettled(drainCtx); err != nil {
			// 呼び出し元の ctx でなければ親コンテキストによる停止
			cause := ctx.Err()
			if cause == nil {
				cause = ErrPoolStopped
			}
			drainErr = fmt.Errorf("drain interrupted with %d pending and %d outstanding items: %w",
				p.queue.Size(), p.queue.Outstanding(), cause)
			p.log.Warn(p.id, "%v", drainErr)
		}
		unregister()
		stop()
	}

	p.setState(StateShuttingDown)
	p.stopWatcher()
	p.cancel()
	p.queue.Close()
	p.wg.Wait()
	p.setState(StateStopped)

	p.log.Info(p.id, "pool stopped (completed: %d, dropped: %d, abandoned: %d)",
		p.queue.Completed(), p.queue.Dropped(), p.queue.Size())
	return drainErr
}

// Done は Finish が完了すると閉じられるチャネルを返す
func (p *Pool[T]) Done() <-chan struct{} {
	return p.done
}

// ID はプールIDを返す
func (p *Pool[T]) ID() string {
	return p.id
}

// State は現在の状態を返す
func (p *Pool[T]) State() State {
	return State(p.state.Load())
}

// NumWorkers はワーカー数を返す
func (p *Pool[T]) NumWorkers() int {
	return p.numWorkers
}

// Capacity はキュー容量を返す（0で無制限）
func (p *Pool[T]) Capacity() int {
	return p.queue.Capacity()
}

// Size は待機中のアイテム数を返す（処理中のものは含まない）
func (p *Pool[T]) Size() int {
	return p.queue.Size()
}

// Outstanding は処理中のアイテム数を返す
func (p *Pool[T]) Outstanding() int {
	return p.queue.Outstanding()
}

// Completed は成功したアイテム数を返す
func (p *Pool[T]) Completed() uint64 {
	return p.queue.Completed()
}

// Dropped は失敗・中断したアイテム数を返す
func (p *Pool[T]) Dropped() uint64 {
	return p.queue.Dropped()
}

// Metrics はメトリクスのスナップショットを返す
func (p *Pool[T]) Metrics() metrics.Snapshot {
	return p.metrics.Snapshot()
}
