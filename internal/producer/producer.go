package producer

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"

	"kewkew/internal/handler"
	"kewkew/internal/logger"
	"kewkew/internal/worker"

	"golang.org/x/time/rate"
)

// Sink はアイテムの投入先。*worker.Pool[handler.Pair] が満たす
type Sink interface {
	Add(ctx context.Context, item handler.Pair) error
	AddNow(item handler.Pair) error
}

var _ Sink = (*worker.Pool[handler.Pair])(nil)

// Config はProducerの設定
type Config struct {
	KeyRange    int     // キーの範囲（0〜KeyRange-1）
	ValueSize   int     // 値のサイズ（バイト）
	Items       uint64  // 生成数の上限（0で無制限）
	Rate        float64 // 1秒あたりの生成数（0で無制限）
	Burst       int     // レートリミッタのバースト
	NonBlocking bool    // AddNow で投入する
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		KeyRange:  10000,
		ValueSize: 32,
		Items:     0,
		Rate:      0,
		Burst:     1,
	}
}

// Stats は生成結果
type Stats struct {
	Generated uint64 `json:"generated"`
	Submitted uint64 `json:"submitted"`
	Rejected  uint64 `json:"rejected"`
}

// Producer は負荷生成器
type Producer struct {
	config  Config
	sink    Sink
	limiter *rate.Limiter

	generated atomic.Uint64
	submitted atomic.Uint64
	rejected  atomic.Uint64

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	err     error
}

// New は新しいProducerを作成する
func New(sink Sink, config Config) *Producer {
	if config.KeyRange <= 0 {
		config.KeyRange = DefaultConfig().KeyRange
	}
	if config.ValueSize < 0 {
		config.ValueSize = 0
	}
	if config.Burst <= 0 {
		config.Burst = 1
	}

	limit := rate.Inf
	if config.Rate > 0 {
		limit = rate.Limit(config.Rate)
	}

	return &Producer{
		config:  config,
		sink:    sink,
		limiter: rate.NewLimiter(limit, config.Burst),
	}
}

// Run は上限に達するか ctx がキャンセルされるまで生成する。
// キャンセルによる終了はエラーにしない
func (p *Producer) Run(ctx context.Context) (Stats, error) {
	mode := "blocking"
	if p.config.NonBlocking {
		mode = "non-blocking"
	}
	logger.Info("producer", "Producer started (items: %s, rate: %s, mode: %s)",
		limitString(p.config.Items), rateString(p.config.Rate), mode)

	err := p.loop(ctx)
	stats := p.Stats()

	logger.Info("producer", "Producer finished (submitted: %d, rejected: %d)", stats.Submitted, stats.Rejected)
	return stats, err
}

func (p *Producer) loop(ctx context.Context) error {
	for {
		if p.config.Items > 0 && p.generated.Load() >= p.config.Items {
			return nil
		}
		if err := p.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("rate limiter: %w", err)
		}

		item := p.next()
		p.generated.Add(1)

		if err := p.submit(ctx, item); err != nil {
			switch {
			case errors.Is(err, worker.ErrQueueFull):
				p.rejected.Add(1)
			case ctx.Err() != nil:
				return nil
			default:
				return err
			}
			continue
		}
		p.submitted.Add(1)
	}
}

func (p *Producer) submit(ctx context.Context, item handler.Pair) error {
	if p.config.NonBlocking {
		return p.sink.AddNow(item)
	}
	return p.sink.Add(ctx, item)
}

// next はランダムなキーと値を生成する
func (p *Producer) next() handler.Pair {
	value := make([]byte, p.config.ValueSize)
	_, _ = cryptorand.Read(value)
	return handler.Pair{
		Key:   fmt.Sprintf("key-%d", rand.Intn(p.config.KeyRange)),
		Value: hex.EncodeToString(value),
	}
}

// Start はバックグラウンドで生成を開始する。既に実行中なら false を返す
func (p *Producer) Start(ctx context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running.Load() {
		return false
	}
	p.running.Store(true)

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.running.Store(false)
		_, p.err = p.Run(ctx)
	}()
	return true
}

// Wait はバックグラウンドの生成が終わるまで待ち、その結果を返す
func (p *Producer) Wait() (Stats, error) {
	p.wg.Wait()
	return p.Stats(), p.err
}

// Stop は生成を停止し、終了を待つ
func (p *Producer) Stop() (Stats, error) {
	p.mu.Lock()
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return p.Wait()
}

// IsRunning はバックグラウンドの生成が実行中かを返す
func (p *Producer) IsRunning() bool {
	return p.running.Load()
}

// Stats は現在の統計を返す
func (p *Producer) Stats() Stats {
	return Stats{
		Generated: p.generated.Load(),
		Submitted: p.submitted.Load(),
		Rejected:  p.rejected.Load(),
	}
}

func limitString(n uint64) string {
	if n == 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d", n)
}

func rateString(r float64) string {
	if r <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%.0f/s", r)
}
