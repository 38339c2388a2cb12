package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"kewkew/internal/events"
	"kewkew/internal/handler"
	"kewkew/internal/logger"
	"kewkew/internal/producer"
	"kewkew/internal/store"
	"kewkew/internal/worker"

	"golang.org/x/net/websocket"
)

const statusInterval = time.Second

// Server はAPIサーバー
type Server struct {
	addr  string
	pool  *worker.Pool[handler.Pair]
	bus   *events.Bus
	store store.Store

	mu        sync.RWMutex
	wsClients map[*websocket.Conn]bool

	// バックグラウンド生成。baseCtx は Start の ctx
	pmu      sync.Mutex
	baseCtx  context.Context
	producer *producer.Producer

	server *http.Server
	loops  sync.WaitGroup
}

// NewServer は pool を公開するAPIサーバーを作成する。bus は nil でもよい
func NewServer(addr string, pool *worker.Pool[handler.Pair], bus *events.Bus) *Server {
	return &Server{
		addr:      addr,
		pool:      pool,
		bus:       bus,
		baseCtx:   context.Background(),
		wsClients: make(map[*websocket.Conn]bool),
	}
}

// SetStore はステータスに件数を表示するストアを設定する
func (s *Server) SetStore(st store.Store) {
	s.store = st
}

// Handler はルーティング済みの http.Handler を返す
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/items", s.handleItems)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/api/finish", s.handleFinish)
	mux.HandleFunc("/api/produce", s.handleProduce)
	mux.Handle("/ws", websocket.Handler(s.handleWebSocket))

	return mux
}

// Start はサーバーを開始し、ctx がキャンセルされるまでブロックする
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Listen に失敗してもループを止めて戻る
	ctx, cancel := context.WithCancel(ctx)
	s.pmu.Lock()
	s.baseCtx = ctx
	s.pmu.Unlock()
	defer s.stopProducer()

	s.startLoops(ctx)
	defer s.loops.Wait()
	defer cancel()

	logger.Info("api", "API Server starting on http://%s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// startLoops はイベント転送と定期ステータス配信を開始する
func (s *Server) startLoops(ctx context.Context) {
	if s.bus != nil {
		ch := s.bus.Subscribe()
		s.loops.Add(1)
		go s.eventLoop(ctx, ch)
	}
	s.loops.Add(1)
	go s.broadcastLoop(ctx)
}

// ItemRequest は投入リクエスト
type ItemRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return
	}

	item := handler.Pair{Key: req.Key, Value: req.Value}
	var err error
	if r.URL.Query().Get("wait") == "true" {
		err = s.pool.Add(r.Context(), item)
	} else {
		err = s.pool.AddNow(item)
	}

	switch {
	case err == nil:
		w.WriteHeader(http.StatusAccepted)
		s.writeJSON(w, map[string]string{"status": "accepted", "key": item.Key})
	case errors.Is(err, worker.ErrQueueFull):
		http.Error(w, "Queue is full", http.StatusServiceUnavailable)
	case errors.Is(err, worker.ErrPoolStopped):
		http.Error(w, "Pool is stopped", http.StatusGone)
	default:
		http.Error(w, err.Error(), http.StatusRequestTimeout)
	}
}

// StatusResponse はステータスレスポンス
type StatusResponse struct {
	PoolID      string `json:"pool_id"`
	State       string `json:"state"`
	Workers     int    `json:"workers"`
	Capacity    int    `json:"capacity"`
	Pending     int    `json:"pending"`
	Outstanding int    `json:"outstanding"`
	Completed   uint64 `json:"completed"`
	Dropped     uint64 `json:"dropped"`
	StoreKeys   *int   `json:"store_keys,omitempty"`
}

func (s *Server) status(ctx context.Context) StatusResponse {
	resp := StatusResponse{
		PoolID:      s.pool.ID(),
		State:       s.pool.State().String(),
		Workers:     s.pool.NumWorkers(),
		Capacity:    s.pool.Capacity(),
		Pending:     s.pool.Size(),
		Outstanding: s.pool.Outstanding(),
		Completed:   s.pool.Completed(),
		Dropped:     s.pool.Dropped(),
	}
	if s.store != nil {
		if n, err := s.store.Count(ctx); err == nil {
			resp.StoreKeys = &n
		}
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.status(r.Context()))
}

// MetricsResponse はメトリクスレスポンス
type MetricsResponse struct {
	Enqueued       uint64  `json:"enqueued"`
	Rejected       uint64  `json:"rejected"`
	Succeeded      uint64  `json:"succeeded"`
	Failed         uint64  `json:"failed"`
	Panicked       uint64  `json:"panicked"`
	InFlight       int64   `json:"in_flight"`
	MaxInFlight    int64   `json:"max_in_flight"`
	ItemsPerSecond float64 `json:"items_per_second"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	P99LatencyMs   float64 `json:"p99_latency_ms"`
	FailureRate    float64 `json:"failure_rate"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.pool.Metrics()
	s.writeJSON(w, MetricsResponse{
		Enqueued:       snap.Enqueued,
		Rejected:       snap.Rejected,
		Succeeded:      snap.Succeeded,
		Failed:         snap.Failed,
		Panicked:       snap.Panicked,
		InFlight:       snap.InFlight,
		MaxInFlight:    snap.MaxInFlight,
		ItemsPerSecond: snap.ItemsPerSecond,
		AvgLatencyMs:   float64(snap.AverageLatency) / float64(time.Millisecond),
		P99LatencyMs:   float64(snap.P99Latency) / float64(time.Millisecond),
		FailureRate:    snap.FailureRate,
	})
}

// FinishResponse は停止レスポンス
type FinishResponse struct {
	State     string `json:"state"`
	Completed uint64 `json:"completed"`
	Dropped   uint64 `json:"dropped"`
	Abandoned int    `json:"abandoned"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	wait := true
	if v := r.URL.Query().Get("wait"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			http.Error(w, "wait must be a boolean", http.StatusBadRequest)
			return
		}
		wait = parsed
	}

	ctx := r.Context()
	if v := r.URL.Query().Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			http.Error(w, "timeout must be a duration", http.StatusBadRequest)
			return
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	resp := FinishResponse{}
	if err := s.pool.Finish(ctx, wait); err != nil {
		resp.Error = err.Error()
	}
	resp.State = s.pool.State().String()
	resp.Completed = s.pool.Completed()
	resp.Dropped = s.pool.Dropped()
	resp.Abandoned = s.pool.Size()

	s.writeJSON(w, resp)
}

// ProduceRequest はバックグラウンド生成の開始リクエスト。ゼロ値はデフォルト
type ProduceRequest struct {
	Items       uint64  `json:"items"`
	Rate        float64 `json:"rate"`
	KeyRange    int     `json:"key_range"`
	ValueSize   int     `json:"value_size"`
	NonBlocking bool    `json:"nonblocking"`
}

// ProduceResponse は生成状態レスポンス
type ProduceResponse struct {
	Running bool           `json:"running"`
	Stats   producer.Stats `json:"stats"`
	Error   string         `json:"error,omitempty"`
}

func (s *Server) handleProduce(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, s.produceStatus())
	case http.MethodPost:
		var req ProduceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.Rate < 0 || req.KeyRange < 0 || req.ValueSize < 0 {
			http.Error(w, "rate, key_range and value_size must not be negative", http.StatusBadRequest)
			return
		}
		if s.pool.State() != worker.StateRunning {
			http.Error(w, "Pool is stopped", http.StatusGone)
			return
		}
		if !s.startProducer(req) {
			http.Error(w, "Producer is already running", http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		s.writeJSON(w, s.produceStatus())
	case http.MethodDelete:
		resp := ProduceResponse{}
		stats, err := s.stopProducer()
		resp.Stats = stats
		if err != nil {
			resp.Error = err.Error()
		}
		s.writeJSON(w, resp)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// startProducer は実行中の生成がなければ新しく開始する
func (s *Server) startProducer(req ProduceRequest) bool {
	s.pmu.Lock()
	defer s.pmu.Unlock()

	if s.producer != nil && s.producer.IsRunning() {
		return false
	}

	config := producer.DefaultConfig()
	config.Items = req.Items
	config.Rate = req.Rate
	config.NonBlocking = req.NonBlocking
	if req.KeyRange > 0 {
		config.KeyRange = req.KeyRange
	}
	if req.ValueSize > 0 {
		config.ValueSize = req.ValueSize
	}

	s.producer = producer.New(s.pool, config)
	return s.producer.Start(s.baseCtx)
}

// stopProducer は生成を停止して最終統計を返す。未開始なら何もしない
func (s *Server) stopProducer() (producer.Stats, error) {
	s.pmu.Lock()
	p := s.producer
	s.pmu.Unlock()

	if p == nil {
		return producer.Stats{}, nil
	}
	return p.Stop()
}

func (s *Server) produceStatus() ProduceResponse {
	s.pmu.Lock()
	p := s.producer
	s.pmu.Unlock()

	if p == nil {
		return ProduceResponse{}
	}
	return ProduceResponse{Running: p.IsRunning(), Stats: p.Stats()}
}

// WebSocket handling
func (s *Server) handleWebSocket(ws *websocket.Conn) {
	s.mu.Lock()
	s.wsClients[ws] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.wsClients, ws)
		s.mu.Unlock()
		_ = ws.Close()
	}()

	// Keep connection alive
	for {
		var msg string
		if err := websocket.Message.Receive(ws, &msg); err != nil {
			break
		}
	}
}

func (s *Server) clientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.wsClients)
}

// Message は WebSocket で配信するメッセージ
type Message struct {
	Type   string          `json:"type"`
	Event  *events.Event   `json:"event,omitempty"`
	Status *StatusResponse `json:"status,omitempty"`
}

func (s *Server) broadcast(msg Message) {
	s.mu.RLock()
	clients := make([]*websocket.Conn, 0, len(s.wsClients))
	for ws := range s.wsClients {
		clients = append(clients, ws)
	}
	s.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	jsonData, err := json.Marshal(msg)
	if err != nil {
		return
	}

	for _, ws := range clients {
		_ = websocket.Message.Send(ws, string(jsonData))
	}
}

func (s *Server) eventLoop(ctx context.Context, ch <-chan events.Event) {
	defer s.loops.Done()
	defer s.bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			s.broadcast(Message{Type: "event", Event: &ev})
		}
	}
}

func (s *Server) broadcastLoop(ctx context.Context) {
	defer s.loops.Done()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status := s.status(ctx)
			s.broadcast(Message{Type: "status", Status: &status})
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("api", "Failed to encode JSON: %v", err)
	}
}
