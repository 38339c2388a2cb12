// Package main is the entry point for kewkew.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"kewkew/internal/api"
	"kewkew/internal/config"
	"kewkew/internal/deadletter"
	"kewkew/internal/events"
	"kewkew/internal/handler"
	"kewkew/internal/logger"
	"kewkew/internal/scenario"
	"kewkew/internal/store"
	"kewkew/internal/worker"
)

var (
	version = "dev"
)

// options はコマンドラインフラグ
type options struct {
	configFile  string
	presetName  string
	workers     int
	capacity    int
	items       uint64
	rate        float64
	nonBlocking bool
	dbPath      string
	failedPath  string
	enableChaos bool
	serverMode  bool
	serverAddr  string
	logLevel    string

	// 明示的に指定されたフラグ名
	set map[string]bool
}

func main() {
	var opts options
	var (
		listPresets = flag.Bool("list-presets", false, "利用可能なプリセットを表示")
		showVersion = flag.Bool("version", false, "バージョンを表示")
		showFailed  = flag.String("show-failed", "", "失敗アイテムファイルの内容を表示")
	)
	flag.StringVar(&opts.configFile, "config", "", "設定ファイルパス (YAML/JSON/TOML)")
	flag.StringVar(&opts.presetName, "preset", "", "プリセットシナリオ名 (quick, basic, backpressure, chaos, print)")
	flag.IntVar(&opts.workers, "workers", 0, "ワーカー数")
	flag.IntVar(&opts.capacity, "capacity", 0, "キュー容量 (0で無制限)")
	flag.Uint64Var(&opts.items, "items", 0, "投入するアイテム数")
	flag.Float64Var(&opts.rate, "rate", 0, "1秒あたりの投入数 (0で無制限)")
	flag.BoolVar(&opts.nonBlocking, "nowait", false, "AddNow で投入し、満杯なら拒否する")
	flag.StringVar(&opts.dbPath, "db", "", "SQLite データベースパス (指定時は sqlite ストアを使用)")
	flag.StringVar(&opts.failedPath, "failed", "", "失敗アイテムの出力ファイル")
	flag.BoolVar(&opts.enableChaos, "chaos", false, "ストア障害注入を有効化")
	flag.BoolVar(&opts.serverMode, "server", false, "API サーバーモードで起動")
	flag.StringVar(&opts.serverAddr, "addr", config.DefaultServerAddr, "サーバーアドレス (例: :8080, 0.0.0.0:3000)")
	flag.StringVar(&opts.logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `kewkew - Bounded work queue with a fixed worker pool

Usage:
  kewkew [options]

Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  # プリセットシナリオを実行
  kewkew -preset quick

  # 設定ファイルから実行
  kewkew -config scenario.yaml

  # SQLite に upsert し、失敗を failed.txt に記録
  kewkew -preset basic -db items.db -failed failed.txt

  # 小さいキューに AddNow で投入
  kewkew -capacity 8 -nowait -items 10000

  # 記録された失敗アイテムを表示
  kewkew -show-failed failed.txt

  # プリセット一覧を表示
  kewkew -list-presets

  # API サーバーモードで起動
  kewkew -server -addr :3000
`)
	}

	flag.Parse()

	opts.set = make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	if *showVersion {
		fmt.Printf("kewkew version %s\n", version)
		return
	}

	if *listPresets {
		printPresets()
		return
	}

	if *showFailed != "" {
		if err := printFailed(os.Stdout, *showFailed); err != nil {
			logger.Error("", "失敗アイテムの読み込みエラー: %v", err)
			os.Exit(1)
		}
		return
	}

	cfg, fileConfig, err := buildScenarioConfig(opts)
	if err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	if err := configureLogger(opts, fileConfig); err != nil {
		logger.Error("", "設定エラー: %v", err)
		os.Exit(1)
	}

	if opts.serverMode || (fileConfig != nil && fileConfig.Server.Enabled) {
		addr := opts.serverAddr
		if !opts.set["addr"] && fileConfig != nil {
			addr = fileConfig.ServerAddr()
		}
		if err := runServer(cfg, addr); err != nil {
			logger.Error("", "サーバーエラー: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := runScenario(cfg); err != nil {
		logger.Error("", "シナリオ実行エラー: %v", err)
		os.Exit(1)
	}
}

// buildScenarioConfig はシナリオ設定を構築する
func buildScenarioConfig(opts options) (scenario.Config, *config.FileConfig, error) {
	var cfg scenario.Config
	var fileConfig *config.FileConfig

	switch {
	case opts.configFile != "":
		// 1. 設定ファイルから読み込み
		fc, err := config.LoadFile(opts.configFile)
		if err != nil {
			return cfg, nil, fmt.Errorf("設定ファイル読み込みエラー: %w", err)
		}
		if err := fc.Validate(); err != nil {
			return cfg, nil, fmt.Errorf("設定検証エラー: %w", err)
		}
		cfg, err = fc.ToScenarioConfig()
		if err != nil {
			return cfg, nil, fmt.Errorf("設定変換エラー: %w", err)
		}
		fileConfig = fc
	case opts.presetName != "":
		// 2. プリセットから読み込み
		preset, ok := scenario.GetPreset(opts.presetName)
		if !ok {
			return cfg, nil, fmt.Errorf("不明なプリセット: %s (利用可能: %v)", opts.presetName, scenario.ListPresets())
		}
		cfg = preset
	default:
		// 3. デフォルト（quickシナリオ）
		cfg = scenario.QuickScenario()
	}

	// 明示的に指定されたフラグのみオーバーライド
	if opts.set["workers"] {
		cfg.Workers = opts.workers
	}
	if opts.set["capacity"] {
		cfg.Capacity = opts.capacity
	}
	if opts.set["items"] {
		cfg.Items = opts.items
	}
	if opts.set["rate"] {
		cfg.Rate = opts.rate
	}
	if opts.set["nowait"] {
		cfg.NonBlocking = opts.nonBlocking
	}
	if opts.dbPath != "" {
		cfg.StoreDriver = "sqlite"
		cfg.StorePath = opts.dbPath
	}
	if opts.failedPath != "" {
		cfg.DeadLetterPath = opts.failedPath
	}
	if opts.set["chaos"] {
		cfg.EnableChaos = opts.enableChaos
	}

	return cfg, fileConfig, nil
}

// configureLogger はログレベルを設定する。フラグが設定ファイルより優先される
func configureLogger(opts options, fileConfig *config.FileConfig) error {
	name := opts.logLevel
	if name == "" && fileConfig != nil {
		name = fileConfig.Logging.Level
	}
	level, err := logger.ParseLevel(name)
	if err != nil {
		return err
	}
	logger.Default.SetLevel(level)
	return nil
}

// signalContext は SIGINT/SIGTERM でキャンセルされるコンテキストを返す
func signalContext(message string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
			fmt.Println(message)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// runScenario はシナリオを実行する
func runScenario(cfg scenario.Config) error {
	capacity := "unbounded"
	if cfg.Capacity > 0 {
		capacity = fmt.Sprintf("%d", cfg.Capacity)
	}
	storeName := cfg.StoreDriver
	if cfg.Handler == scenario.HandlerPrint {
		storeName = "-"
	}

	fmt.Println("kewkew - Bounded work queue with a fixed worker pool")
	fmt.Println("====================================================")
	fmt.Printf("Scenario: %s\n", cfg.Name)
	fmt.Printf("Workers: %d, Capacity: %s, Non-blocking: %v\n", cfg.Workers, capacity, cfg.NonBlocking)
	fmt.Printf("Items: %d, Duration: %v, Rate: %.0f/s\n", cfg.Items, cfg.Duration, cfg.Rate)
	fmt.Printf("Handler: %s, Store: %s, Chaos: %v\n", cfg.Handler, storeName, cfg.EnableChaos)
	fmt.Println("====================================================")
	fmt.Println()

	ctx, cancel := signalContext("\n中断シグナルを受信、プールを停止中...")
	defer cancel()

	engine := scenario.New(cfg)
	result, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Println(result.Report())
	return nil
}

// printPresets は利用可能なプリセットを表示する
func printPresets() {
	fmt.Println("利用可能なプリセットシナリオ:")
	fmt.Println()

	for _, name := range scenario.ListPresets() {
		preset, _ := scenario.GetPreset(name)
		desc := preset.Description
		if name == "quick" {
			desc += "（デフォルト）"
		}
		fmt.Printf("  %-14s %s\n", name, desc)
	}

	fmt.Println()
	fmt.Println("使用例: kewkew -preset quick")
}

// printFailed は失敗アイテムファイルの内容を表示する
func printFailed(w io.Writer, path string) error {
	entries, err := deadletter.ReadFile(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%s: %d failed items\n", path, len(entries))
	for _, e := range entries {
		fmt.Fprintf(w, "  %s\t%s\n", e.Key, e.Value)
	}
	return nil
}

// runServer は upsert プールを API サーバーで公開する
func runServer(cfg scenario.Config, addr string) error {
	fmt.Println("kewkew - API Server")
	fmt.Println("===================")
	fmt.Printf("Starting server on http://%s\n", addr)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ctx, cancel := signalContext("\n中断シグナルを受信、サーバーを終了中...")
	defer cancel()

	st, err := store.Open(ctx, cfg.StoreDriver, cfg.StorePath)
	if err != nil {
		return err
	}
	defer st.Close()

	dl, err := deadletter.Open(cfg.DeadLetterPath)
	if err != nil {
		return err
	}
	defer dl.Close()

	bus := events.NewBus()
	defer bus.Close()

	pool, err := worker.New[handler.Pair](handler.NewUpsert(st, dl, logger.Default), cfg.PoolConfig(), worker.WithEventBus(bus))
	if err != nil {
		return err
	}

	server := api.NewServer(addr, pool, bus)
	server.SetStore(st)
	serveErr := server.Start(ctx)

	// サーバー停止後は待機中のアイテムを破棄して停止する
	if err := pool.Finish(context.Background(), false); err != nil {
		logger.Warn("", "pool finish: %v", err)
	}
	return serveErr
}
