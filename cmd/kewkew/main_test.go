package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kewkew/internal/deadletter"
	"kewkew/internal/logger"
)

func TestBuildScenarioConfigDefault(t *testing.T) {
	cfg, fc, err := buildScenarioConfig(options{set: map[string]bool{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fc != nil {
		t.Error("expected no file config")
	}
	if cfg.Name != "quick" {
		t.Errorf("expected quick scenario by default, got %s", cfg.Name)
	}
}

func TestBuildScenarioConfigFlags(t *testing.T) {
	opts := options{
		presetName:  "basic",
		workers:     7,
		capacity:    0,
		items:       42,
		nonBlocking: true,
		failedPath:  "failed.txt",
		dbPath:      "items.db",
		set: map[string]bool{
			"workers":  true,
			"capacity": true,
			"items":    true,
			"nowait":   true,
		},
	}

	cfg, _, err := buildScenarioConfig(opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != "basic" {
		t.Errorf("expected basic preset, got %s", cfg.Name)
	}
	if cfg.Workers != 7 || cfg.Items != 42 || !cfg.NonBlocking {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.Capacity != 0 {
		t.Errorf("explicit -capacity 0 should override the preset, got %d", cfg.Capacity)
	}
	if cfg.StoreDriver != "sqlite" || cfg.StorePath != "items.db" {
		t.Errorf("expected sqlite store at items.db, got %s %s", cfg.StoreDriver, cfg.StorePath)
	}
	if cfg.DeadLetterPath != "failed.txt" {
		t.Errorf("expected dead-letter path, got %s", cfg.DeadLetterPath)
	}
}

func TestBuildScenarioConfigUnsetFlagsKeepPreset(t *testing.T) {
	cfg, _, err := buildScenarioConfig(options{presetName: "backpressure", set: map[string]bool{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Capacity != 8 || !cfg.NonBlocking {
		t.Errorf("preset values should be kept, got capacity=%d nonblocking=%v", cfg.Capacity, cfg.NonBlocking)
	}
}

func TestBuildScenarioConfigUnknownPreset(t *testing.T) {
	if _, _, err := buildScenarioConfig(options{presetName: "stress", set: map[string]bool{}}); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestBuildScenarioConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "preset: print\nlogging:\n  level: error\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, fc, err := buildScenarioConfig(options{configFile: path, set: map[string]bool{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name != "print" {
		t.Errorf("expected print preset from file, got %s", cfg.Name)
	}

	previous := logger.Default.Level()
	defer logger.Default.SetLevel(previous)

	if err := configureLogger(options{}, fc); err != nil {
		t.Fatalf("failed to configure logger: %v", err)
	}
	if logger.Default.Level() != logger.LevelError {
		t.Errorf("expected error level from file, got %v", logger.Default.Level())
	}

	if err := configureLogger(options{logLevel: "debug"}, fc); err != nil {
		t.Fatalf("failed to configure logger: %v", err)
	}
	if logger.Default.Level() != logger.LevelDebug {
		t.Errorf("flag should override file level, got %v", logger.Default.Level())
	}

	if err := configureLogger(options{logLevel: "loud"}, nil); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestPrintFailed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failed.txt")
	dl, err := deadletter.Open(path)
	if err != nil {
		t.Fatalf("failed to open dead-letter log: %v", err)
	}
	_ = dl.Append("key-1", "v1")
	_ = dl.Append("key-2", "v2")
	_ = dl.Close()

	var buf bytes.Buffer
	if err := printFailed(&buf, path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "2 failed items") {
		t.Errorf("expected item count in output, got %q", out)
	}
	if !strings.Contains(out, "key-1\tv1") || !strings.Contains(out, "key-2\tv2") {
		t.Errorf("expected both entries in output, got %q", out)
	}

	if err := printFailed(&buf, filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for a missing file")
	}
}
