package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"kewkew/internal/chaos"
	"kewkew/internal/logger"
	"kewkew/internal/scenario"
	"kewkew/internal/store"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// DefaultServerAddr は API サーバーのデフォルトアドレス
const DefaultServerAddr = ":8080"

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Preset      string `yaml:"preset" json:"preset" toml:"preset"`
	Name        string `yaml:"name" json:"name" toml:"name"`
	Description string `yaml:"description" json:"description" toml:"description"`
	Handler     string `yaml:"handler" json:"handler" toml:"handler"`

	Pool       PoolConfig       `yaml:"pool" json:"pool" toml:"pool"`
	Producer   ProducerConfig   `yaml:"producer" json:"producer" toml:"producer"`
	Store      StoreConfig      `yaml:"store" json:"store" toml:"store"`
	DeadLetter DeadLetterConfig `yaml:"dead_letter" json:"dead_letter" toml:"dead_letter"`
	Chaos      ChaosConfig      `yaml:"chaos" json:"chaos" toml:"chaos"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging" toml:"logging"`
	Server     ServerConfig     `yaml:"server" json:"server" toml:"server"`
}

// PoolConfig はワーカープール設定
type PoolConfig struct {
	Workers      int    `yaml:"workers" json:"workers" toml:"workers"`
	Capacity     *int   `yaml:"capacity" json:"capacity" toml:"capacity"`
	Drain        *bool  `yaml:"drain" json:"drain" toml:"drain"`
	DrainTimeout string `yaml:"drain_timeout" json:"drain_timeout" toml:"drain_timeout"`
}

// ProducerConfig は生成設定
type ProducerConfig struct {
	Items       uint64  `yaml:"items" json:"items" toml:"items"`
	Duration    string  `yaml:"duration" json:"duration" toml:"duration"`
	Rate        float64 `yaml:"rate" json:"rate" toml:"rate"`
	KeyRange    int     `yaml:"key_range" json:"key_range" toml:"key_range"`
	ValueSize   int     `yaml:"value_size" json:"value_size" toml:"value_size"`
	NonBlocking bool    `yaml:"nonblocking" json:"nonblocking" toml:"nonblocking"`
}

// StoreConfig はストア設定
type StoreConfig struct {
	Driver string `yaml:"driver" json:"driver" toml:"driver"`
	Path   string `yaml:"path" json:"path" toml:"path"`
}

// DeadLetterConfig は失敗アイテムの出力設定
type DeadLetterConfig struct {
	Path string `yaml:"path" json:"path" toml:"path"`
}

// ChaosConfig はカオス設定
type ChaosConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled" toml:"enabled"`
	Interval    string   `yaml:"interval" json:"interval" toml:"interval"`
	Targets     int      `yaml:"targets" json:"targets" toml:"targets"`
	AttackTypes []string `yaml:"attack_types" json:"attack_types" toml:"attack_types"`
	SuspendTime string   `yaml:"suspend_time" json:"suspend_time" toml:"suspend_time"`
	DelayAmount string   `yaml:"delay_amount" json:"delay_amount" toml:"delay_amount"`
}

// LoggingConfig はログ設定
type LoggingConfig struct {
	Level string `yaml:"level" json:"level" toml:"level"`
}

// ServerConfig は API サーバー設定
type ServerConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" toml:"enabled"`
	Addr    string `yaml:"addr" json:"addr" toml:"addr"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &config); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// ToScenarioConfig はFileConfigをscenario.Configに変換する
// preset が指定されていればそれを基に、ゼロ値以外の項目で上書きする
func (f *FileConfig) ToScenarioConfig() (scenario.Config, error) {
	config := scenario.DefaultConfig()
	if f.Preset != "" {
		preset, ok := scenario.GetPreset(f.Preset)
		if !ok {
			return config, fmt.Errorf("unknown preset: %s", f.Preset)
		}
		config = preset
	}

	if f.Name != "" {
		config.Name = f.Name
	}
	if f.Description != "" {
		config.Description = f.Description
	}
	if f.Handler != "" {
		config.Handler = f.Handler
	}

	// Pool設定
	if f.Pool.Workers > 0 {
		config.Workers = f.Pool.Workers
	}
	if f.Pool.Capacity != nil {
		config.Capacity = *f.Pool.Capacity
	}
	if f.Pool.Drain != nil {
		config.Drain = *f.Pool.Drain
	}
	if err := setDuration(&config.DrainTimeout, f.Pool.DrainTimeout, "pool.drain_timeout"); err != nil {
		return config, err
	}

	// Producer設定
	if f.Producer.Items > 0 {
		config.Items = f.Producer.Items
	}
	if err := setDuration(&config.Duration, f.Producer.Duration, "producer.duration"); err != nil {
		return config, err
	}
	if f.Producer.Rate > 0 {
		config.Rate = f.Producer.Rate
	}
	if f.Producer.KeyRange > 0 {
		config.KeyRange = f.Producer.KeyRange
	}
	if f.Producer.ValueSize > 0 {
		config.ValueSize = f.Producer.ValueSize
	}
	if f.Producer.NonBlocking {
		config.NonBlocking = true
	}

	// Store設定
	if f.Store.Driver != "" {
		config.StoreDriver = f.Store.Driver
	}
	if f.Store.Path != "" {
		config.StorePath = f.Store.Path
	}
	if f.DeadLetter.Path != "" {
		config.DeadLetterPath = f.DeadLetter.Path
	}

	// Chaos設定
	if f.Chaos.Enabled {
		config.EnableChaos = true
	}
	if err := setDuration(&config.ChaosInterval, f.Chaos.Interval, "chaos.interval"); err != nil {
		return config, err
	}
	if f.Chaos.Targets > 0 {
		config.ChaosTargets = f.Chaos.Targets
	}
	if len(f.Chaos.AttackTypes) > 0 {
		attacks, err := parseAttackTypes(f.Chaos.AttackTypes)
		if err != nil {
			return config, err
		}
		config.AttackTypes = attacks
	}
	if err := setDuration(&config.SuspendTime, f.Chaos.SuspendTime, "chaos.suspend_time"); err != nil {
		return config, err
	}
	if err := setDuration(&config.ChaosDelay, f.Chaos.DelayAmount, "chaos.delay_amount"); err != nil {
		return config, err
	}

	return config, nil
}

func setDuration(dst *time.Duration, value, field string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	*dst = d
	return nil
}

// parseAttackTypes は文字列の攻撃タイプをパースする
func parseAttackTypes(types []string) ([]chaos.AttackType, error) {
	var attacks []chaos.AttackType

	for _, t := range types {
		a, ok := chaos.ParseAttackType(strings.ToLower(t))
		if !ok {
			return nil, fmt.Errorf("unknown attack type: %s", t)
		}
		attacks = append(attacks, a)
	}

	return attacks, nil
}

// LogLevel はログレベルを返す（未指定なら Info）
func (f *FileConfig) LogLevel() (logger.Level, error) {
	return logger.ParseLevel(f.Logging.Level)
}

// ServerAddr は API サーバーのアドレスを返す
func (f *FileConfig) ServerAddr() string {
	if f.Server.Addr == "" {
		return DefaultServerAddr
	}
	return f.Server.Addr
}

// Validate は設定を検証する
func (f *FileConfig) Validate() error {
	if f.Pool.Workers < 0 {
		return fmt.Errorf("pool.workers must be non-negative")
	}
	if f.Pool.Capacity != nil && *f.Pool.Capacity < 0 {
		return fmt.Errorf("pool.capacity must be non-negative")
	}
	if f.Producer.Rate < 0 {
		return fmt.Errorf("producer.rate must be non-negative")
	}
	if f.Producer.KeyRange < 0 {
		return fmt.Errorf("producer.key_range must be non-negative")
	}
	if f.Store.Driver != "" && !slices.Contains(store.Drivers, f.Store.Driver) {
		return fmt.Errorf("store.driver must be one of %v, got %q", store.Drivers, f.Store.Driver)
	}
	if f.Chaos.Targets < 0 {
		return fmt.Errorf("chaos.targets must be non-negative")
	}
	if _, err := f.LogLevel(); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}
