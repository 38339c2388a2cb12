package scenario

import (
	"time"

	"kewkew/internal/chaos"
)

// QuickScenario はクイックテスト用シナリオを返す
// 短時間での動作確認用
func QuickScenario() Config {
	c := DefaultConfig()
	c.Name = "quick"
	c.Description = "Quick verification with the in-memory store"
	c.Items = 500
	return c
}

// BasicScenario は基本的なシナリオ設定を返す
// SQLite への upsert、カオス注入なし
func BasicScenario() Config {
	c := DefaultConfig()
	c.Name = "basic"
	c.Description = "Upsert items into SQLite without chaos injection"
	c.Items = 5000
	c.Capacity = 100
	c.StoreDriver = "sqlite"
	return c
}

// BackpressureScenario は容量制限の検証シナリオを返す
// 小さいキューに AddNow で投入し、拒否数を数える
func BackpressureScenario() Config {
	c := DefaultConfig()
	c.Name = "backpressure"
	c.Description = "Non-blocking submission into a small bounded queue"
	c.Items = 5000
	c.Workers = 2
	c.Capacity = 8
	c.NonBlocking = true
	return c
}

// ChaosScenario は障害注入シナリオを返す
// ストアの停止・一時停止・遅延で失敗経路を動かす
func ChaosScenario() Config {
	c := DefaultConfig()
	c.Name = "chaos"
	c.Description = "Store fault injection with dead-letter recording"
	c.Duration = 3 * time.Second
	c.Items = 0
	c.Rate = 2000
	c.Workers = 4
	c.Capacity = 50
	c.EnableChaos = true
	c.ChaosInterval = 400 * time.Millisecond
	c.AttackTypes = []chaos.AttackType{chaos.AttackKill, chaos.AttackSuspend, chaos.AttackDelay}
	c.SuspendTime = 200 * time.Millisecond
	c.DrainTimeout = 10 * time.Second
	return c
}

// PrintScenario はアイテムを標準出力に書き出すシナリオを返す
func PrintScenario() Config {
	c := DefaultConfig()
	c.Name = "print"
	c.Description = "Print each item with a single worker"
	c.Items = 10
	c.Workers = 1
	c.KeyRange = 10
	c.ValueSize = 4
	c.Handler = HandlerPrint
	return c
}

// GetPreset は名前からプリセットシナリオを取得する
func GetPreset(name string) (Config, bool) {
	presets := map[string]func() Config{
		"quick":        QuickScenario,
		"basic":        BasicScenario,
		"backpressure": BackpressureScenario,
		"chaos":        ChaosScenario,
		"print":        PrintScenario,
	}

	if fn, ok := presets[name]; ok {
		return fn(), true
	}
	return Config{}, false
}

// ListPresets は利用可能なプリセット名を返す
func ListPresets() []string {
	return []string{"quick", "basic", "backpressure", "chaos", "print"}
}
