// Package chaos はストアへの障害注入機能を提供する。
//
// Monkeyはメモリストアに対して定期的に障害を注入し、upsert ハンドラの
// 失敗経路（dead-letter への記録とプールへの失敗報告）を動かすために
// 使用される。
//
// # 障害タイプ
//
// - Kill: ストアを停止（書き込みが失敗する）
// - Suspend: ストアを一時停止（書き込みが失敗する）
// - Delay: ストアの応答に遅延を注入
//
// 障害は SuspendTime 経過後に自動で解除される。Stop 時には残っている
// 障害をすべて解除する。
//
// # 使用例
//
//	config := chaos.DefaultConfig()
//	config.Interval = 3 * time.Second
//
//	monkey := chaos.New([]*store.Memory{mem}, config)
//	monkey.SetEventBus(bus)
//	monkey.Start(ctx)
//	defer monkey.Stop()
package chaos
