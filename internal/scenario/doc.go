// Package scenario は統合シナリオ実行機能を提供する。
//
// シナリオエンジンはストア、dead-letter ログ、ハンドラ、ワーカープール、
// Producer、Monkey を連携させ、1回分の投入からドレインまでを実行する。
//
// # 機能
//
// - シナリオ定義と実行
// - 定義済みプリセットシナリオ
// - 実行結果のレポート生成
//
// # プリセットシナリオ
//
// - quick: インメモリストアでの短時間の動作確認
// - basic: SQLite への upsert
// - backpressure: 小容量キューへの AddNow と拒否数の計測
// - chaos: ストア障害注入と dead-letter 記録
// - print: 1ワーカーでアイテムを出力
//
// # 使用例
//
//	config := scenario.ChaosScenario()
//	engine := scenario.New(config)
//	result, err := engine.Run(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Report())
package scenario
