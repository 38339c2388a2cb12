package handler

import (
	"context"
	"fmt"
	"sync/atomic"

	"kewkew/internal/deadletter"
	"kewkew/internal/logger"
	"kewkew/internal/store"
	"kewkew/internal/worker"
)

// Pair は upsert するキーと値
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (p Pair) String() string {
	return fmt.Sprintf("%s=%s", p.Key, p.Value)
}

// Upsert は共有ストアへ書き込むハンドラ。失敗したペアは dead-letter に残す
type Upsert struct {
	store      store.Store
	deadLetter *deadletter.Log
	log        *logger.Logger

	written atomic.Uint64
	failed  atomic.Uint64
}

var _ worker.Handler[Pair] = (*Upsert)(nil)

// NewUpsert は Upsert を作成する。dl が nil なら失敗は記録しない
func NewUpsert(s store.Store, dl *deadletter.Log, l *logger.Logger) *Upsert {
	if l == nil {
		l = logger.Default
	}
	return &Upsert{store: s, deadLetter: dl, log: l}
}

// Process はペアを upsert する
func (u *Upsert) Process(ctx context.Context, item Pair) bool {
	err := u.store.Upsert(ctx, item.Key, item.Value)
	if err == nil {
		u.written.Add(1)
		return true
	}

	u.failed.Add(1)
	u.log.Debug("upsert", "failed to upsert %s: %v", item.Key, err)
	if u.deadLetter != nil {
		if dlErr := u.deadLetter.Append(item.Key, item.Value); dlErr != nil {
			u.log.Warn("upsert", "failed to record dead letter: %v", dlErr)
		}
	}
	return false
}

// Written は書き込みに成功した件数を返す
func (u *Upsert) Written() uint64 {
	return u.written.Load()
}

// Failed は書き込みに失敗した件数を返す
func (u *Upsert) Failed() uint64 {
	return u.failed.Load()
}
