package store

import (
	"context"
	"errors"
	"fmt"

	"kewkew/internal/logger"
)

var (
	// ErrUnavailable is returned while a store is stopped or suspended.
	ErrUnavailable = errors.New("store is unavailable")
	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown store driver")
)

// Store は upsert ハンドラが書き込むキーバリューストア
type Store interface {
	Upsert(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*SQLite)(nil)
)

// Drivers は利用可能なドライバ名
var Drivers = []string{"memory", "sqlite"}

// Open はドライバ名に応じてストアを開く。memory は起動済みの状態で返す
func Open(ctx context.Context, driver, path string) (Store, error) {
	switch driver {
	case "", "memory":
		m := NewMemory("store-memory")
		if err := m.Start(ctx); err != nil {
			return nil, err
		}
		return m, nil
	case "sqlite":
		if path == "" {
			path = ":memory:"
		}
		s, err := OpenSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		logger.Info("store", "SQLite store opened at %s", s.Path())
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
