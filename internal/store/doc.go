// Package store provides the key-value backends written to by the upsert
// handler.
//
// Two implementations are available behind the Store interface:
//
//   - Memory: an in-memory map with a lifecycle (Stopped, Running,
//     Suspended) and an injectable response delay. Fault injection in the
//     chaos package drives these controls.
//   - SQLite: a single-connection database/sql handle on modernc.org/sqlite,
//     shared by every worker of a pool.
//
// # Basic Usage
//
//	s, err := store.Open(ctx, "sqlite", "items.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
//	if err := s.Upsert(ctx, "key", "value"); err != nil {
//	    log.Printf("upsert failed: %v", err)
//	}
//
// # Thread Safety
//
// Every Store is safe for concurrent use. Memory guards its map with a
// RWMutex; SQLite serializes statements on one connection.
package store
