// Package handler provides ready-made worker.Handler implementations.
//
// Printer writes every item to an io.Writer and never fails. Upsert writes
// key/value pairs to a shared store.Store and appends the pairs it could
// not write to a dead-letter log before reporting failure to the pool.
//
// Both handlers are safe for concurrent use by every worker of a pool.
package handler
