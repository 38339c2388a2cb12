// Package api exposes a running worker pool over HTTP and WebSocket.
//
// # Endpoints
//
//	POST /api/items         enqueue one {"key","value"} item (AddNow; ?wait=true uses Add)
//	GET  /api/status        pool state, queue depth and counters
//	GET  /api/metrics       processing metrics snapshot
//	POST /api/finish        finish the pool (?wait=false skips the drain, ?timeout=5s bounds it)
//	POST /api/produce       start a background producer ({"items","rate","key_range","value_size","nonblocking"})
//	GET  /api/produce       producer state and counters
//	DELETE /api/produce     stop the producer and report its final counters
//	GET  /ws                event stream (bus events plus a status message every second)
//
// POST /api/items answers 202 when the item is queued, 503 when the bounded
// queue is full and 410 once the pool has stopped accepting items.
// POST /api/produce answers 409 while a producer is already running.
package api
