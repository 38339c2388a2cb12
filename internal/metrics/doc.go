// Package metrics collects per-pool item statistics.
//
// A Metrics value counts enqueued and rejected submissions, successful,
// failed and panicked handler calls, handler latency (average and a
// sampled P99) and the number of handler calls in flight together with its
// high-water mark.
//
// # Basic Usage
//
//	m := metrics.New()
//
//	m.BeginInFlight()
//	start := time.Now()
//	ok := handle(item)
//	m.EndInFlight()
//	if ok {
//	    m.RecordSuccess(time.Since(start))
//	} else {
//	    m.RecordFailure(time.Since(start))
//	}
//
//	snap := m.Snapshot()
//	fmt.Printf("processed=%d max_in_flight=%d p99=%v\n",
//	    snap.Processed, snap.MaxInFlight, snap.P99Latency)
//
// All counters are atomics; latency samples sit behind a RWMutex.
package metrics
