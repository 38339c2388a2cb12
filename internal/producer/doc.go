// Package producer generates key/value items and feeds them to a pool.
//
// A Producer draws keys from a fixed key range and random values of a fixed
// size, paces itself with a token-bucket limiter (golang.org/x/time/rate),
// and submits each item through either the blocking Add path or the
// non-blocking AddNow path. On the non-blocking path, items refused with
// worker.ErrQueueFull are counted as rejected and not retried.
//
// # Basic Usage
//
//	pool, _ := worker.New[handler.Pair](h, worker.DefaultPoolConfig())
//
//	config := producer.DefaultConfig()
//	config.Items = 10000
//	config.Rate = 500 // items per second
//	p := producer.New(pool, config)
//
//	stats, err := p.Run(ctx)
//	fmt.Printf("submitted: %d, rejected: %d\n", stats.Submitted, stats.Rejected)
//
// Start and Stop run the same loop in the background.
package producer
