// Package logger provides a small leveled logger shared by every kewkew
// component.
//
// Entries carry a timestamp, a level, an optional component label and the
// formatted message:
//
//	[2006-01-02 15:04:05.000] [INFO] [pool-3f2a] pool started with 3 workers
//
// # Basic Usage
//
//	logger.Info("", "starting")
//	logger.Warn("pool-3f2a/worker-1", "item rejected: %v", err)
//
//	l := logger.New(os.Stderr, logger.LevelDebug)
//	l.Debug("producer", "submitted %d items", n)
//
// Levels can be read from configuration files with ParseLevel.
//
// # Thread Safety
//
// A Logger serializes writes with a mutex and is safe for concurrent use by
// every worker goroutine.
package logger
