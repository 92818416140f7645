// Package watcher provides log line sources for the watch daemon.
package watcher

import (
	"context"
)

// LineSource is the interface for receiving raw log lines.
// Implementations include stdin, a docker logs pipe, and test mocks.
type LineSource interface {
	// Lines returns a channel of log lines. The channel is closed when the
	// source is exhausted, stopped, or the context is cancelled.
	Lines(ctx context.Context) (<-chan string, error)

	// Stop signals the source to shut down.
	Stop()
}
