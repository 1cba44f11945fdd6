// Package dispatch runs the remote half of a save without making the caller
// wait for it. Failures are logged and dropped; there is no retry queue.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"example.com/bazaar-store/internal/mirror"
)

// Goroutine starts one goroutine per remote write.
type Goroutine struct {
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewGoroutine bounds each write by timeout.
func NewGoroutine(timeout time.Duration, logger *slog.Logger) *Goroutine {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Goroutine{timeout: timeout, logger: logger.With("component", "dispatch.goroutine")}
}

func (g *Goroutine) Dispatch(m mirror.Mirror, key string, value json.RawMessage) {
	g.wg.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()
		start := time.Now()
		if err := m.Upsert(ctx, key, value); err != nil {
			g.logger.Warn("remote upsert failed", "key", key, "error", err)
			return
		}
		g.logger.Debug("remote upsert", "key", key, "bytes", len(value), "took", time.Since(start))
	})
}

// Wait blocks until every dispatched write has finished.
func (g *Goroutine) Wait() {
	g.wg.Wait()
}

// Close waits for in-flight writes.
func (g *Goroutine) Close() error {
	g.Wait()
	return nil
}
