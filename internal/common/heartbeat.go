// -----------------------------------------------------------------------
// Heartbeat - Concurrent liveness ticker for long awaited operations
// -----------------------------------------------------------------------

package common

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
)

// Heartbeat periodically invokes a beat function while a long operation is in
// flight, so an external stall detector can tell "slow but alive" from
// "crashed". The beat typically refreshes a persisted liveness timestamp.
type Heartbeat struct {
	interval time.Duration
	beat     func()
	logger   arbor.ILogger
	done     chan struct{}
	stopped  chan struct{}
}

// StartHeartbeat starts beating immediately and then every interval until
// Stop is called. The first beat fires synchronously so the timestamp is
// fresh before the guarded operation begins.
func StartHeartbeat(logger arbor.ILogger, interval time.Duration, beat func()) *Heartbeat {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	h := &Heartbeat{
		interval: interval,
		beat:     beat,
		logger:   logger,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	beat()

	go func() {
		defer close(h.stopped)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				h.beat()
			}
		}
	}()

	return h
}

// Stop halts the heartbeat and waits for the ticker goroutine to exit.
// Safe to call exactly once; callers defer it so cleanup is guaranteed on
// both success and failure paths.
func (h *Heartbeat) Stop() {
	close(h.done)
	<-h.stopped
}

// WithHeartbeat runs fn while a heartbeat refreshes liveness in the background.
// The heartbeat is stopped before returning regardless of fn's outcome.
func WithHeartbeat(ctx context.Context, logger arbor.ILogger, interval time.Duration, beat func(), fn func(ctx context.Context) error) error {
	h := StartHeartbeat(logger, interval, beat)
	defer h.Stop()
	return fn(ctx)
}
