// -----------------------------------------------------------------------
// Safe Goroutine - Panic-protected goroutine launcher
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/ternarybob/arbor"
)

var goroutineCounter atomic.Int64

// GetGoroutineCount reports how many goroutines were launched via SafeGo.
// Exposed on the status endpoint as a rough liveness signal.
func GetGoroutineCount() int64 {
	return goroutineCounter.Load()
}

// SafeGo launches fn on its own goroutine with panic recovery. Detached work
// like pipeline execution and event fan-out must never take the process down;
// a panic is logged with its stack and the service keeps running.
func SafeGo(logger arbor.ILogger, name string, fn func()) {
	goroutineCounter.Add(1)

	go func() {
		defer logRecovered(logger, name)
		fn()
	}()
}

func logRecovered(logger arbor.ILogger, name string) {
	v := recover()
	if v == nil {
		return
	}

	buf := make([]byte, 4096)
	stack := string(buf[:runtime.Stack(buf, false)])

	if logger == nil {
		fmt.Fprintf(os.Stderr, "PANIC in goroutine %s: %v\n%s\n", name, v, stack)
		return
	}
	logger.Error().
		Str("goroutine", name).
		Str("panic", fmt.Sprintf("%v", v)).
		Str("stack", stack).
		Msg("Recovered from panic in goroutine - continuing service operation")
}
