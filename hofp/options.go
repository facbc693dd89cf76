package hofp

import (
	"context"
	"runtime"

	"github.com/zffdev/zff/log"
)

// Options encapsulates the available options which can be used when creating a worker pool.
type Options struct {
	// Context governs the lifetime of the pool; cancelling it stops all workers and causes queued/in-flight
	// functions to abort as soon as they observe cancellation. Defaults to context.Background().
	Context context.Context

	// Size dictates the number of goroutines created to process incoming functions. Defaults to the number of
	// vCPUs; the chunk engine overrides this to match its configured worker count.
	Size int

	// BufferMultiplier scales the size of the internal work queue relative to Size, allowing producers to stay
	// ahead of the workers without blocking on every Queue call. Defaults to 1.
	BufferMultiplier int

	// LogPrefix is the prefix used when logging errors which occur once teardown has already begun. Defaults to
	// '(hofp)'.
	LogPrefix string

	// Logger receives a line whenever a worker's function errors after the pool has already begun tearing down
	// (i.e. a secondary error that would otherwise be silently dropped). Defaults to a no-op logger.
	Logger log.Logger
}

func (o *Options) defaults() {
	if o.Context == nil {
		o.Context = context.Background()
	}

	if o.Size == 0 {
		o.Size = runtime.NumCPU()
	}

	if o.BufferMultiplier == 0 {
		o.BufferMultiplier = 1
	}

	if o.LogPrefix == "" {
		o.LogPrefix = "(hofp)"
	}
}
