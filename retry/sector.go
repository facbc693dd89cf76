package retry

import (
	"context"
	"time"
)

// SectorReadOptions configures RetrySectorRead.
type SectorReadOptions struct {
	// MaxRetries is the number of times a failing sector read is retried before giving up. Defaults to 3.
	MaxRetries int

	// MinDelay is the initial backoff between attempts. Defaults to 50ms.
	MinDelay time.Duration

	// Log, when non-nil, is invoked before each retry with the one-based number of the attempt that failed and the error which
	// triggered it.
	Log func(attempt int, err error)
}

// RetrySectorRead retries a source sector read a bounded number of times with exponential backoff, returning the
// last error wrapped in a *RetriesExhaustedError if every attempt failed. It's used by the acquisition coordinator
// so a single bad sector range doesn't abort an entire physical object; on exhaustion the caller degrades the
// chunk instead of failing the whole acquisition.
func RetrySectorRead(ctx context.Context, opts SectorReadOptions, read func() error) error {
	options := RetryerOptions[struct{}]{
		Algorithm:  AlgorithmExponential,
		MaxRetries: opts.MaxRetries,
		MinDelay:   opts.MinDelay,
	}

	if opts.Log != nil {
		options.Log = func(ctx *Context, _ struct{}, err error) { opts.Log(ctx.Attempt(), err) }
	}

	_, err := NewRetryer[struct{}](options).DoWithContext(ctx, func(_ *Context) (struct{}, error) {
		return struct{}{}, read()
	})

	return err
}
