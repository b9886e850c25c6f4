package retry

import (
	"context"
	"time"
)

// Retriable lets an error opt out of further retries.
type Retriable interface {
	Retry() bool
}

// sleepCtx waits for the duration or until the context is done,
// whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WithBackoffCtx calls fn until it returns nil, returns a non-retriable
// Retriable error, or the context is done. Between calls it sleeps for the
// backoff's next duration.
func WithBackoffCtx(ctx context.Context, backoff Backoff, fn func() error) error {
	var err error
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err = fn()
		retriableErr, isRetriableErr := err.(Retriable)
		if err == nil || (isRetriableErr && !retriableErr.Retry()) {
			return err
		}
		if serr := sleepCtx(ctx, backoff.Duration()); serr != nil {
			return serr
		}
	}
}

// NWithBackoffCtx is WithBackoffCtx bounded to at most n calls of fn.
// If the tries are exhausted, the last error is returned.
func NWithBackoffCtx(ctx context.Context, backoff Backoff, n int, fn func() error) error {
	var err error
	_ = WithBackoffCtx(ctx, backoff, func() error {
		err = fn()
		n--
		if n == 0 {
			// Break out after n tries
			return nil
		}
		return err
	})
	return err
}
