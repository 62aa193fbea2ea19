package misc

import (
	"context"
	"time"
)

// DefaultBackoff keeps the total wait well under one poll interval.
var DefaultBackoff = []time.Duration{
	250 * time.Millisecond,
	1 * time.Second,
	2 * time.Second,
}

// Retry runs op until it succeeds, returns a non-retryable error, runs out of
// delays, or ctx is done. onRetry, if set, is called before each wait.
func Retry(ctx context.Context, delays []time.Duration, isRetryable func(error) bool, onRetry func(attempt int, err error), op func() error) error {
	var err error
	for i := 0; ; i++ {
		if err = op(); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i >= len(delays) || !isRetryable(err) {
			return err
		}
		if onRetry != nil {
			onRetry(i+1, err)
		}
		t := time.NewTimer(delays[i])
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}
