// Package retry runs an operation again after a detected concurrent-write
// collision, up to a fixed bound with a fixed delay between attempts.
package retry

import (
	"context"
	"time"
)

type Policy struct {
	Attempts int           // total attempts, including the first
	Delay    time.Duration // fixed pause between attempts
	// RetryIf decides whether an error is transient. A nil predicate
	// retries on every error.
	RetryIf func(error) bool
}

// Do executes op until it succeeds, returns a non-retryable error, the
// attempt budget runs out, or ctx is done. The last error is returned on
// exhaustion so the caller can classify it.
func Do(ctx context.Context, p Policy, op func(context.Context) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 && p.Delay > 0 {
			t := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		if err = op(ctx); err == nil {
			return nil
		}
		if p.RetryIf != nil && !p.RetryIf(err) {
			return err
		}
	}
	return err
}
