package utils

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Backoff retries a connection step with a doubling delay between attempts.
// Waiting stops as soon as the context is done, so an interrupted run does
// not sit out the remaining delays.
type Backoff struct {
	Attempts int
	Delay    time.Duration
	// Retryable reports whether a failure is worth another attempt. Nil
	// treats every error as transient.
	Retryable func(error) bool
	Logger    *Logger
}

// Run calls fn until it succeeds, a failure is not retryable, the attempts
// are used up or ctx is done. The last error from fn is wrapped in the
// result.
func (b Backoff) Run(ctx context.Context, step string, fn func(context.Context) error) error {
	attempts := b.Attempts
	if attempts < 1 {
		attempts = 1
	}
	delay := b.Delay

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if b.Retryable != nil && !b.Retryable(err) {
			return fmt.Errorf("%s: %w", step, err)
		}
		if attempt == attempts {
			return fmt.Errorf("%s: gave up after %d attempts: %w", step, attempts, err)
		}
		if b.Logger != nil {
			b.Logger.Warn("%s: attempt %d/%d failed: %v (next in %v)", step, attempt, attempts, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s: %w", step, errors.Join(ctx.Err(), err))
		case <-timer.C:
		}
		delay *= 2
	}
}
