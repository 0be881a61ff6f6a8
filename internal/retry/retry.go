// Package retry runs an operation under a fixed backoff schedule.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Policy is an initial attempt followed by one retry per entry in Delays,
// each retry waiting the matching delay first.
type Policy struct {
	Delays []time.Duration
}

// DefaultDispatchPolicy retries a failed dispatch three times after 1, 5 and
// 15 minutes.
func DefaultDispatchPolicy() Policy {
	return Policy{Delays: []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second}}
}

func (p Policy) MaxAttempts() int {
	return len(p.Delays) + 1
}

// Do calls fn until it succeeds, the policy is exhausted or ctx is done.
// attempt starts at 1. The returned error wraps ErrAttemptsExhausted and the
// last failure when every attempt failed.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	var last error
	for attempt := 1; attempt <= p.MaxAttempts(); attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, p.Delays[attempt-2]); err != nil {
				return fmt.Errorf("retry interrupted after %d attempts: %w", attempt-1, errors.Join(err, last))
			}
		}

		last = fn(ctx, attempt)
		if last == nil {
			return nil
		}

		if attempt < p.MaxAttempts() {
			slog.Warn("attempt failed, will retry",
				"attempt", attempt,
				"next_delay", p.Delays[attempt-1].String(),
				"err", last,
			)
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, p.MaxAttempts(), last)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
