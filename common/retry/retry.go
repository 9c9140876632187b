// Package retry provides the backoff policy shared by endpoint failover and
// rate-limit handling, so both paths back off identically and can be tested
// with an injected sleep.
package retry

import (
	"context"
	"time"
)

// Policy describes a bounded exponential backoff.
//
// Fields:
// - MaxAttempts: the maximum number of attempts, including the first.
// - BaseDelay: the delay before the second attempt.
// - Multiplier: the factor applied to the delay after each failed attempt.
// - MaxDelay: the cap on the per-attempt delay.
// - Sleep: the sleep function; nil uses a context-aware time.After wait.
type Policy struct {
	MaxAttempts int
	Multiplier  float64
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy returns the policy used for RPC endpoint failover:
// 3 attempts, 1s base delay, doubling, capped at 8s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxDelay:    8 * time.Second,
	}
}

// Delay returns the backoff delay preceding the given attempt (1-based).
// Attempt 1 has no delay.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	delay := p.BaseDelay
	for i := 2; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}

	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// Do runs fn up to MaxAttempts times, sleeping the policy delay between
// attempts. The first nil error stops the loop. The last error is returned
// if every attempt fails, and context cancellation aborts the loop early.
//
// Parameters:
// - ctx: the context bounding all attempts and backoff sleeps.
// - fn: the unit of work, receiving the 1-based attempt number.
//
// Returns:
// - error: nil on the first success, the last attempt's error otherwise.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if delay := p.Delay(attempt); delay > 0 {
			if err := p.sleep(ctx, delay); err != nil {
				return err
			}
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if lastErr = fn(attempt); lastErr == nil {
			return nil
		}
	}

	return lastErr
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
