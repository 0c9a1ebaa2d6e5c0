// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retry runs operations against unreliable services with bounded
// exponential backoff. Each call site passes its own Policy; there is no
// package-level retry state.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Policy controls how Do retries a failing operation.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt. It doubles on every
	// further attempt until MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Retryable decides whether an error is worth another attempt. Nil
	// means IsTransient.
	Retryable func(error) bool

	// OnRetry, when set, is called before each backoff wait.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Standard is the policy used for model calls and most search backends:
// five attempts starting at one second.
func Standard() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// Strict is for services with tight rate limits, such as Semantic
// Scholar's unauthenticated tier: the first wait is two seconds.
func Strict() Policy {
	return Policy{MaxAttempts: 5, BaseDelay: 2 * time.Second, MaxDelay: 60 * time.Second}
}

// Once disables retrying.
func Once() Policy {
	return Policy{MaxAttempts: 1}
}

// DelayHinter is implemented by errors that carry a server-suggested wait,
// such as an HTTP Retry-After header.
type DelayHinter interface {
	RetryDelay() time.Duration
}

// jitter returns a random extra wait of at most a tenth of d.
// Tests replace it to make delays deterministic.
var jitter = func(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(d)/10 + 1))
}

// Do calls op until it succeeds, returns a non-retryable error, or the
// policy's attempts run out. A non-retryable error is returned as is.
// Exhaustion returns an *ExhaustedError wrapping the last error. If ctx is
// cancelled during a wait, ctx.Err() is returned.
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var last error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		last = err

		// The caller gave up; a deadline inside op is not ours to retry.
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !retryable(err) {
			return zero, err
		}
		if attempt == attempts-1 {
			break
		}

		wait := p.delay(attempt, err)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, wait)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return zero, ctx.Err()
		case <-t.C:
		}
	}
	return zero, &ExhaustedError{Attempts: attempts, Last: last}
}

// delay computes min(BaseDelay·2^attempt, MaxDelay) plus jitter. A larger
// server hint replaces the computed delay, still capped at MaxDelay.
func (p Policy) delay(attempt int, err error) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt && (p.MaxDelay <= 0 || d < p.MaxDelay); i++ {
		d *= 2
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	var h DelayHinter
	if errors.As(err, &h) {
		if hint := h.RetryDelay(); hint > d {
			d = hint
			if p.MaxDelay > 0 && d > p.MaxDelay {
				d = p.MaxDelay
			}
			return d
		}
	}
	return d + jitter(d)
}
