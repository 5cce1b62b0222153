// Package retry wraps remote calls with bounded exponential backoff.
//
// A call is attempted up to MaxRetries+1 times. Between attempts the caller
// sleeps min(MaxDelay, BaseDelay*2^attempt), optionally extended by a uniform
// jitter of up to a quarter of that delay. Errors rejected by Retryable are
// returned immediately without sleeping.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Defaults mirror the values used by every remote call in this module.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultMaxDelay   = 60 * time.Second
)

// jitterFraction bounds the random addition to a delay.
const jitterFraction = 0.25

// Policy configures Do.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Jitter     bool

	// Retryable reports whether err should trigger another attempt.
	// A nil Retryable treats every error as retryable.
	Retryable func(err error) bool

	// OnRetry is called before each sleep with the zero-based attempt that
	// just failed and the delay about to be applied.
	OnRetry func(attempt int, delay time.Duration, err error)

	// Sleep and Rand are replaceable for tests. Rand returns a value in [0, 1].
	Sleep func(ctx context.Context, d time.Duration) error
	Rand  func() float64
}

// DefaultPolicy returns the standard policy: 3 retries, 1s base, 60s cap,
// jitter on, every error retryable.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
		Jitter:     true,
	}
}

// Delay returns the sleep before retrying after the given zero-based attempt,
// without jitter.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if d > float64(p.MaxDelay) || math.IsInf(d, 1) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts are exhausted. The last error is returned unchanged on exhaustion.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxRetries := p.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}

		if p.Retryable != nil && !p.Retryable(err) {
			return zero, err
		}
		if attempt >= maxRetries {
			return zero, err
		}

		delay := p.Delay(attempt)
		if p.Jitter {
			delay += time.Duration(p.random() * jitterFraction * float64(delay))
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}

		if serr := p.sleep(ctx, delay); serr != nil {
			return zero, fmt.Errorf("retry aborted after attempt %d: %w", attempt+1, errors.Join(err, serr))
		}
	}
}

func (p Policy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return Sleep(ctx, d)
}

func (p Policy) random() float64 {
	if p.Rand != nil {
		return p.Rand()
	}
	return rand.Float64()
}

// Sleep blocks for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
