// Package retry implements bounded retry with exponential backoff for the
// image-generation path. An attempt counts as failed when it returns an
// error; the caller decides what "no result" means (the asset stage treats
// an attempt that produced no image as a failure).
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Policy controls retry behavior.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the delay between retries. Zero means no cap.
	MaxDelay time.Duration

	// Multiplier controls backoff growth (2.0 = double each retry).
	Multiplier float64

	// Jitter randomizes delays by +/- 50% to spread retry bursts.
	Jitter bool

	// OnRetry is invoked before sleeping for a retry attempt.
	OnRetry func(err error, attempt int, delay time.Duration)
}

// DefaultPolicy matches the pipeline defaults: three attempts, 2s base
// delay doubling each retry.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// SleepFunc sleeps for d or until ctx is done. Injectable for tests.
type SleepFunc func(ctx context.Context, d time.Duration) error

// DefaultSleep waits on a timer and honors context cancellation.
func DefaultSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

// Do runs fn until it succeeds or the policy is exhausted. The error from
// the terminal attempt is returned. Context cancellation aborts immediately
// and is never retried.
func Do[T any](ctx context.Context, policy Policy, fn func() (T, error)) (T, error) {
	return DoWithSleep(ctx, policy, DefaultSleep, rand.Float64, fn)
}

// DoWithSleep is Do with an injectable sleep and random source.
func DoWithSleep[T any](ctx context.Context, policy Policy, sleep SleepFunc, randFloat func() float64, fn func() (T, error)) (T, error) {
	var zero T
	if sleep == nil {
		sleep = DefaultSleep
	}
	if randFloat == nil {
		randFloat = rand.Float64
	}
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		if attempt == maxAttempts {
			return zero, err
		}

		delay := Delay(policy, randFloat, attempt)
		if policy.OnRetry != nil {
			policy.OnRetry(err, attempt, delay)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}
	return zero, context.Canceled
}

// Delay computes the backoff before the retry that follows attempt n
// (n is 1-based): base * multiplier^(n-1), capped, optionally jittered.
func Delay(policy Policy, randFloat func() float64, attempt int) time.Duration {
	base := policy.BaseDelay
	if base < 0 {
		base = 0
	}
	mult := policy.Multiplier
	if mult < 1 {
		mult = 2
	}
	d := time.Duration(float64(base) * math.Pow(mult, float64(attempt-1)))
	if policy.MaxDelay > 0 && d > policy.MaxDelay {
		d = policy.MaxDelay
	}
	if policy.Jitter && d > 0 {
		if randFloat == nil {
			randFloat = rand.Float64
		}
		// +/- 50%: factor in [0.5, 1.5]
		d = time.Duration(float64(d) * (0.5 + randFloat()))
	}
	return d
}
