package imagegen

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"time"
)

// RetryPolicy bounds automatic retries of one stage call.
//
// Retries happen inside a single stage invocation: the orchestrator still
// enters each state once, and a stage that exhausts its attempts fails with
// the last classified error.
type RetryPolicy struct {
	// MaxAttempts includes the first call. 0 or 1 disables retrying.
	MaxAttempts int

	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Multiplier grows the delay between attempts (default 2).
	Multiplier float64

	// Jitter randomizes each delay by up to ±25%.
	Jitter bool

	// RetryOn lists the kinds worth another attempt.
	RetryOn []Kind
}

// DefaultRetryPolicy is a single attempt; enabling it only changes
// MaxAttempts, and only ProviderWarmingUp is retried.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  1,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		RetryOn:      []Kind{KindProviderWarmingUp},
	}
}

// Enabled reports whether more than one attempt is allowed.
func (p RetryPolicy) Enabled() bool {
	return p.MaxAttempts > 1
}

// ShouldRetry reports whether err is classified with a kind listed in RetryOn.
// Kinds that are not transient are never retried, whatever RetryOn says.
func (p RetryPolicy) ShouldRetry(err error) bool {
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		return false
	}
	return genErr.Kind.IsTransient() && slices.Contains(p.RetryOn, genErr.Kind)
}

// Delay returns the wait before retry number attempt (0-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	delay := float64(p.InitialDelay) * math.Pow(multiplier, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter && delay > 0 {
		delay += delay * 0.25 * (rand.Float64()*2 - 1)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Do calls fn until it succeeds, fails with a non-retryable error, the
// attempts run out, or ctx is done. onRetry, if set, is told about each
// failed attempt that will be retried.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry func(attempt int, delay time.Duration, err error)) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts-1 || !p.ShouldRetry(lastErr) {
			return lastErr
		}

		delay := p.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt+1, delay, lastErr)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
	}
	return lastErr
}
