package ids

import (
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is a sum type over the two retry strategies: fixed and
// exponential. Exactly one of Fixed / Exponential is non-nil.
type RetryPolicy struct {
	Fixed *FixedRetry `toml:"-"`
	Exponential *ExponentialRetry `toml:"-"`
}

// FixedRetry retries count times with a constant delay, jittered.
type FixedRetry struct {
	Count int
	Delay Duration
	Jitter bool
}

// ExponentialRetry retries count times, doubling the delay each attempt up
// to an optional cap, jittered.
type ExponentialRetry struct {
	Count int
	Delay Duration
	Jitter bool
	MaxDelay *Duration
}

// NoRetries is the zero-attempt policy: a test runs once and never retries.
var NoRetries = RetryPolicy{Fixed: &FixedRetry{Count: 0}}

// Attempts returns the total number of attempts (1 + retry count).
func (p RetryPolicy) Attempts() int {
	switch {
	case p.Fixed != nil:
		return p.Fixed.Count + 1
	case p.Exponential != nil:
		return p.Exponential.Count + 1
	default:
		return 1
	}
}

// Backoff returns an iterator yielding exactly Count delays — one per
// retry, not per attempt ("derived backoff iterator yields
// count delays"). jitterFn defaults to the spec's "uniform sample in
// (0.5, 1.0]" when nil; tests inject a deterministic one.
func (p RetryPolicy) Backoff(jitterFn func() float64) []time.Duration {
	if jitterFn == nil {
		jitterFn = defaultJitterSample
	}

	switch {
	case p.Exponential != nil:
		return exponentialDelays(*p.Exponential, jitterFn)
	case p.Fixed != nil:
		return fixedDelays(*p.Fixed, jitterFn)
	default:
		return nil
	}
}

func fixedDelays(r FixedRetry, jitterFn func() float64) []time.Duration {
	delays := make([]time.Duration, r.Count)
	for i := range delays {
		d := r.Delay.Duration
		if r.Jitter {
			d = scale(d, jitterFn())
		}
		delays[i] = d
	}
	return delays
}

// exponentialDelays layers this exact doubling-with-cap semantics on
// top of cenkalti/backoff's curve primitive: we drive one
// backoff.ExponentialBackOff per retry rather than reimplementing the
// multiplier math, since RandomizationFactor there does not match the
// spec's (0.5, 1.0] half-open jitter window.
func exponentialDelays(r ExponentialRetry, jitterFn func() float64) []time.Duration {
	curve := backoff.NewExponentialBackOff()
	curve.InitialInterval = r.Delay.Duration
	curve.Multiplier = 2.0
	curve.RandomizationFactor = 0 // we apply our own jitter below
	curve.MaxElapsedTime = 0 // this iterator never stops early on elapsed time
	if r.MaxDelay != nil {
		curve.MaxInterval = r.MaxDelay.Duration
	} else {
		curve.MaxInterval = time.Duration(math.MaxInt64) // no cap: override the library's 60s default
	}
	curve.Reset()

	delays := make([]time.Duration, r.Count)
	for i := range delays {
		d := curve.NextBackOff()
		if r.MaxDelay != nil && d > r.MaxDelay.Duration {
			d = r.MaxDelay.Duration
		}
		if r.Jitter {
			d = scale(d, jitterFn())
		}
		delays[i] = d
	}
	return delays
}

func scale(d time.Duration, factor float64) time.Duration {
	return time.Duration(float64(d) * factor)
}

// defaultJitterSample draws uniformly from the half-open interval (0.5,
// 1.0]: jitter multiplies a delay by a uniform sample in that range.
func defaultJitterSample() float64 {
	// rand.Float64 is [0,1); shift into (0.5, 1.0].
	return 1.0 - rand.Float64()*0.5
}
