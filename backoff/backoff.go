// Package backoff provides retry delay strategies for upstream submission.
// All strategies are safe for concurrent use (they are stateless).
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Jitter bounds for the Exponential strategy. The computed delay is scaled
// by a uniform factor in [JitterMin, JitterMax] before clamping at Max.
const (
	JitterMin = 0.75
	JitterMax = 1.25
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (0-indexed).
	// Attempt 0 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// Constant always returns the same delay regardless of attempt number.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant backoff strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration {
	return c.Interval
}

// Exponential grows the delay geometrically:
// Delay = min(Initial * Multiplier^attempt, Max). With Jitter enabled the
// pre-clamp value is scaled by a uniform random factor in [0.75, 1.25],
// spreading out retries from concurrent workers.
type Exponential struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     bool
}

// NewExponential creates an exponential backoff strategy without jitter.
func NewExponential(initial, maxDelay time.Duration, multiplier float64) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay, Multiplier: multiplier}
}

// NewExponentialWithJitter creates an exponential backoff strategy with
// uniform [0.75, 1.25] jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration, multiplier float64) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay, Multiplier: multiplier, Jitter: true}
}

// Delay returns the backoff for the given 0-indexed retry attempt.
func (e *Exponential) Delay(attempt int) time.Duration {
	mult := e.Multiplier
	if mult <= 0 {
		mult = 2
	}

	d := float64(e.Initial) * math.Pow(mult, float64(attempt))
	if e.Jitter {
		d *= JitterMin + rand.Float64()*(JitterMax-JitterMin) //nolint:gosec // jitter intentionally uses non-crypto rand
	}
	if e.Max > 0 && d > float64(e.Max) {
		return e.Max
	}
	return time.Duration(d)
}

// Default backoff tuning for upstream submission.
const (
	DefaultInitial    = 1 * time.Second
	DefaultMax        = 10 * time.Second
	DefaultMultiplier = 2.0
)

// DefaultStrategy returns the backoff used when none is configured:
// exponential with 1s initial, 10s max, multiplier 2, jitter on.
func DefaultStrategy() Strategy {
	return NewExponentialWithJitter(DefaultInitial, DefaultMax, DefaultMultiplier)
}
