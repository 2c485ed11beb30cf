package store

import "time"

// RetryConfig tunes the executor that wraps upstream submission.
type RetryConfig struct {
	// MaxRetries is how many retries follow the first attempt.
	MaxRetries int

	// InitialDelay is the backoff before the first retry.
	InitialDelay time.Duration

	// MaxDelay caps both computed backoff and rate-limit overrides.
	MaxDelay time.Duration

	// Multiplier is the geometric growth factor between delays.
	Multiplier float64

	// Jitter enables the uniform [0.75, 1.25] scaling of computed delays.
	Jitter bool
}

// Config holds configuration for the Store.
type Config struct {
	// Concurrency is the maximum number of upstream calls in flight.
	Concurrency int

	// Retention is how long terminal records are kept before eviction.
	Retention time.Duration

	// SweepInterval is how often the expiry janitor runs.
	SweepInterval time.Duration

	// ExpectedDuration seeds the advisory progress/ETA estimate for a
	// single upstream call.
	ExpectedDuration time.Duration

	// AdmissionRate throttles dispatch to this many jobs per second.
	// Zero disables the throttle.
	AdmissionRate float64

	// AdmissionBurst is the token-bucket burst size for the admission
	// throttle. Defaults to Concurrency if zero while AdmissionRate is set.
	AdmissionBurst int

	// Retry tunes the upstream retry executor.
	Retry RetryConfig
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:      3,
		Retention:        1 * time.Hour,
		SweepInterval:    1 * time.Minute,
		ExpectedDuration: 30 * time.Second,
		Retry: RetryConfig{
			MaxRetries:   3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2,
			Jitter:       true,
		},
	}
}

// withDefaults fills zero fields with the DefaultConfig values.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = def.Concurrency
	}
	if c.Retention <= 0 {
		c.Retention = def.Retention
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.ExpectedDuration <= 0 {
		c.ExpectedDuration = def.ExpectedDuration
	}
	if c.AdmissionRate > 0 && c.AdmissionBurst <= 0 {
		c.AdmissionBurst = c.Concurrency
	}
	if c.Retry.MaxRetries < 0 {
		c.Retry.MaxRetries = 0
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = def.Retry.InitialDelay
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = def.Retry.MaxDelay
	}
	if c.Retry.Multiplier <= 0 {
		c.Retry.Multiplier = def.Retry.Multiplier
	}
	return c
}
