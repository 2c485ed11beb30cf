// Package retry provides the executor that shields the store from transient
// upstream failures: it runs a single submit operation with bounded retries,
// exponential backoff, and rate-limit overrides. It has no knowledge of
// prediction records.
package retry

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/takeshijuan/ideogram-mcp-server-sub001/backoff"
	"github.com/takeshijuan/ideogram-mcp-server-sub001/upstream"
)

// Operation is a single attempt of an upstream call. It must be idempotent
// from the caller's perspective; the executor may invoke it several times.
type Operation func(ctx context.Context) (json.RawMessage, error)

// ShouldRetryFunc decides whether a failed attempt is worth retrying.
// attempt is the 1-based number of the attempt that just failed.
type ShouldRetryFunc func(err error, attempt int) bool

// Default retry tuning.
const (
	DefaultMaxRetries = 3
)

// Executor runs operations with sequential retries and backoff delays.
// Attempts never overlap; the executor only suspends for the gap between
// attempts. Safe for concurrent use.
type Executor struct {
	maxRetries  int
	strategy    backoff.Strategy
	maxDelay    time.Duration
	shouldRetry ShouldRetryFunc
	logger      *slog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxRetries sets how many retries follow the first attempt.
func WithMaxRetries(n int) Option {
	return func(e *Executor) { e.maxRetries = n }
}

// WithStrategy sets the backoff strategy for computed delays.
func WithStrategy(s backoff.Strategy) Option {
	return func(e *Executor) { e.strategy = s }
}

// WithMaxDelay sets the clamp applied to rate-limit override delays.
func WithMaxDelay(d time.Duration) Option {
	return func(e *Executor) { e.maxDelay = d }
}

// WithShouldRetry replaces the default transient-error classifier.
func WithShouldRetry(f ShouldRetryFunc) Option {
	return func(e *Executor) { e.shouldRetry = f }
}

// WithLogger sets the structured logger for per-attempt entries.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// New creates an Executor. Without options it retries up to 3 times on
// transient errors with the default exponential-jitter backoff.
func New(opts ...Option) *Executor {
	e := &Executor{
		maxRetries:  DefaultMaxRetries,
		strategy:    backoff.DefaultStrategy(),
		maxDelay:    backoff.DefaultMax,
		shouldRetry: func(err error, _ int) bool { return upstream.Retryable(err) },
		logger:      slog.Default(),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs op until it succeeds, a failure is classified as permanent,
// or all retries are exhausted. It returns the result, the total number
// of attempts made, and the last error when all attempts failed.
func (e *Executor) Execute(ctx context.Context, op Operation) (json.RawMessage, int, error) {
	var lastErr error

	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			if attempt > 0 {
				e.logger.Info("upstream call succeeded after retries",
					slog.Int("attempts", attempt+1),
				)
			}
			return result, attempt + 1, nil
		}
		lastErr = err

		if attempt == e.maxRetries || !e.shouldRetry(err, attempt+1) {
			e.logger.Warn("upstream call failed, not retrying",
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", e.maxRetries),
				slog.String("error", err.Error()),
			)
			return nil, attempt + 1, err
		}

		delay := e.strategy.Delay(attempt)
		if override, ok := upstream.RetryAfter(err); ok {
			delay = override
			if e.maxDelay > 0 && delay > e.maxDelay {
				delay = e.maxDelay
			}
		}

		e.logger.Info("upstream call failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()),
		)

		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return nil, attempt + 1, sleepErr
		}
	}

	// Unreachable: the loop always returns from its last iteration.
	return nil, e.maxRetries + 1, lastErr
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
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
