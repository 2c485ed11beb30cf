package retry

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/takeshijuan/ideogram-mcp-server-sub001/backoff"
	"github.com/takeshijuan/ideogram-mcp-server-sub001/upstream"
)

// newTestExecutor builds an executor that records requested delays instead
// of sleeping.
func newTestExecutor(t *testing.T, delays *[]time.Duration, opts ...Option) *Executor {
	t.Helper()
	e := New(append([]Option{WithLogger(slog.Default())}, opts...)...)
	e.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return e
}

func TestExecute_SucceedsFirstAttempt(t *testing.T) {
	var delays []time.Duration
	e := newTestExecutor(t, &delays)

	want := json.RawMessage(`{"url":"https://img.example/1.png"}`)
	result, attempts, err := e.Execute(context.Background(), func(context.Context) (json.RawMessage, error) {
		return want, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if string(result) != string(want) {
		t.Errorf("result = %s, want %s", result, want)
	}
	if len(delays) != 0 {
		t.Errorf("slept %d times, want 0", len(delays))
	}
}

func TestExecute_RetriesTransientThenSucceeds(t *testing.T) {
	var delays []time.Duration
	e := newTestExecutor(t, &delays, WithMaxRetries(3))

	calls := 0
	result, attempts, err := e.Execute(context.Background(), func(context.Context) (json.RawMessage, error) {
		calls++
		if calls <= 2 {
			return nil, upstream.NewError(503, "temporarily unavailable")
		}
		return json.RawMessage(`{}`), nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if result == nil {
		t.Error("result is nil on success")
	}
	if len(delays) != 2 {
		t.Errorf("slept %d times, want 2", len(delays))
	}
}

func TestExecute_PermanentErrorFailsFast(t *testing.T) {
	var delays []time.Duration
	e := newTestExecutor(t, &delays, WithMaxRetries(3))

	calls := 0
	_, attempts, err := e.Execute(context.Background(), func(context.Context) (json.RawMessage, error) {
		calls++
		return nil, upstream.NewError(400, "prompt rejected")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 || calls != 1 {
		t.Errorf("attempts = %d, calls = %d, want 1 each", attempts, calls)
	}
	var ue *upstream.Error
	if !errors.As(err, &ue) || ue.StatusCode != 400 {
		t.Errorf("propagated error = %v, want the original 400", err)
	}
	if len(delays) != 0 {
		t.Errorf("slept %d times, want 0", len(delays))
	}
}

func TestExecute_ExhaustsRetries(t *testing.T) {
	var delays []time.Duration
	e := newTestExecutor(t, &delays, WithMaxRetries(2))

	calls := 0
	_, attempts, err := e.Execute(context.Background(), func(context.Context) (json.RawMessage, error) {
		calls++
		return nil, upstream.NewError(500, "boom")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 3 || calls != 3 {
		t.Errorf("attempts = %d, calls = %d, want 3 each", attempts, calls)
	}
	if len(delays) != 2 {
		t.Errorf("slept %d times, want 2", len(delays))
	}
}

func TestExecute_BackoffSequence(t *testing.T) {
	var delays []time.Duration
	e := newTestExecutor(t, &delays,
		WithMaxRetries(5),
		WithStrategy(backoff.NewExponential(1000*time.Millisecond, 10000*time.Millisecond, 2)),
	)

	_, _, err := e.Execute(context.Background(), func(context.Context) (json.RawMessage, error) {
		return nil, upstream.NewError(503, "down")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	want := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		10000 * time.Millisecond,
	}
	if len(delays) != len(want) {
		t.Fatalf("got %d delays, want %d", len(delays), len(want))
	}
	for i, d := range want {
		if delays[i] != d {
			t.Errorf("delay[%d] = %v, want %v", i, delays[i], d)
		}
	}
}

func TestExecute_RetryAfterOverridesBackoff(t *testing.T) {
	var delays []time.Duration
	e := newTestExecutor(t, &delays,
		WithMaxRetries(1),
		WithStrategy(backoff.NewConstant(time.Second)),
		WithMaxDelay(10*time.Second),
	)

	rateLimited := upstream.NewError(429, "slow down")
	rateLimited.RetryAfter = 5 * time.Second

	_, _, _ = e.Execute(context.Background(), func(context.Context) (json.RawMessage, error) {
		return nil, rateLimited
	})

	if len(delays) != 1 || delays[0] != 5*time.Second {
		t.Errorf("delays = %v, want [5s]", delays)
	}
}

func TestExecute_RetryAfterClampedAtMaxDelay(t *testing.T) {
	var delays []time.Duration
	e := newTestExecutor(t, &delays,
		WithMaxRetries(1),
		WithStrategy(backoff.NewConstant(time.Second)),
		WithMaxDelay(10*time.Second),
	)

	rateLimited := upstream.NewError(429, "slow down")
	rateLimited.RetryAfter = 30 * time.Second

	_, _, _ = e.Execute(context.Background(), func(context.Context) (json.RawMessage, error) {
		return nil, rateLimited
	})

	if len(delays) != 1 || delays[0] != 10*time.Second {
		t.Errorf("delays = %v, want [10s]", delays)
	}
}

func TestExecute_CustomShouldRetry(t *testing.T) {
	var delays []time.Duration
	e := newTestExecutor(t, &delays,
		WithMaxRetries(5),
		WithShouldRetry(func(_ error, attempt int) bool { return attempt < 2 }),
	)

	calls := 0
	_, attempts, _ := e.Execute(context.Background(), func(context.Context) (json.RawMessage, error) {
		calls++
		return nil, errors.New("flaky")
	})

	// Attempt 1 retried, attempt 2 rejected by the predicate.
	if attempts != 2 || calls != 2 {
		t.Errorf("attempts = %d, calls = %d, want 2 each", attempts, calls)
	}
}

func TestExecute_ContextCancelledDuringDelay(t *testing.T) {
	e := New(WithMaxRetries(3), WithStrategy(backoff.NewConstant(time.Minute)))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, _, err := e.Execute(ctx, func(context.Context) (json.RawMessage, error) {
		return nil, upstream.NewError(503, "down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancel took %v, expected prompt return", elapsed)
	}
}
