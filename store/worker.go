package store

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/takeshijuan/ideogram-mcp-server-sub001/backoff"
	"github.com/takeshijuan/ideogram-mcp-server-sub001/id"
	"github.com/takeshijuan/ideogram-mcp-server-sub001/prediction"
	"github.com/takeshijuan/ideogram-mcp-server-sub001/retry"
	"github.com/takeshijuan/ideogram-mcp-server-sub001/upstream"
)

// progressCeiling is the highest advisory progress reported while the
// upstream call is still in flight. Settlement owns the jump to 100.
const progressCeiling = 95

// progressTick is how often in-flight records refresh progress and ETA.
const progressTick = time.Second

// newExecutor builds the retry executor from config.
func newExecutor(cfg RetryConfig, logger *slog.Logger) *retry.Executor {
	strategy := backoff.Strategy(backoff.NewExponential(cfg.InitialDelay, cfg.MaxDelay, cfg.Multiplier))
	if cfg.Jitter {
		strategy = backoff.NewExponentialWithJitter(cfg.InitialDelay, cfg.MaxDelay, cfg.Multiplier)
	}
	return retry.New(
		retry.WithMaxRetries(cfg.MaxRetries),
		retry.WithStrategy(strategy),
		retry.WithMaxDelay(cfg.MaxDelay),
		retry.WithLogger(logger),
	)
}

// worker drains the admission queue in strict FIFO order. Each of the N
// workers holds one concurrency slot; a record is promoted to processing
// only when its turn comes and a slot is free. No polling: workers sleep on
// the condition variable until Create signals.
func (s *Store) worker() {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}

		// Admission throttle, outside the lock so queued records stay
		// cancellable while waiting for a token.
		if s.limiter != nil {
			s.mu.Unlock()
			if err := s.limiter.Wait(s.baseCtx); err != nil {
				return
			}
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				return
			}
			if len(s.queue) == 0 {
				s.mu.Unlock()
				continue
			}
		}

		pid := s.queue[0]
		s.queue = s.queue[1:]

		rec := s.records[pid.String()]
		if rec == nil || rec.Status != prediction.StatusQueued {
			// Evicted or raced with cancel; nothing to run.
			s.mu.Unlock()
			continue
		}

		started := s.now()
		rec.Status = prediction.StatusProcessing
		rec.StartedAt = &started
		rec.ETASeconds = int(s.cfg.ExpectedDuration.Seconds())
		kind, request := rec.Kind, rec.Request
		snapshot := rec.Clone()
		s.mu.Unlock()

		s.hooks.EmitPredictionStarted(s.baseCtx, snapshot)

		done := make(chan struct{})
		s.wg.Add(1)
		go s.trackProgress(pid, started, done)

		result, attempts, err := s.exec.Execute(s.baseCtx, func(ctx context.Context) (json.RawMessage, error) {
			return s.submitter.Submit(ctx, kind, request)
		})
		close(done)

		s.settle(pid, started, result, attempts, err)
	}
}

// trackProgress advances the advisory progress and ETA of an in-flight
// record once per tick until settlement.
func (s *Store) trackProgress(pid id.PredictionID, started time.Time, done <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(progressTick)
	defer ticker.Stop()

	expected := s.cfg.ExpectedDuration.Seconds()

	for {
		select {
		case <-done:
			return
		case <-s.baseCtx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		rec := s.records[pid.String()]
		if rec == nil || rec.Status != prediction.StatusProcessing {
			s.mu.Unlock()
			return
		}

		elapsed := s.now().Sub(started).Seconds()
		pct := int(elapsed / expected * 100)
		if pct > progressCeiling {
			pct = progressCeiling
		}
		advanced := pct > rec.Progress
		if advanced {
			rec.Progress = pct
		}
		remaining := int(expected - elapsed)
		if remaining < 1 {
			remaining = 1
		}
		rec.ETASeconds = remaining
		var snapshot *prediction.Record
		if advanced {
			snapshot = rec.Clone()
		}
		s.mu.Unlock()

		if snapshot != nil {
			s.hooks.EmitPredictionProgressed(s.baseCtx, snapshot)
		}
	}
}

// settle performs the exactly-once terminal transition for a processing
// record. Only the worker that dispatched the record reaches here, so no
// double settlement is possible.
func (s *Store) settle(pid id.PredictionID, started time.Time, result json.RawMessage, attempts int, err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	rec := s.records[pid.String()]
	if rec == nil || rec.Status != prediction.StatusProcessing {
		s.mu.Unlock()
		return
	}

	now := s.now()
	rec.TerminalAt = &now
	rec.ETASeconds = 0

	if err != nil {
		rec.Status = prediction.StatusFailed
		rec.Error = failureFrom(err)
	} else {
		rec.Status = prediction.StatusCompleted
		rec.Result = result
		rec.Progress = 100
	}
	snapshot := rec.Clone()
	s.mu.Unlock()

	elapsed := now.Sub(started)
	if err != nil {
		s.hooks.EmitPredictionFailed(s.baseCtx, snapshot, err)
		s.logger.Warn("prediction failed",
			slog.String("prediction_id", pid.String()),
			slog.Int("attempts", attempts),
			slog.String("error", err.Error()),
		)
		return
	}

	s.hooks.EmitPredictionCompleted(s.baseCtx, snapshot, elapsed)
	s.logger.Info("prediction completed",
		slog.String("prediction_id", pid.String()),
		slog.Int("attempts", attempts),
		slog.Duration("elapsed", elapsed),
	)
}

// failureFrom maps the final upstream error into the structured failure
// recorded on the prediction. Partial-attempt detail never reaches the
// record; only the last error does.
func failureFrom(err error) *prediction.Failure {
	var ue *upstream.Error
	if errors.As(err, &ue) {
		return &prediction.Failure{
			Code:      ue.Code,
			Message:   ue.Message,
			Retryable: ue.Retryable,
		}
	}
	return &prediction.Failure{
		Code:      "upstream_error",
		Message:   err.Error(),
		Retryable: upstream.Retryable(err),
	}
}
