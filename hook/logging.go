package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/takeshijuan/ideogram-mcp-server-sub001/prediction"
)

// LoggingHook writes a structured log entry for every lifecycle event.
type LoggingHook struct {
	logger *slog.Logger
}

// NewLoggingHook creates a LoggingHook backed by the given logger.
func NewLoggingHook(logger *slog.Logger) *LoggingHook {
	return &LoggingHook{logger: logger}
}

// Name implements Hook.
func (h *LoggingHook) Name() string { return "logging" }

// OnPredictionQueued implements PredictionQueued.
func (h *LoggingHook) OnPredictionQueued(_ context.Context, rec *prediction.Record) error {
	h.logger.Info("prediction queued",
		slog.String("prediction_id", rec.ID.String()),
		slog.String("kind", rec.Kind),
	)
	return nil
}

// OnPredictionStarted implements PredictionStarted.
func (h *LoggingHook) OnPredictionStarted(_ context.Context, rec *prediction.Record) error {
	h.logger.Info("prediction started",
		slog.String("prediction_id", rec.ID.String()),
		slog.String("kind", rec.Kind),
	)
	return nil
}

// OnPredictionProgressed implements PredictionProgressed. Progress ticks
// are frequent, so this logs at debug level.
func (h *LoggingHook) OnPredictionProgressed(_ context.Context, rec *prediction.Record) error {
	h.logger.Debug("prediction progressed",
		slog.String("prediction_id", rec.ID.String()),
		slog.Int("progress", rec.Progress),
	)
	return nil
}

// OnPredictionCompleted implements PredictionCompleted.
func (h *LoggingHook) OnPredictionCompleted(_ context.Context, rec *prediction.Record, elapsed time.Duration) error {
	h.logger.Info("prediction completed",
		slog.String("prediction_id", rec.ID.String()),
		slog.String("kind", rec.Kind),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

// OnPredictionFailed implements PredictionFailed.
func (h *LoggingHook) OnPredictionFailed(_ context.Context, rec *prediction.Record, err error) error {
	h.logger.Error("prediction failed",
		slog.String("prediction_id", rec.ID.String()),
		slog.String("kind", rec.Kind),
		slog.String("error", err.Error()),
	)
	return nil
}

// OnPredictionCancelled implements PredictionCancelled.
func (h *LoggingHook) OnPredictionCancelled(_ context.Context, rec *prediction.Record) error {
	h.logger.Info("prediction cancelled",
		slog.String("prediction_id", rec.ID.String()),
		slog.String("kind", rec.Kind),
	)
	return nil
}

// OnPredictionEvicted implements PredictionEvicted.
func (h *LoggingHook) OnPredictionEvicted(_ context.Context, rec *prediction.Record) error {
	h.logger.Debug("prediction evicted",
		slog.String("prediction_id", rec.ID.String()),
		slog.String("status", string(rec.Status)),
	)
	return nil
}
