// Package hook defines lifecycle hooks for the prediction store.
// Hooks are notified of record events (queued, started, progressed,
// completed, failed, cancelled, evicted) and can react to them for logging or
// bookkeeping. Each event is a separate interface so hooks opt in only to
// the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/takeshijuan/ideogram-mcp-server-sub001/prediction"
)

// Hook is the base interface all hooks must implement.
type Hook interface {
	// Name returns a unique human-readable name for the hook.
	Name() string
}

// PredictionQueued is called after a record is admitted to the queue.
type PredictionQueued interface {
	OnPredictionQueued(ctx context.Context, rec *prediction.Record) error
}

// PredictionStarted is called when a worker dispatches a record upstream.
type PredictionStarted interface {
	OnPredictionStarted(ctx context.Context, rec *prediction.Record) error
}

// PredictionProgressed is called when the advisory progress of an
// in-flight record advances. It fires at most once per progress tick,
// so implementations should stay cheap.
type PredictionProgressed interface {
	OnPredictionProgressed(ctx context.Context, rec *prediction.Record) error
}

// PredictionCompleted is called after a record settles successfully.
type PredictionCompleted interface {
	OnPredictionCompleted(ctx context.Context, rec *prediction.Record, elapsed time.Duration) error
}

// PredictionFailed is called when a record settles with an error.
type PredictionFailed interface {
	OnPredictionFailed(ctx context.Context, rec *prediction.Record, err error) error
}

// PredictionCancelled is called when a queued record is cancelled.
type PredictionCancelled interface {
	OnPredictionCancelled(ctx context.Context, rec *prediction.Record) error
}

// PredictionEvicted is called when the expiry sweep removes a terminal record.
type PredictionEvicted interface {
	OnPredictionEvicted(ctx context.Context, rec *prediction.Record) error
}

// Shutdown is called once when the store is disposed.
type Shutdown interface {
	OnShutdown(ctx context.Context)
}
