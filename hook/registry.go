package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/takeshijuan/ideogram-mcp-server-sub001/prediction"
)

// Named entry types pair a hook implementation with the name captured at
// registration time. This avoids type-asserting back to Hook inside the
// emit methods.
type queuedEntry struct {
	name string
	hook PredictionQueued
}

type startedEntry struct {
	name string
	hook PredictionStarted
}

type progressedEntry struct {
	name string
	hook PredictionProgressed
}

type completedEntry struct {
	name string
	hook PredictionCompleted
}

type failedEntry struct {
	name string
	hook PredictionFailed
}

type cancelledEntry struct {
	name string
	hook PredictionCancelled
}

type evictedEntry struct {
	name string
	hook PredictionEvicted
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered hooks and dispatches lifecycle events to them.
// It type-caches hooks at registration time so emit calls iterate only over
// hooks that implement the relevant event.
type Registry struct {
	hooks  []Hook
	logger *slog.Logger

	queued     []queuedEntry
	started    []startedEntry
	progressed []progressedEntry
	completed  []completedEntry
	failed     []failedEntry
	cancelled  []cancelledEntry
	evicted    []evictedEntry
	shutdown   []shutdownEntry
}

// NewRegistry creates a hook registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds a hook and type-asserts it into all applicable event caches.
// Hooks are notified in registration order. Register is not safe to call
// concurrently with emits; register everything before starting the store.
func (r *Registry) Register(h Hook) {
	r.hooks = append(r.hooks, h)
	name := h.Name()

	if e, ok := h.(PredictionQueued); ok {
		r.queued = append(r.queued, queuedEntry{name, e})
	}
	if e, ok := h.(PredictionStarted); ok {
		r.started = append(r.started, startedEntry{name, e})
	}
	if e, ok := h.(PredictionProgressed); ok {
		r.progressed = append(r.progressed, progressedEntry{name, e})
	}
	if e, ok := h.(PredictionCompleted); ok {
		r.completed = append(r.completed, completedEntry{name, e})
	}
	if e, ok := h.(PredictionFailed); ok {
		r.failed = append(r.failed, failedEntry{name, e})
	}
	if e, ok := h.(PredictionCancelled); ok {
		r.cancelled = append(r.cancelled, cancelledEntry{name, e})
	}
	if e, ok := h.(PredictionEvicted); ok {
		r.evicted = append(r.evicted, evictedEntry{name, e})
	}
	if e, ok := h.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, e})
	}
}

func (r *Registry) hookError(name, event string, err error) {
	r.logger.Warn("hook error",
		slog.String("hook", name),
		slog.String("event", event),
		slog.String("error", err.Error()),
	)
}

// EmitPredictionQueued notifies all PredictionQueued hooks.
func (r *Registry) EmitPredictionQueued(ctx context.Context, rec *prediction.Record) {
	for _, entry := range r.queued {
		if err := entry.hook.OnPredictionQueued(ctx, rec); err != nil {
			r.hookError(entry.name, "prediction_queued", err)
		}
	}
}

// EmitPredictionStarted notifies all PredictionStarted hooks.
func (r *Registry) EmitPredictionStarted(ctx context.Context, rec *prediction.Record) {
	for _, entry := range r.started {
		if err := entry.hook.OnPredictionStarted(ctx, rec); err != nil {
			r.hookError(entry.name, "prediction_started", err)
		}
	}
}

// EmitPredictionProgressed notifies all PredictionProgressed hooks.
func (r *Registry) EmitPredictionProgressed(ctx context.Context, rec *prediction.Record) {
	for _, entry := range r.progressed {
		if err := entry.hook.OnPredictionProgressed(ctx, rec); err != nil {
			r.hookError(entry.name, "prediction_progressed", err)
		}
	}
}

// EmitPredictionCompleted notifies all PredictionCompleted hooks.
func (r *Registry) EmitPredictionCompleted(ctx context.Context, rec *prediction.Record, elapsed time.Duration) {
	for _, entry := range r.completed {
		if err := entry.hook.OnPredictionCompleted(ctx, rec, elapsed); err != nil {
			r.hookError(entry.name, "prediction_completed", err)
		}
	}
}

// EmitPredictionFailed notifies all PredictionFailed hooks.
func (r *Registry) EmitPredictionFailed(ctx context.Context, rec *prediction.Record, failure error) {
	for _, entry := range r.failed {
		if err := entry.hook.OnPredictionFailed(ctx, rec, failure); err != nil {
			r.hookError(entry.name, "prediction_failed", err)
		}
	}
}

// EmitPredictionCancelled notifies all PredictionCancelled hooks.
func (r *Registry) EmitPredictionCancelled(ctx context.Context, rec *prediction.Record) {
	for _, entry := range r.cancelled {
		if err := entry.hook.OnPredictionCancelled(ctx, rec); err != nil {
			r.hookError(entry.name, "prediction_cancelled", err)
		}
	}
}

// EmitPredictionEvicted notifies all PredictionEvicted hooks.
func (r *Registry) EmitPredictionEvicted(ctx context.Context, rec *prediction.Record) {
	for _, entry := range r.evicted {
		if err := entry.hook.OnPredictionEvicted(ctx, rec); err != nil {
			r.hookError(entry.name, "prediction_evicted", err)
		}
	}
}

// EmitShutdown notifies all Shutdown hooks.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, entry := range r.shutdown {
		entry.hook.OnShutdown(ctx)
	}
}
