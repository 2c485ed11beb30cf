// Package store implements the local asynchronous prediction store: an
// admission queue, a concurrency-bounded worker pool that drains it through
// the upstream submitter, and an expiry janitor bounding memory. The
// upstream API is strictly synchronous; this store reconstructs queueing,
// progress reporting, and cancellation semantics entirely client-side.
//
// All record mutation happens behind a single mutex, so the invariants of
// the state machine hold even under interleaved create/cancel/settlement.
package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/time/rate"

	"github.com/takeshijuan/ideogram-mcp-server-sub001/hook"
	"github.com/takeshijuan/ideogram-mcp-server-sub001/id"
	"github.com/takeshijuan/ideogram-mcp-server-sub001/prediction"
	"github.com/takeshijuan/ideogram-mcp-server-sub001/retry"
	"github.com/takeshijuan/ideogram-mcp-server-sub001/upstream"
)

// Store owns the id→record mapping, the FIFO admission queue, and the
// worker pool. Construct one with New and pass it by reference to every
// consumer; Dispose shuts it down.
type Store struct {
	cfg       Config
	submitter upstream.Submitter
	exec      *retry.Executor
	hooks     *hook.Registry
	logger    *slog.Logger
	limiter   *rate.Limiter
	janitor   *cron.Cron

	mu      sync.Mutex
	cond    *sync.Cond
	records map[string]*prediction.Record
	queue   []id.PredictionID
	closed  bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// now is swapped out in tests.
	now func() time.Time

	disposeOnce sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithHooks sets the lifecycle hook registry.
func WithHooks(r *hook.Registry) Option {
	return func(s *Store) { s.hooks = r }
}

// WithExecutor replaces the retry executor built from Config.Retry.
func WithExecutor(e *retry.Executor) Option {
	return func(s *Store) { s.exec = e }
}

// New creates a Store and starts its worker pool and expiry janitor.
// The submitter performs the actual upstream exchange and must bound its
// own call duration.
func New(cfg Config, submitter upstream.Submitter, opts ...Option) *Store {
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		cfg:       cfg,
		submitter: submitter,
		logger:    slog.Default(),
		records:   make(map[string]*prediction.Record),
		baseCtx:   ctx,
		cancel:    cancel,
		now:       func() time.Time { return time.Now().UTC() },
	}
	s.cond = sync.NewCond(&s.mu)

	for _, opt := range opts {
		opt(s)
	}

	if s.hooks == nil {
		s.hooks = hook.NewRegistry(s.logger)
	}
	if s.exec == nil {
		s.exec = newExecutor(cfg.Retry, s.logger)
	}
	if cfg.AdmissionRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.AdmissionRate), cfg.AdmissionBurst)
	}

	for range cfg.Concurrency {
		s.wg.Add(1)
		go s.worker()
	}

	s.janitor = cron.New()
	// AddFunc only fails on a malformed schedule; "@every d" is always valid.
	_, _ = s.janitor.AddFunc("@every "+cfg.SweepInterval.String(), s.sweep)
	s.janitor.Start()

	s.logger.Info("prediction store started",
		slog.Int("concurrency", cfg.Concurrency),
		slog.Duration("retention", cfg.Retention),
		slog.Duration("sweep_interval", cfg.SweepInterval),
	)

	return s
}

// Create admits a new prediction in queued status and returns its id.
// The request snapshot is not validated or interpreted here. Create never
// blocks on upstream work.
func (s *Store) Create(kind string, request json.RawMessage) (id.PredictionID, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return id.Nil, prediction.ErrStoreClosed
	}

	pid := id.NewPredictionID()
	rec := &prediction.Record{
		ID:         pid,
		Kind:       kind,
		Status:     prediction.StatusQueued,
		Request:    request,
		CreatedAt:  s.now(),
		ETASeconds: s.queuedETA(),
	}
	s.records[pid.String()] = rec
	s.queue = append(s.queue, pid)
	snapshot := rec.Clone()

	s.cond.Signal()
	s.mu.Unlock()

	s.hooks.EmitPredictionQueued(s.baseCtx, snapshot)

	return pid, nil
}

// queuedETA estimates remaining seconds for a record entering the queue:
// its own expected duration plus a full batch per queued record ahead of it.
// Caller must hold s.mu.
func (s *Store) queuedETA() int {
	waves := len(s.queue)/s.cfg.Concurrency + 1
	return int(s.cfg.ExpectedDuration.Seconds()) * waves
}

// Lookup returns a snapshot of the record, or false if the id was never
// issued or the record has been evicted.
func (s *Store) Lookup(pid id.PredictionID) (*prediction.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[pid.String()]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// Get is the fail-fast variant of Lookup: it returns ErrNotFound for an
// unknown or evicted id.
func (s *Store) Get(pid id.PredictionID) (*prediction.Record, error) {
	rec, ok := s.Lookup(pid)
	if !ok {
		return nil, prediction.ErrNotFound
	}
	return rec, nil
}

// Cancel transitions a queued record to cancelled and removes it from the
// admission queue. For a record in any other status it reports the status
// observed and mutates nothing; that is a normal outcome, not an error.
// An unknown id returns ErrNotFound.
func (s *Store) Cancel(pid id.PredictionID) (prediction.CancelResult, error) {
	s.mu.Lock()

	rec, ok := s.records[pid.String()]
	if !ok {
		s.mu.Unlock()
		return prediction.CancelResult{}, prediction.ErrNotFound
	}

	if rec.Status != prediction.StatusQueued {
		result := prediction.CancelResult{Cancelled: false, Status: rec.Status}
		s.mu.Unlock()
		return result, nil
	}

	now := s.now()
	rec.Status = prediction.StatusCancelled
	rec.TerminalAt = &now
	rec.ETASeconds = 0
	s.removeFromQueue(pid)
	snapshot := rec.Clone()
	s.mu.Unlock()

	s.hooks.EmitPredictionCancelled(s.baseCtx, snapshot)

	return prediction.CancelResult{Cancelled: true, Status: prediction.StatusCancelled}, nil
}

// removeFromQueue drops pid from the admission queue, preserving order.
// Caller must hold s.mu.
func (s *Store) removeFromQueue(pid id.PredictionID) {
	for i, queued := range s.queue {
		if queued.String() == pid.String() {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return
		}
	}
}

// List returns snapshots of all records with the given status, ordered by
// creation time. An empty status matches every record.
func (s *Store) List(status prediction.Status) []*prediction.Record {
	s.mu.Lock()
	out := make([]*prediction.Record, 0, len(s.records))
	for _, rec := range s.records {
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Stats returns the number of records per status.
func (s *Store) Stats() map[prediction.Status]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[prediction.Status]int)
	for _, rec := range s.records {
		stats[rec.Status]++
	}
	return stats
}

// Dispose stops the worker pool and janitor, aborts in-flight upstream
// calls, and clears all records. Idempotent.
func (s *Store) Dispose() {
	s.disposeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.queue = nil
		s.cond.Broadcast()
		s.mu.Unlock()

		s.cancel()
		s.janitor.Stop()
		s.wg.Wait()

		s.mu.Lock()
		s.records = make(map[string]*prediction.Record)
		s.mu.Unlock()

		s.hooks.EmitShutdown(context.Background())
		s.logger.Info("prediction store disposed")
	})
}
