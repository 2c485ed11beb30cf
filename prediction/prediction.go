// Package prediction defines the record type and state machine for locally
// emulated asynchronous predictions. The upstream image-generation API is
// strictly synchronous; each Record tracks one upstream call from admission
// through settlement so that callers can poll and cancel as if the API were
// asynchronous.
package prediction

import (
	"encoding/json"
	"time"

	"github.com/takeshijuan/ideogram-mcp-server-sub001/id"
)

// Status represents the lifecycle status of a prediction.
type Status string

const (
	// StatusQueued means the prediction is waiting for a free concurrency slot.
	StatusQueued Status = "queued"
	// StatusProcessing means the upstream call is in flight.
	StatusProcessing Status = "processing"
	// StatusCompleted means the upstream call returned a result.
	StatusCompleted Status = "completed"
	// StatusFailed means the upstream call failed after all retries.
	StatusFailed Status = "failed"
	// StatusCancelled means the prediction was cancelled before dispatch.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition can occur from this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// transitions enumerates the legal status graph. Cancellation is only
// reachable from queued: once processing, the upstream call is already in
// flight and cannot be stopped.
var transitions = map[Status][]Status{
	StatusQueued:     {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// CanTransition reports whether moving from s to next is a legal step.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Failure is the structured error recorded on a failed prediction.
type Failure struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Record represents one emulated asynchronous prediction. Records are owned
// exclusively by the store; callers only ever see snapshot copies.
type Record struct {
	ID     id.PredictionID `json:"id"`
	Kind   string          `json:"kind"`
	Status Status          `json:"status"`

	// Request is an opaque snapshot of the caller-supplied parameters,
	// replayed verbatim into the upstream submit call.
	Request json.RawMessage `json:"request,omitempty"`

	// Progress and ETASeconds are advisory and only move while non-terminal.
	Progress   int `json:"progress"`
	ETASeconds int `json:"eta_seconds,omitempty"`

	// Result is set exactly once, at the completed transition.
	Result json.RawMessage `json:"result,omitempty"`
	// Error is set exactly once, at the failed transition.
	Error *Failure `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	TerminalAt *time.Time `json:"terminal_at,omitempty"`
}

// Clone returns a deep-enough copy of the record for handing to callers.
// The raw JSON fields are shared; they are never mutated after being set.
func (r *Record) Clone() *Record {
	cp := *r
	if r.StartedAt != nil {
		t := *r.StartedAt
		cp.StartedAt = &t
	}
	if r.TerminalAt != nil {
		t := *r.TerminalAt
		cp.TerminalAt = &t
	}
	if r.Error != nil {
		f := *r.Error
		cp.Error = &f
	}
	return &cp
}

// CancelResult reports the outcome of a cancel request. Cancelled is false
// when the record had already left the queued status; Status carries the
// status observed at that moment. A false result is a normal outcome, not
// an error.
type CancelResult struct {
	Cancelled bool   `json:"cancelled"`
	Status    Status `json:"status"`
}
