package prediction

import "errors"

var (
	// ErrNotFound means the id was never issued or the record has been
	// evicted after its retention window.
	ErrNotFound = errors.New("prediction: not found")

	// ErrStoreClosed means the store has been disposed.
	ErrStoreClosed = errors.New("prediction: store closed")

	// ErrInvalidTransition means a status change violated the state machine.
	// Seeing it outside the store's own tests indicates a programming error.
	ErrInvalidTransition = errors.New("prediction: invalid status transition")
)
