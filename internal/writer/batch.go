package writer

import (
	"errors"

	"us-ingest/internal/point"
)

// State is the lifecycle position of a batch.
type State int

const (
	StatePending State = iota
	StateInFlight
	StateRetrying // failed, retry scheduled
	StateSucceeded
	StateFailed // retries exhausted or permanent error
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in_flight"
	case StateRetrying:
		return "retrying"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no more transitions follow.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Batch is a group of points written in one request.
// Data holds the line protocol sent to the store, once encoded.
type Batch struct {
	ID       int
	Points   []point.StockPoint
	Data     []byte
	Attempts int
	Retries  int
	State    State
	Err      error
}

// Len returns the number of points in the batch.
func (b *Batch) Len() int { return len(b.Points) }

// ErrClosed is returned by Add once Close has been called.
var ErrClosed = errors.New("writer closed")

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
