// Package status defines the error taxonomy shared by the scheduler core and
// the first-failure-wins slot used to capture a status across concurrent
// producers.
//
// Statuses are ordinary Go errors. The sentinels below classify scheduler
// failures; user closures return whatever error they like and it is carried
// opaquely. A Slot holds at most one non-nil error: the first writer wins and
// later writes are consumed as no-ops, which keeps the fast path free of any
// cross-worker aggregation.
package status

import (
	"errors"
	"sync/atomic"
)

// Code classifies an error into one of the scheduler's failure kinds.
type Code uint8

const (
	// CodeOK means no failure occurred.
	CodeOK Code = iota
	// CodeAborted means the task was discarded without executing, usually
	// because something upstream in its scope failed.
	CodeAborted
	// CodeResourceExhausted means a pool or a worker-local memory span was
	// too small to satisfy a request.
	CodeResourceExhausted
	// CodeInvalidArgument means the caller wired the graph incorrectly.
	CodeInvalidArgument
	// CodeUnknown covers user-level errors carried opaquely.
	CodeUnknown
)

// String returns the lowercase name of the code.
func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeAborted:
		return "aborted"
	case CodeResourceExhausted:
		return "resource_exhausted"
	case CodeInvalidArgument:
		return "invalid_argument"
	default:
		return "unknown"
	}
}

var (
	// ErrAborted is passed to cleanup callbacks when a task is discarded or
	// when its parent failed before it could run.
	ErrAborted = errors.New("aborted")

	// ErrResourceExhausted reports an exhausted task pool or an undersized
	// worker-local memory span.
	ErrResourceExhausted = errors.New("resource exhausted")

	// ErrInvalidArgument reports graph wiring mistakes by the caller.
	ErrInvalidArgument = errors.New("invalid argument")
)

// CodeOf maps an error to its Code. A nil error is CodeOK; errors that wrap
// none of the sentinels are CodeUnknown.
func CodeOf(err error) Code {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrAborted):
		return CodeAborted
	case errors.Is(err, ErrResourceExhausted):
		return CodeResourceExhausted
	case errors.Is(err, ErrInvalidArgument):
		return CodeInvalidArgument
	default:
		return CodeUnknown
	}
}

// Slot is a first-failure-wins error cell safe for concurrent use.
//
// The zero value is an empty slot.
type Slot struct {
	p atomic.Pointer[error]
}

// TrySet stores err if the slot is still empty. A nil err is ignored. It
// reports whether err was stored; when false the error has been consumed and
// dropped, matching the scheduler's first-failure semantics.
func (s *Slot) TrySet(err error) bool {
	if err == nil {
		return false
	}
	return s.p.CompareAndSwap(nil, &err)
}

// Take removes and returns the stored error, leaving the slot empty. Returns
// nil if the slot was empty.
func (s *Slot) Take() error {
	if p := s.p.Swap(nil); p != nil {
		return *p
	}
	return nil
}

// Reset empties the slot. Used when recycling the containing object.
func (s *Slot) Reset() {
	s.p.Store(nil)
}

// Err returns the stored error without clearing it.
func (s *Slot) Err() error {
	if p := s.p.Load(); p != nil {
		return *p
	}
	return nil
}

// Failed reports whether a non-nil error has been stored.
func (s *Slot) Failed() bool {
	return s.p.Load() != nil
}
