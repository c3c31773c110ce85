package task

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vk/taskgrid/internal/status"
)

// Scope groups related tasks, tracks their outstanding work, and accumulates
// a permanent first-failure status. A scope begins when the first fence of a
// batch initializes and ends when the matching fence retires; WaitIdle blocks
// until every begin has been balanced by an end.
//
// A failed scope still drains its graph: in-flight executions complete, and
// every future task in the scope except a fence is cleaned up as aborted;
// fences retire normally so the scope still ends.
type Scope struct {
	name string

	// permanent holds the first non-nil failure observed by any task in the
	// scope. Later failures are consumed and dropped.
	permanent status.Slot

	// stats aggregates dispatch statistics merged in at dispatch retirement.
	stats DispatchStatistics

	mu          sync.Mutex
	outstanding int
	idle        chan struct{} // closed while outstanding == 0
}

// NewScope creates a scope. An empty name is replaced with a generated one so
// log attributes always identify the scope.
func NewScope(name string) *Scope {
	if name == "" {
		name = "scope-" + uuid.NewString()
	}
	idle := make(chan struct{})
	close(idle)
	return &Scope{name: name, idle: idle}
}

// Name returns the scope's name.
func (s *Scope) Name() string { return s.name }

// Begin increments the outstanding-work counter.
func (s *Scope) Begin() {
	s.mu.Lock()
	if s.outstanding == 0 {
		s.idle = make(chan struct{})
	}
	s.outstanding++
	s.mu.Unlock()
}

// End decrements the outstanding-work counter and signals waiters when it
// reaches zero. Every Begin must be balanced by exactly one End.
func (s *Scope) End() {
	s.mu.Lock()
	s.outstanding--
	if s.outstanding < 0 {
		s.mu.Unlock()
		panic("task: scope.End without a matching Begin")
	}
	if s.outstanding == 0 {
		close(s.idle)
	}
	s.mu.Unlock()
}

// fail records the first failure of the scope. The status is consumed: when
// an earlier failure already won, err is dropped.
func (s *Scope) fail(err error) {
	s.permanent.TrySet(err)
}

// HasFailed reports whether the scope has a permanent non-OK status.
func (s *Scope) HasFailed() bool {
	return s.permanent.Failed()
}

// Status returns the scope's permanent status: nil while no task has failed,
// otherwise the first failure.
func (s *Scope) Status() error {
	return s.permanent.Err()
}

// WaitIdle blocks until the scope has no outstanding work or ctx is done.
func (s *Scope) WaitIdle(ctx context.Context) error {
	s.mu.Lock()
	idle := s.idle
	s.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Statistics returns a snapshot of the dispatch work aggregated into the
// scope so far.
func (s *Scope) Statistics() StatisticsSnapshot {
	return s.stats.Snapshot()
}
