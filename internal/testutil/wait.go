package testutil

import "sync/atomic"

// ManualWaitSource is a wait handle tests trip explicitly.
type ManualWaitSource struct {
	done atomic.Bool
}

// Complete satisfies the wait.
func (s *ManualWaitSource) Complete() {
	s.done.Store(true)
}

// Poll reports whether Complete has been called.
func (s *ManualWaitSource) Poll() bool {
	return s.done.Load()
}
