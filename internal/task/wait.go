package task

// WaitSource is the opaque wait-handle hook. Poll must be non-blocking and
// report whether the awaited condition is satisfied. Hosts needing timeouts
// or richer semantics implement them behind this interface.
type WaitSource interface {
	Poll() bool
}

// CompletedWaitSource is always satisfied. It is the default when a wait is
// created without a source.
type CompletedWaitSource struct{}

// Poll reports true.
func (CompletedWaitSource) Poll() bool { return true }

// Wait gates downstream tasks on an external condition. Workers poll the
// source through CheckCondition and re-queue the task until it is satisfied;
// the scheduler itself never blocks beyond the tuned poll interval.
type Wait struct {
	Task
	source WaitSource
}

// NewWait creates a wait task in scope observing source. A nil source is
// treated as already satisfied.
func NewWait(scope *Scope, source WaitSource) *Wait {
	t := &Wait{}
	t.init(KindWait, scope, t)
	if source == nil {
		source = CompletedWaitSource{}
	}
	t.source = source
	return t
}

// CheckCondition polls the wait source, recording satisfaction in the task
// flags. It reports whether the wait may retire.
func (w *Wait) CheckCondition() bool {
	if w.hasFlag(FlagWaitCompleted) {
		return true
	}
	if w.source.Poll() {
		w.setFlag(FlagWaitCompleted)
		return true
	}
	return false
}

// Retire completes the wait, advancing its completion edge.
func (w *Wait) Retire(pending *Submission) {
	retire(&w.Task, pending, nil)
}
