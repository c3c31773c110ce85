package task

// Fence marks the end of a batch within a scope. Creating the fence begins
// the scope; retiring (or discarding) it ends the scope, so a scope's
// WaitIdle unblocks once every fence of the batch has passed through.
type Fence struct {
	Task
}

// NewFence creates a fence in scope and begins the scope.
func NewFence(scope *Scope) *Fence {
	t := &Fence{}
	t.init(KindFence, scope, t)
	scope.Begin()
	return t
}

// Retire ends the scope and completes the fence.
func (f *Fence) Retire(pending *Submission) {
	f.scope.End()
	retire(&f.Task, pending, nil)
}
