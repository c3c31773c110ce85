package task

// Barrier joins one task to many: each dependent's pending count is raised at
// wire-up and released when the barrier retires. The dependent slice is
// borrowed from the caller and must outlive the barrier.
type Barrier struct {
	Task
	dependents []*Task
}

// NewBarrier creates a barrier in scope fanning out to dependents.
func NewBarrier(scope *Scope, dependents ...*Task) *Barrier {
	t := &Barrier{}
	t.init(KindBarrier, scope, t)
	t.SetDependents(dependents...)
	return t
}

// NewEmptyBarrier creates a barrier with no dependents; wire them later with
// SetDependents before submitting.
func NewEmptyBarrier(scope *Scope) *Barrier {
	t := &Barrier{}
	t.init(KindBarrier, scope, t)
	return t
}

// SetDependents wires the fan-out edges, incrementing each dependent's
// pending count. Must happen before the barrier or any dependent is
// submitted.
func (b *Barrier) SetDependents(dependents ...*Task) {
	b.dependents = dependents
	for _, dep := range b.dependents {
		dep.pending.Add(1)
	}
}

// Retire releases every fan-out edge, staging newly ready dependents, then
// completes the barrier. Dependents are walked in reverse so the staging
// order ends up first-dependent-first.
func (b *Barrier) Retire(pending *Submission) {
	for i := len(b.dependents) - 1; i >= 0; i-- {
		dep := b.dependents[i]
		if dep.pending.Add(-1) == 0 {
			pending.Enqueue(dep)
		}
	}
	retire(&b.Task, pending, nil)
}
