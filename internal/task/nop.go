package task

// Nop is a no-op task useful as a join point when rewriting graphs: it can
// stand in for a removed task so that existing completion edges stay valid.
type Nop struct {
	Task
}

// NewNop creates a nop task in scope.
func NewNop(scope *Scope) *Nop {
	t := &Nop{}
	t.init(KindNop, scope, t)
	return t
}

// Retire completes the nop, advancing its completion edge.
func (t *Nop) Retire(pending *Submission) {
	retire(&t.Task, pending, nil)
}
