package task

import "github.com/vk/taskgrid/internal/status"

// CallFn is the body of a call task. The closure may wire and enqueue nested
// tasks through pending; doing so raises the call's dependency count and
// keeps it alive until the nested graph drains. A non-nil error is captured
// as the call's status (first failure wins) and lifted to the scope when the
// call retires.
type CallFn func(c *Call, pending *Submission) error

// Call executes a user closure on a worker.
type Call struct {
	Task
	fn CallFn

	// st captures an in-flight failure until the call can retire; nested
	// tasks may keep the call alive long after the closure returned.
	st status.Slot
}

// NewCall creates a call task in scope running fn.
func NewCall(scope *Scope, fn CallFn) *Call {
	t := &Call{}
	t.Initialize(scope, fn)
	return t
}

// Initialize prepares a call task in place, for storage owned by the caller.
func (c *Call) Initialize(scope *Scope, fn CallFn) {
	c.init(KindCall, scope, c)
	c.fn = fn
	c.st.Reset()
}

// Execute runs the closure and retires the call if no nested dependencies
// are outstanding. An aborted call skips its closure but still retires.
func (c *Call) Execute(pending *Submission) {
	if !c.hasFlag(FlagAborted) && !c.hasFlag(flagCallExecuted) {
		c.setFlag(flagCallExecuted)
		if err := c.fn(c, pending); err != nil {
			// Keep the failure on the task: pending nested work may prevent
			// an immediate discard, and the final retiring decrement must
			// still observe it.
			c.st.TrySet(err)
		}
	}

	// Nested tasks enqueued by the closure raise the pending count; if any
	// are outstanding the last of them re-enqueues the call and the retire
	// below happens then.
	if c.pending.Load() == 0 {
		retire(&c.Task, pending, c.st.Take())
	}
}
