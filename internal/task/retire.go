package task

import "github.com/vk/taskgrid/internal/status"

// retire finishes a task and advances its completion edge.
//
// On success the completion task is enqueued into pending when this was its
// last unsatisfied dependency. On failure the status is consumed into the
// scope, and the downstream subgraph is either discarded immediately (the
// completion just became ready) or marked aborted so it discards itself when
// it later becomes ready.
//
// The task's cleanup runs exactly once on either path and may reclaim the
// task's storage, so t must not be touched after this returns.
func retire(t *Task, pending *Submission, err error) {
	// Take the completion edge; only the retiring task touches it now. The
	// decrement that reaches zero transfers ownership of the completion task
	// to us.
	completion := t.completion
	t.completion = nil
	completionReady := false
	if completion != nil {
		completionReady = completion.pending.Add(-1) == 0
	}

	if err == nil {
		t.cleanup(nil)
		if completionReady {
			pending.Enqueue(completion)
		}
		return
	}

	// Task failed: the scope consumes the status (first failure wins).
	t.scope.fail(err)
	t.cleanup(status.ErrAborted)
	if completionReady {
		// The completion task became ready and we know it is safe to abort
		// the whole downstream chain by discarding.
		var worklist List
		Discard(completion, &worklist)
		worklist.DiscardAll()
	} else if completion != nil {
		// Dependencies remain, so the completion task must stay alive; mark
		// it so it skips its closure when it eventually becomes ready.
		completion.setFlag(FlagAborted)
	}
}

// Discard aborts a task without executing it: downstream edges (the
// completion edge and any barrier dependents) are released, a fence still
// balances its scope, and the task's cleanup runs with status.ErrAborted.
//
// A downstream task joins the worklist only when this was its last
// unsatisfied dependency; otherwise it is marked aborted and its remaining
// predecessors deliver it here later. That keeps cleanup exactly-once across
// joins with still-running branches. Pushing onto the worklist head makes
// the drain a DFS, which keeps the discard walk close to the memory it just
// touched.
func Discard(t *Task, worklist *List) {
	if completion := t.completion; completion != nil {
		t.completion = nil
		discardEdge(completion, worklist)
	}

	switch v := t.self.(type) {
	case *Barrier:
		for _, dep := range v.dependents {
			discardEdge(dep, worklist)
		}
	case *Fence:
		t.scope.End()
	}

	t.cleanup(status.ErrAborted)
}

// discardEdge releases one inbound edge of a task being abandoned.
func discardEdge(t *Task, worklist *List) {
	if t.pending.Add(-1) == 0 {
		worklist.PushFront(t)
	} else {
		t.setFlag(FlagAborted)
	}
}
