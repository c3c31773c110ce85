package task

import (
	"sync/atomic"

	"github.com/vk/taskgrid/internal/status"
)

// Kind identifies the concrete type of a task.
type Kind uint8

const (
	KindNop Kind = iota
	KindCall
	KindBarrier
	KindFence
	KindWait
	KindDispatch
	KindDispatchSlice
	KindDispatchShard
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNop:
		return "nop"
	case KindCall:
		return "call"
	case KindBarrier:
		return "barrier"
	case KindFence:
		return "fence"
	case KindWait:
		return "wait"
	case KindDispatch:
		return "dispatch"
	case KindDispatchSlice:
		return "dispatch_slice"
	case KindDispatchShard:
		return "dispatch_shard"
	default:
		return "invalid"
	}
}

// Flag bits stored on the task header. Flags are manipulated atomically
// because FlagAborted may be set by a remote worker while the owner races to
// execute.
const (
	// FlagAborted marks a task that must not run its closure when it becomes
	// ready; it will be cleaned up as aborted instead.
	FlagAborted uint32 = 1 << iota
	// FlagWaitCompleted records that a wait task observed its condition.
	FlagWaitCompleted
	// FlagDispatchIndirect marks a dispatch whose workgroup count is read
	// from memory at issue time.
	FlagDispatchIndirect
	// FlagDispatchRetire marks a dispatch that has been issued; its next
	// retirement means all of its slices or shards have completed.
	FlagDispatchRetire

	// flagCallExecuted marks a call whose closure has already run; becoming
	// ready again means the nested graph drained and the call just retires.
	flagCallExecuted
)

// Affinity is a bitset of workers eligible to run a task. Worker i maps to
// bit i modulo 64; executors larger than 64 workers alias, which only widens
// the eligible set.
type Affinity uint64

// AffinityAny permits every worker.
const AffinityAny = ^Affinity(0)

// AffinityWorker returns an affinity permitting only worker i.
func AffinityWorker(i int) Affinity {
	return 1 << (uint(i) % 64)
}

// Has reports whether worker i is permitted.
func (a Affinity) Has(i int) bool {
	return a&AffinityWorker(i) != 0
}

// CleanupFn is invoked exactly once when a task retires or is discarded.
// cause is nil on success and status.ErrAborted when the task was discarded
// or its graph failed upstream. The callback may reclaim the task's storage;
// the scheduler never touches the task again afterwards.
type CleanupFn func(t *Task, cause error)

// Task is the header embedded at the start of every concrete task type. It
// carries the graph edges and the atomic dependency count; the concrete
// payload lives in the embedding struct, reachable through Self.
type Task struct {
	kind     Kind
	scope    *Scope
	affinity Affinity
	flags    atomic.Uint32

	// pending is the number of unsatisfied inbound edges. The task is
	// eligible for a ready queue iff it is zero; only the decrement that
	// reaches zero may enqueue.
	pending atomic.Int32

	// completion is the single successor wired by SetCompletion. Set at most
	// once before submission, cleared by retire.
	completion *Task

	cleanupFn CleanupFn

	// release returns the task's storage to the owning pool; nil when the
	// task is owned externally.
	release func()

	// next links the task into the single List it is currently on.
	next *Task

	// self points at the embedding concrete task so that lists of headers
	// can be executed by kind.
	self any
}

// init resets the header and rebinds it, keeping the release hook that
// Pool.Acquire recorded. Concrete initializers call this first; it
// intentionally does not touch payload fields.
func (t *Task) init(kind Kind, scope *Scope, self any) {
	t.kind = kind
	t.scope = scope
	t.affinity = AffinityAny
	t.flags.Store(0)
	t.pending.Store(0)
	t.completion = nil
	t.cleanupFn = nil
	t.next = nil
	t.self = self
}

// Kind returns the concrete kind of the task.
func (t *Task) Kind() Kind { return t.kind }

// Scope returns the owning scope.
func (t *Task) Scope() *Scope { return t.scope }

// Self returns the concrete task embedding this header, e.g. *Call or
// *Dispatch.
func (t *Task) Self() any { return t.self }

// Affinity returns the worker affinity mask.
func (t *Task) Affinity() Affinity { return t.affinity }

// SetAffinity restricts the workers eligible to run the task. Must be called
// before submission.
func (t *Task) SetAffinity(a Affinity) { t.affinity = a }

// SetCleanup registers the cleanup callback, invoked exactly once on retire
// or discard.
func (t *Task) SetCleanup(fn CleanupFn) { t.cleanupFn = fn }

// SetCompletion wires a post-edge from t to completion, incrementing the
// completion's pending dependency count. A task may have at most one
// completion edge; all edges must be wired before t is submitted or the
// completion could become ready prematurely.
func (t *Task) SetCompletion(completion *Task) error {
	if t.completion != nil {
		return status.ErrInvalidArgument
	}
	t.completion = completion
	completion.pending.Add(1)
	return nil
}

// IsReady reports whether the task has no unsatisfied dependencies. A false
// negative under concurrent decrement is harmless (the final decrementor
// re-enqueues); a false positive is impossible because counts never go below
// zero before retirement.
func (t *Task) IsReady() bool {
	return t.pending.Load() == 0
}

// Aborted reports whether the task has been marked to skip its closure.
func (t *Task) Aborted() bool { return t.hasFlag(FlagAborted) }

func (t *Task) setFlag(f uint32) {
	t.flags.Or(f)
}

func (t *Task) clearFlag(f uint32) {
	t.flags.And(^f)
}

func (t *Task) hasFlag(f uint32) bool {
	return t.flags.Load()&f != 0
}

// cleanup invokes the cleanup callback and returns the storage to the owning
// pool. The callback may free the task, so the release hook is captured
// before it runs and the header is never touched afterwards.
func (t *Task) cleanup(cause error) {
	release := t.release
	if t.cleanupFn != nil {
		t.cleanupFn(t, cause)
	}
	if release != nil {
		release()
	}
}
