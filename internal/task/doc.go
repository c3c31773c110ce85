// Package task implements the task-graph core of the scheduler: the common
// task header with its atomic dependency accounting, the task kinds (nop,
// call, barrier, fence, wait, dispatch with its slices and shards), and the
// retire/discard engine that advances dependents and propagates aborts.
//
// # How It Works
//
// Producers construct tasks (directly or from a Pool), wire edges with
// SetCompletion and Barrier dependents, and stage the ready roots in a
// Submission. An executor drains ready tasks, runs them, and collects newly
// ready dependents into a pending Submission that merges back into worker
// queues. Retiring a task decrements the pending count of its completion
// task; the final decrementor is the only party allowed to enqueue it.
//
// # Failure Model
//
// A failure anywhere is captured in the nearest first-failure slot (a call's
// or dispatch's status, ultimately the scope's permanent status). Failed
// retirement discards the downstream subgraph: closures are skipped, cleanup
// callbacks still run exactly once, and fences still balance their scope.
//
// The package is deliberately free of goroutines; all concurrency lives in
// the executor. Lists and submissions are single-owner structures; the
// shared state is the handful of atomics called out on the types plus the
// mutex-guarded Pool free list and Scope outstanding counter.
package task
