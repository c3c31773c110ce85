package executor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vk/taskgrid/internal/ctxlog"
	"github.com/vk/taskgrid/internal/metrics"
	"github.com/vk/taskgrid/internal/task"
)

// worker is one goroutine of the pool. queue and localMemory are owner-only;
// mailbox and cond are the cross-goroutine surface, guarded by mu.
type worker struct {
	exec *Executor
	idx  int

	mu      sync.Mutex
	cond    *sync.Cond
	mailbox task.List

	queue       task.List
	localMemory []byte

	// batch is reused across executions; flushBatch leaves it empty.
	batch *task.PostBatch
}

// post merges a list of tasks into the mailbox and wakes the worker.
func (w *worker) post(l *task.List) {
	w.mu.Lock()
	w.mailbox.Concat(l)
	w.cond.Signal()
	w.mu.Unlock()
}

// postOne delivers a single task.
func (w *worker) postOne(t *task.Task) {
	w.mu.Lock()
	w.mailbox.PushBack(t)
	w.cond.Signal()
	w.mu.Unlock()
}

// run is the worker loop: drain the local queue, fold in the mailbox when it
// runs dry, sleep when both are empty.
func (w *worker) run(ctx context.Context) {
	defer w.exec.wg.Done()
	logger := ctxlog.FromContext(ctx).With("workerID", w.idx)
	logger.Debug("Worker started.")

	for {
		t := w.queue.PopFront()
		if t == nil {
			if !w.awaitWork() {
				break
			}
			continue
		}
		w.execute(logger, t)
	}

	logger.Debug("Worker finished.")
}

// awaitWork blocks until the mailbox has tasks or shutdown begins. It
// reports false when the worker should exit.
func (w *worker) awaitWork() bool {
	w.mu.Lock()
	for w.mailbox.Empty() && !w.exec.shuttingDown.Load() {
		w.cond.Wait()
	}
	if w.mailbox.Empty() {
		w.mu.Unlock()
		return false
	}
	w.queue.Concat(&w.mailbox)
	w.mu.Unlock()
	return true
}

// mailboxEmpty answers whether anything is waiting without draining it.
func (w *worker) mailboxEmpty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mailbox.Empty()
}

// execute runs one ready task and publishes whatever work it produced. A
// task whose scope already failed is discarded instead of executed; fences
// are the exception so that the scope's end runs through the normal retire
// path exactly once.
func (w *worker) execute(logger *slog.Logger, t *task.Task) {
	var pending task.Submission

	if t.Scope().HasFailed() && t.Kind() != task.KindFence {
		w.discard(logger, t)
	} else {
		w.dispatch(logger, t, &pending)
	}

	w.exec.flushBatch(w.batch)
	w.exec.flushSubmission(&pending)
}

// dispatch executes t according to its kind.
func (w *worker) dispatch(logger *slog.Logger, t *task.Task, pending *task.Submission) {
	metrics.TaskExecuted(t.Kind().String())

	switch v := t.Self().(type) {
	case *task.Nop:
		v.Retire(pending)
	case *task.Call:
		v.Execute(pending)
	case *task.Barrier:
		v.Retire(pending)
	case *task.Fence:
		v.Retire(pending)
	case *task.Wait:
		w.executeWait(v, t, pending)
	case *task.Dispatch:
		if v.Issued() {
			// All slices/shards completed; statistics are final.
			metrics.TilesExecuted(v.Statistics().Tiles)
			v.Retire(pending)
		} else {
			metrics.DispatchIssued(v.Mode().String())
			v.Issue(&w.exec.tuning, w.exec.pools, pending, w.batch)
		}
	case *task.Slice:
		v.Execute(w.localMemory, pending)
	case *task.Shard:
		v.Execute(w.localMemory, pending)
	default:
		// Unreachable with tasks built through this module's constructors.
		logger.Error("Dropping task of unknown kind.", "kind", t.Kind().String())
	}
}

// executeWait polls the wait's condition. Unsatisfied waits go to the back
// of the local queue; when the wait is the only runnable task the worker
// backs off for the tuned poll interval instead of spinning.
func (w *worker) executeWait(v *task.Wait, t *task.Task, pending *task.Submission) {
	if v.CheckCondition() {
		v.Retire(pending)
		return
	}
	w.queue.PushBack(t)
	if w.queue.Len() == 1 && w.mailboxEmpty() {
		time.Sleep(w.exec.tuning.WaitPollInterval)
	}
}

// discard drains t and its downstream subgraph without executing closures.
func (w *worker) discard(logger *slog.Logger, t *task.Task) {
	logger.Debug("Discarding task; scope has failed.", "kind", t.Kind().String(),
		"scope", t.Scope().Name())

	var worklist task.List
	task.Discard(t, &worklist)
	n := 1
	for d := worklist.PopFront(); d != nil; d = worklist.PopFront() {
		task.Discard(d, &worklist)
		n++
	}
	metrics.TasksDiscarded(n)
}
