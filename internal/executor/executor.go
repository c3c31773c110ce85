package executor

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/vk/taskgrid/internal/config"
	"github.com/vk/taskgrid/internal/ctxlog"
	"github.com/vk/taskgrid/internal/task"
)

// Executor distributes ready tasks across a fixed pool of workers and owns
// the pools that back transient dispatch tasks.
type Executor struct {
	tuning  task.Tuning
	pools   task.DispatchPools
	workers []*worker

	wg           sync.WaitGroup
	shuttingDown atomic.Bool

	// rotation spreads affinity-unconstrained submissions across workers.
	rotation atomic.Uint32
}

// New creates an executor and starts its workers. The context carries the
// logger workers inherit; it does not bound the executor's lifetime — use
// Shutdown for that.
func New(ctx context.Context, settings config.Settings) *Executor {
	workerCount := settings.Workers
	if workerCount < 1 {
		workerCount = runtime.GOMAXPROCS(0)
	}

	e := &Executor{
		tuning: settings.Tuning,
		pools: task.DispatchPools{
			Slices: task.NewPool(settings.SlicePoolCapacity, func(s *task.Slice) *task.Task { return &s.Task }),
			Shards: task.NewPool(settings.ShardPoolCapacity, func(s *task.Shard) *task.Task { return &s.Task }),
		},
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting worker pool.", "workers", workerCount)

	e.workers = make([]*worker, workerCount)
	for i := range e.workers {
		w := &worker{
			exec:        e,
			idx:         i,
			localMemory: make([]byte, settings.LocalMemorySize),
			batch:       task.NewPostBatch(workerCount),
		}
		w.cond = sync.NewCond(&w.mu)
		e.workers[i] = w
	}
	e.wg.Add(workerCount)
	for _, w := range e.workers {
		go w.run(ctx)
	}
	return e
}

// WorkerCount returns the size of the worker pool.
func (e *Executor) WorkerCount() int { return len(e.workers) }

// Submit atomically flushes a submission's ready tasks onto worker queues.
// The caller must have finished wiring every edge of the batch first.
func (e *Executor) Submit(sub *task.Submission) {
	e.flushSubmission(sub)
}

// Shutdown stops the workers after they drain their queues and waits for
// them to exit or for ctx to be done. Callers should wait for their scopes
// to go idle first; queued work left behind is abandoned, not discarded.
func (e *Executor) Shutdown(ctx context.Context) error {
	e.shuttingDown.Store(true)
	for _, w := range e.workers {
		w.mu.Lock()
		w.cond.Signal()
		w.mu.Unlock()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// flushSubmission routes each staged ready task to a worker permitted by its
// affinity mask, rotating the starting worker so unconstrained tasks spread
// over the pool.
func (e *Executor) flushSubmission(sub *task.Submission) {
	ready := sub.TakeReady()
	for t := ready.PopFront(); t != nil; t = ready.PopFront() {
		e.workers[e.selectWorker(t.Affinity())].postOne(t)
	}
}

// flushBatch publishes each non-empty partition of a post-batch to its
// worker in one mailbox operation.
func (e *Executor) flushBatch(batch *task.PostBatch) {
	for i := 0; i < batch.WorkerCount(); i++ {
		if l := batch.TakePartition(i); !l.Empty() {
			e.workers[i].post(&l)
		}
	}
}

func (e *Executor) selectWorker(affinity task.Affinity) int {
	n := len(e.workers)
	start := int(e.rotation.Add(1)) % n
	for i := 0; i < n; i++ {
		if idx := (start + i) % n; affinity.Has(idx) {
			return idx
		}
	}
	// A mask excluding every worker is a wiring bug; routing anywhere keeps
	// the graph draining.
	return start
}
