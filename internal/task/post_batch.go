package task

import "math/rand/v2"

// PostBatch stages ready tasks partitioned by destination worker. Dispatch
// issue uses it to spread slices and shards across the pool before the
// executor publishes each partition to its worker in one batch.
//
// A PostBatch is single-owner; the executor gives each worker its own and
// resets it between tasks.
type PostBatch struct {
	partitions []List
}

// NewPostBatch creates a batch with one partition per worker.
func NewPostBatch(workerCount int) *PostBatch {
	return &PostBatch{partitions: make([]List, workerCount)}
}

// WorkerCount returns the number of partitions.
func (b *PostBatch) WorkerCount() int { return len(b.partitions) }

// SelectWorker picks a starting worker for a round-robin distribution:
// a randomized offset over the workers permitted by the affinity mask. The
// randomization spreads unrelated dispatches across the pool.
func (b *PostBatch) SelectWorker(affinity Affinity) int {
	n := len(b.partitions)
	start := rand.IntN(n)
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if affinity.Has(idx) {
			return idx
		}
	}
	// An affinity that excludes every worker would stall the graph; route it
	// anywhere to preserve progress.
	return start
}

// Enqueue routes t to the given worker's partition.
func (b *PostBatch) Enqueue(workerIdx int, t *Task) {
	b.partitions[workerIdx].PushBack(t)
}

// TakePartition removes and returns worker i's staged list.
func (b *PostBatch) TakePartition(i int) List {
	l := b.partitions[i]
	b.partitions[i] = List{}
	return l
}

// Empty reports whether every partition is empty.
func (b *PostBatch) Empty() bool {
	for i := range b.partitions {
		if !b.partitions[i].Empty() {
			return false
		}
	}
	return true
}
