package task

import (
	"fmt"
	"sync"

	"github.com/vk/taskgrid/internal/status"
)

// Pool is a bounded free list of uniformly typed task objects. Acquire
// returns a zeroed slot with its release hook recorded in the header so that
// cleanup returns the storage automatically; tasks owned externally simply
// never pass through a pool.
//
// Pools are safe for concurrent acquire and release.
type Pool[T any] struct {
	mu        sync.Mutex
	free      []*T
	allocated int
	capacity  int

	// header projects a slot to its embedded task header.
	header func(*T) *Task
}

// NewPool creates a pool holding at most capacity slots. header must return
// the Task header embedded in a slot.
func NewPool[T any](capacity int, header func(*T) *Task) *Pool[T] {
	return &Pool[T]{capacity: capacity, header: header}
}

// Acquire returns a zero-initialized slot, or an error wrapping
// status.ErrResourceExhausted when the pool is at capacity with no free
// slots.
func (p *Pool[T]) Acquire() (*T, error) {
	p.mu.Lock()
	var item *T
	if n := len(p.free); n > 0 {
		item = p.free[n-1]
		p.free = p.free[:n-1]
	} else if p.allocated < p.capacity {
		item = new(T)
		p.allocated++
	} else {
		p.mu.Unlock()
		return nil, fmt.Errorf("task pool at capacity %d: %w", p.capacity, status.ErrResourceExhausted)
	}
	p.mu.Unlock()

	var zero T
	*item = zero
	p.header(item).release = func() { p.Release(item) }
	return item, nil
}

// Release returns a slot to the free list. Called automatically by task
// cleanup for pool-acquired tasks.
func (p *Pool[T]) Release(item *T) {
	p.mu.Lock()
	p.free = append(p.free, item)
	p.mu.Unlock()
}

// Outstanding returns the number of acquired slots not yet released.
func (p *Pool[T]) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allocated - len(p.free)
}
