package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taskgrid/internal/status"
)

func TestPoolAcquireRelease(t *testing.T) {
	pool := NewPool(2, func(n *Nop) *Task { return &n.Task })

	a, err := pool.Acquire()
	require.NoError(t, err)
	b, err := pool.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 2, pool.Outstanding())

	_, err = pool.Acquire()
	assert.ErrorIs(t, err, status.ErrResourceExhausted)

	pool.Release(a)
	assert.Equal(t, 1, pool.Outstanding())

	c, err := pool.Acquire()
	require.NoError(t, err)
	assert.Same(t, a, c, "released slot should be reused")
	_ = b
}

func TestPoolAcquireZeroesSlot(t *testing.T) {
	pool := NewPool(1, func(n *Nop) *Task { return &n.Task })

	a, err := pool.Acquire()
	require.NoError(t, err)
	a.init(KindNop, NewScope("pool"), a)
	a.SetCleanup(func(*Task, error) {})
	pool.Release(a)

	b, err := pool.Acquire()
	require.NoError(t, err)
	require.Same(t, a, b)
	assert.Nil(t, b.cleanupFn)
	assert.Nil(t, b.scope)
	assert.NotNil(t, b.release, "release hook must be rebound after zeroing")
}

func TestPoolReleaseThroughCleanup(t *testing.T) {
	pool := NewPool(1, func(n *Nop) *Task { return &n.Task })

	a, err := pool.Acquire()
	require.NoError(t, err)
	a.init(KindNop, NewScope("pool"), a)
	require.Equal(t, 1, pool.Outstanding())

	a.cleanup(nil)
	assert.Equal(t, 0, pool.Outstanding(), "cleanup must return the slot to its pool")
}
