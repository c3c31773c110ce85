package task

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taskgrid/internal/status"
)

// serialHarness drains a graph on a single goroutine while still routing
// dispatch fan-out through a multi-partition post-batch, so distribution
// logic is exercised without executor concurrency.
type serialHarness struct {
	t           *testing.T
	tuning      Tuning
	pools       DispatchPools
	batch       *PostBatch
	queue       List
	localMemory []byte
}

func newSerialHarness(t *testing.T, workers int) *serialHarness {
	return &serialHarness{
		t:      t,
		tuning: DefaultTuning(),
		pools: DispatchPools{
			Slices: NewPool(256, func(s *Slice) *Task { return &s.Task }),
			Shards: NewPool(64, func(s *Shard) *Task { return &s.Task }),
		},
		batch:       NewPostBatch(workers),
		localMemory: make([]byte, 64*1024),
	}
}

func (h *serialHarness) submit(sub *Submission) {
	ready := sub.TakeReady()
	h.queue.Concat(&ready)
}

func (h *serialHarness) collectBatch() {
	for i := 0; i < h.batch.WorkerCount(); i++ {
		if l := h.batch.TakePartition(i); !l.Empty() {
			h.queue.Concat(&l)
		}
	}
}

func (h *serialHarness) drain() {
	for {
		tk := h.queue.PopFront()
		if tk == nil {
			return
		}
		var pending Submission
		switch v := tk.Self().(type) {
		case *Nop:
			v.Retire(&pending)
		case *Call:
			v.Execute(&pending)
		case *Barrier:
			v.Retire(&pending)
		case *Fence:
			v.Retire(&pending)
		case *Dispatch:
			if v.Issued() {
				v.Retire(&pending)
			} else {
				v.Issue(&h.tuning, h.pools, &pending, h.batch)
			}
		case *Slice:
			v.Execute(h.localMemory, &pending)
		case *Shard:
			v.Execute(h.localMemory, &pending)
		default:
			h.t.Fatalf("unexpected task kind %s", tk.Kind())
		}
		h.collectBatch()
		h.submit(&pending)
	}
}

// tileKey flattens a coordinate for set membership checks.
func tileKey(xyz [3]uint32) string {
	return fmt.Sprintf("%d,%d,%d", xyz[0], xyz[1], xyz[2])
}

func TestDispatchSliceSingleTileBlocks(t *testing.T) {
	h := newSerialHarness(t, 4)
	h.tuning.TilesPerSliceX = 1
	h.tuning.TilesPerSliceY = 1
	h.tuning.TilesPerSliceZ = 1

	scope := NewScope("slice-grid")
	seen := map[string]int{}
	var mu sync.Mutex
	d := NewDispatch(scope, func(tile *TileContext, pending *Submission) error {
		mu.Lock()
		seen[tileKey(tile.WorkgroupXYZ)]++
		mu.Unlock()
		assert.Equal(t, [3]uint32{2, 3, 1}, tile.WorkgroupCount)
		return nil
	}, [3]uint32{1, 1, 1}, [3]uint32{2, 3, 1})
	d.SetMode(ModeSliced)

	after := NewNop(scope)
	require.NoError(t, d.SetCompletion(&after.Task))

	var sub Submission
	sub.Enqueue(&d.Task)
	h.submit(&sub)
	h.drain()

	require.Len(t, seen, 6, "each tile of the 2x3x1 grid runs exactly once")
	for key, count := range seen {
		assert.Equal(t, 1, count, "tile %s", key)
	}
	stats := d.Statistics()
	assert.Equal(t, uint64(6), stats.Tiles)
	assert.Equal(t, uint64(6), stats.Slices, "1x1x1 blocks make one slice per tile")
	assert.Equal(t, uint64(6), scope.Statistics().Tiles, "dispatch statistics roll up into the scope")
	require.NoError(t, scope.Status())
}

func TestDispatchSliceCoversOddGrids(t *testing.T) {
	h := newSerialHarness(t, 3)
	h.tuning.TilesPerSliceX = 4
	h.tuning.TilesPerSliceY = 1
	h.tuning.TilesPerSliceZ = 2

	scope := NewScope("odd-grid")
	count := [3]uint32{5, 2, 3}
	seen := map[string]int{}
	d := NewDispatch(scope, func(tile *TileContext, pending *Submission) error {
		seen[tileKey(tile.WorkgroupXYZ)]++
		return nil
	}, [3]uint32{1, 1, 1}, count)
	d.SetMode(ModeSliced)

	var sub Submission
	sub.Enqueue(&d.Task)
	h.submit(&sub)
	h.drain()

	total := int(count[0] * count[1] * count[2])
	require.Len(t, seen, total, "ceil partitioning must cover grids not divisible by the block size")
	for key, n := range seen {
		assert.Equal(t, 1, n, "tile %s", key)
	}
	assert.Equal(t, uint64(total), d.Statistics().Tiles)
	require.NoError(t, scope.Status())
}

func TestDispatchZeroWorkgroupsRetiresImmediately(t *testing.T) {
	for _, mode := range []DispatchMode{ModeSliced, ModeSharded} {
		t.Run(mode.String(), func(t *testing.T) {
			h := newSerialHarness(t, 4)
			scope := NewScope("zero")

			counts := [3]uint32{0, 0, 0}
			ran := false
			d := NewIndirectDispatch(scope, func(*TileContext, *Submission) error {
				ran = true
				return nil
			}, [3]uint32{1, 1, 1}, &counts)
			d.SetMode(mode)

			afterRan := false
			after := NewCall(scope, func(*Call, *Submission) error { afterRan = true; return nil })
			require.NoError(t, d.SetCompletion(&after.Task))

			var sub Submission
			sub.Enqueue(&d.Task)
			h.submit(&sub)
			h.drain()

			assert.False(t, ran, "no tiles for an empty grid")
			assert.True(t, afterRan, "completion task becomes ready")
			stats := d.Statistics()
			assert.Zero(t, stats.Slices)
			assert.Zero(t, stats.Shards)
			require.NoError(t, scope.Status())
		})
	}
}

func TestDispatchIndirectCollapsesInShardMode(t *testing.T) {
	h := newSerialHarness(t, 2)
	scope := NewScope("indirect")

	counts := [3]uint32{2, 2, 2}
	tiles := 0
	d := NewIndirectDispatch(scope, func(tile *TileContext, pending *Submission) error {
		tiles++
		assert.Equal(t, counts, tile.WorkgroupCount)
		return nil
	}, [3]uint32{4, 4, 1}, &counts)

	var sub Submission
	sub.Enqueue(&d.Task)
	h.submit(&sub)
	h.drain()

	assert.Equal(t, 8, tiles)
	assert.False(t, d.hasFlag(FlagDispatchIndirect), "indirect count is cached inline at issue")
	assert.Equal(t, counts, d.workgroupCount)
	require.NoError(t, scope.Status())
}

func TestShardReservationSizing(t *testing.T) {
	t.Run("small grids reserve one tile at a time", func(t *testing.T) {
		h := newSerialHarness(t, 4)
		scope := NewScope("small")
		d := NewDispatch(scope, func(*TileContext, *Submission) error { return nil },
			[3]uint32{1, 1, 1}, [3]uint32{3, 2, 1})

		var sub Submission
		sub.Enqueue(&d.Task)
		h.submit(&sub)
		h.drain()

		assert.Equal(t, uint32(1), d.shard.tilesPerReservation)
		assert.Equal(t, uint64(4), d.Statistics().Shards, "shard count capped at worker count")
	})

	t.Run("large grids use the tuned maximum", func(t *testing.T) {
		h := newSerialHarness(t, 4)
		scope := NewScope("large")
		processed := make([]int, 1000)
		d := NewDispatch(scope, func(tile *TileContext, pending *Submission) error {
			processed[tile.WorkgroupXYZ[2]]++
			return nil
		}, [3]uint32{1, 1, 1}, [3]uint32{1, 1, 1000})

		var sub Submission
		sub.Enqueue(&d.Task)
		h.submit(&sub)
		h.drain()

		assert.Equal(t, h.tuning.MaxTilesPerShardReservation, d.shard.tilesPerReservation)
		assert.GreaterOrEqual(t, d.shard.tileIndex.Load(), uint32(1000),
			"shards exit once the cursor passes the tile count")
		for i, n := range processed {
			require.Equal(t, 1, n, "tile %d processed exactly once", i)
		}
		stats := d.Statistics()
		assert.Equal(t, uint64(1000), stats.Tiles)
		assert.Equal(t, uint64(125), stats.Reservations, "1000 tiles in reservations of 8")
		require.NoError(t, scope.Status())
	})
}

func TestSliceLocalMemoryExhausted(t *testing.T) {
	h := newSerialHarness(t, 2)
	scope := NewScope("local-memory")

	ran := false
	d := NewDispatch(scope, func(*TileContext, *Submission) error {
		ran = true
		return nil
	}, [3]uint32{1, 1, 1}, [3]uint32{4, 1, 1})
	d.SetMode(ModeSliced)
	d.SetLocalMemorySize(len(h.localMemory) + 1)

	var sub Submission
	sub.Enqueue(&d.Task)
	h.submit(&sub)
	h.drain()

	assert.False(t, ran, "no tile may run without its requested scratch")
	assert.ErrorIs(t, scope.Status(), status.ErrResourceExhausted)
}

func TestDispatchTileLocalMemorySpan(t *testing.T) {
	h := newSerialHarness(t, 2)
	scope := NewScope("span")

	d := NewDispatch(scope, func(tile *TileContext, pending *Submission) error {
		assert.Len(t, tile.LocalMemory, 128, "tiles see exactly the requested span")
		return nil
	}, [3]uint32{1, 1, 1}, [3]uint32{2, 1, 1})
	d.SetLocalMemorySize(128)

	var sub Submission
	sub.Enqueue(&d.Task)
	h.submit(&sub)
	h.drain()
	require.NoError(t, scope.Status())
}

func TestDispatchTileFailurePropagates(t *testing.T) {
	errTile := errors.New("tile failure")
	for _, mode := range []DispatchMode{ModeSliced, ModeSharded} {
		t.Run(mode.String(), func(t *testing.T) {
			h := newSerialHarness(t, 2)
			scope := NewScope("tile-failure")

			d := NewDispatch(scope, func(tile *TileContext, pending *Submission) error {
				if tile.WorkgroupXYZ[0] == 1 {
					return errTile
				}
				return nil
			}, [3]uint32{1, 1, 1}, [3]uint32{4, 1, 1})
			d.SetMode(mode)

			var afterCause error
			after := NewNop(scope)
			after.SetCleanup(func(_ *Task, cause error) { afterCause = cause })
			require.NoError(t, d.SetCompletion(&after.Task))

			var sub Submission
			sub.Enqueue(&d.Task)
			h.submit(&sub)
			h.drain()

			assert.ErrorIs(t, scope.Status(), errTile,
				"tile failure surfaces as the scope's permanent status")
			assert.ErrorIs(t, afterCause, status.ErrAborted,
				"the dispatch's completion is discarded")
		})
	}
}

func TestDispatchPoolFallback(t *testing.T) {
	// A zero-capacity pool forces the heap fallback; the grid must still be
	// fully covered.
	h := newSerialHarness(t, 2)
	h.pools = DispatchPools{
		Slices: NewPool(0, func(s *Slice) *Task { return &s.Task }),
		Shards: NewPool(0, func(s *Shard) *Task { return &s.Task }),
	}
	h.tuning.TilesPerSliceX = 1

	scope := NewScope("fallback")
	tiles := 0
	d := NewDispatch(scope, func(*TileContext, *Submission) error {
		tiles++
		return nil
	}, [3]uint32{1, 1, 1}, [3]uint32{4, 2, 1})
	d.SetMode(ModeSliced)

	var sub Submission
	sub.Enqueue(&d.Task)
	h.submit(&sub)
	h.drain()

	assert.Equal(t, 8, tiles)
	require.NoError(t, scope.Status())
}

func TestSliceBoundsAreInclusive(t *testing.T) {
	h := newSerialHarness(t, 1)
	h.tuning.TilesPerSliceX = 4
	h.tuning.TilesPerSliceY = 2
	h.tuning.TilesPerSliceZ = 1

	scope := NewScope("bounds")
	d := NewDispatch(scope, func(*TileContext, *Submission) error { return nil },
		[3]uint32{1, 1, 1}, [3]uint32{4, 2, 1})
	d.SetMode(ModeSliced)

	var pending Submission
	batch := NewPostBatch(1)
	d.Issue(&h.tuning, h.pools, &pending, batch)

	l := batch.TakePartition(0)
	require.Equal(t, 1, l.Len(), "the whole grid fits one block")
	slice := l.PopFront().Self().(*Slice)
	base, last := slice.Bounds()
	assert.Equal(t, [3]uint32{0, 0, 0}, base)
	assert.Equal(t, [3]uint32{3, 1, 0}, last)
}
