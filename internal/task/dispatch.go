package task

import "github.com/vk/taskgrid/internal/status"

// TileContext is passed to the dispatch closure once per workgroup.
type TileContext struct {
	// WorkgroupXYZ is the coordinate of the tile within the grid.
	WorkgroupXYZ [3]uint32
	// WorkgroupSize is the dispatch's workgroup size hint.
	WorkgroupSize [3]uint32
	// WorkgroupCount is the full grid extent.
	WorkgroupCount [3]uint32
	// Statistics accumulates per-executor counters that merge into the
	// dispatch on retirement.
	Statistics *DispatchStatistics
	// LocalMemory is scratch memory private to the executing worker, sized
	// to the dispatch's request. Contents do not survive across tiles on
	// different workers.
	LocalMemory []byte
}

// DispatchFn is the body of a dispatch, invoked once per tile. Like CallFn it
// may enqueue nested tasks through pending. A non-nil error stops the
// invoking slice or shard and is captured as the dispatch's status (first
// failure wins); other slices and shards continue.
type DispatchFn func(tile *TileContext, pending *Submission) error

// DispatchMode selects how a dispatch's grid is distributed over workers.
// The mode is a property of the dispatch, chosen by the producer.
type DispatchMode uint8

const (
	// ModeSharded spawns one shard per worker; shards reserve tile ranges
	// from a shared atomic cursor, giving dynamic work stealing.
	ModeSharded DispatchMode = iota
	// ModeSliced statically partitions the grid into fixed-size blocks, one
	// slice task per block, distributed round-robin.
	ModeSliced
)

// String returns the lowercase mode name.
func (m DispatchMode) String() string {
	if m == ModeSliced {
		return "sliced"
	}
	return "sharded"
}

// Dispatch executes a closure across a 3-D grid of workgroups. The grid
// extent comes either from inline values or, for indirect dispatches, from
// memory read at issue time. Issue fans the grid out into slice or shard
// tasks wired as completion dependencies; the dispatch retires when the last
// of them completes.
type Dispatch struct {
	Task
	fn DispatchFn

	workgroupSize  [3]uint32
	workgroupCount [3]uint32
	// workgroupCountPtr is the indirect count source, read once at issue.
	workgroupCountPtr *[3]uint32

	// localMemorySize is the per-tile scratch request, in bytes.
	localMemorySize int

	mode DispatchMode

	// st aggregates tile failures across slices/shards; first failure wins.
	st status.Slot

	stats DispatchStatistics

	// shard is the state shared by this dispatch's shards.
	shard shardState
}

// NewDispatch creates a dispatch in scope over an inline workgroup count.
func NewDispatch(scope *Scope, fn DispatchFn, workgroupSize, workgroupCount [3]uint32) *Dispatch {
	d := &Dispatch{}
	d.init(KindDispatch, scope, d)
	d.fn = fn
	d.workgroupSize = workgroupSize
	d.workgroupCount = workgroupCount
	return d
}

// NewIndirectDispatch creates a dispatch whose workgroup count is read from
// countPtr when the dispatch issues. By then every dependency of the
// dispatch has retired, so writes to the target are visible.
func NewIndirectDispatch(scope *Scope, fn DispatchFn, workgroupSize [3]uint32, countPtr *[3]uint32) *Dispatch {
	d := &Dispatch{}
	d.init(KindDispatch, scope, d)
	d.fn = fn
	d.workgroupSize = workgroupSize
	d.workgroupCountPtr = countPtr
	d.setFlag(FlagDispatchIndirect)
	return d
}

// SetMode selects sliced or sharded issue. Must be called before submission.
func (d *Dispatch) SetMode(mode DispatchMode) { d.mode = mode }

// Mode returns the issue mode.
func (d *Dispatch) Mode() DispatchMode { return d.mode }

// SetLocalMemorySize declares how many bytes of worker-local scratch each
// tile invocation requires.
func (d *Dispatch) SetLocalMemorySize(n int) { d.localMemorySize = n }

// Issued reports whether the dispatch has fanned out its grid; its next
// retirement then means all work completed.
func (d *Dispatch) Issued() bool { return d.hasFlag(FlagDispatchRetire) }

// Statistics returns a snapshot of the dispatch's counters. Totals are final
// once the dispatch has retired.
func (d *Dispatch) Statistics() StatisticsSnapshot { return d.stats.Snapshot() }

// DispatchPools supplies the transient slice and shard tasks created at
// issue. When a pool is exhausted the dispatch falls back to heap-allocated
// tasks reclaimed by the garbage collector, trading allocation cost for
// progress.
type DispatchPools struct {
	Slices *Pool[Slice]
	Shards *Pool[Shard]
}

// Issue fans the dispatch grid out into slice or shard tasks routed through
// batch. A zero-sized grid retires the dispatch immediately.
func (d *Dispatch) Issue(tuning *Tuning, pools DispatchPools, pending *Submission, batch *PostBatch) {
	// The next retirement of this task means all fanned-out work completed.
	d.setFlag(FlagDispatchRetire)

	count := d.resolveWorkgroupCount()
	if count[0]*count[1]*count[2] == 0 {
		d.Retire(pending)
		return
	}

	if d.mode == ModeSliced {
		d.issueSliced(tuning, pools.Slices, count, batch)
	} else {
		d.issueSharded(tuning, pools.Shards, count, batch)
	}
}

// resolveWorkgroupCount reads the grid extent, performing the indirection
// for indirect dispatches. Shard mode needs the count again while executing,
// so the indirect value is cached inline and the dispatch collapses to a
// direct one.
func (d *Dispatch) resolveWorkgroupCount() [3]uint32 {
	if d.hasFlag(FlagDispatchIndirect) {
		d.workgroupCount = *d.workgroupCountPtr
		d.clearFlag(FlagDispatchIndirect)
	}
	return d.workgroupCount
}

// issueSliced statically partitions the grid into blocks of the tuned
// tiles-per-slice dimensions (outer ceil so odd-sized grids are fully
// covered) and distributes the blocks round-robin from a randomized start.
func (d *Dispatch) issueSliced(tuning *Tuning, pool *Pool[Slice], count [3]uint32, batch *PostBatch) {
	tpsX := tuning.TilesPerSliceX
	tpsY := tuning.TilesPerSliceY
	tpsZ := tuning.TilesPerSliceZ
	sliceCountX := ceilDiv(count[0], tpsX)
	sliceCountY := ceilDiv(count[1], tpsY)
	sliceCountZ := ceilDiv(count[2], tpsZ)
	sliceCount := sliceCountX * sliceCountY * sliceCountZ

	workerCount := uint32(batch.WorkerCount())
	slicesPerWorker := max(1, sliceCount/workerCount)
	workerIdx := uint32(batch.SelectWorker(d.affinity))
	workerSliceCount := uint32(0)

	for sliceZ := uint32(0); sliceZ < sliceCountZ; sliceZ++ {
		for sliceY := uint32(0); sliceY < sliceCountY; sliceY++ {
			for sliceX := uint32(0); sliceX < sliceCountX; sliceX++ {
				base := [3]uint32{sliceX * tpsX, sliceY * tpsY, sliceZ * tpsZ}
				last := [3]uint32{
					min(count[0], base[0]+tpsX) - 1,
					min(count[1], base[1]+tpsY) - 1,
					min(count[2], base[2]+tpsZ) - 1,
				}
				slice := d.allocateSlice(pool, base, last, count)
				batch.Enqueue(int(workerIdx%workerCount), &slice.Task)
				if workerSliceCount++; workerSliceCount >= slicesPerWorker {
					workerIdx++
					workerSliceCount = 0
				}
			}
		}
	}
	d.stats.Slices.Add(uint64(sliceCount))
}

// issueSharded sets up the shared tile cursor and spawns one shard per
// worker (fewer for tiny grids). Shards pull reservations from the cursor,
// so load balances dynamically without any further coordination here.
func (d *Dispatch) issueSharded(tuning *Tuning, pool *Pool[Shard], count [3]uint32, batch *PostBatch) {
	d.shard.tileIndex.Store(0)
	d.shard.tileCount = count[0] * count[1] * count[2]

	workerCount := uint32(batch.WorkerCount())
	if d.shard.tileCount < workerCount*tuning.MaxTilesPerShardReservation {
		// Small grid: slice it up eagerly, one tile at a time.
		d.shard.tilesPerReservation = 1
	} else {
		d.shard.tilesPerReservation = tuning.MaxTilesPerShardReservation
	}

	shardCount := min(d.shard.tileCount, workerCount)
	workerIdx := uint32(batch.SelectWorker(d.affinity))
	for i := uint32(0); i < shardCount; i++ {
		shard := d.allocateShard(pool)
		batch.Enqueue(int(workerIdx%workerCount), &shard.Task)
		workerIdx++
	}
	d.stats.Shards.Add(uint64(shardCount))
}

func (d *Dispatch) allocateSlice(pool *Pool[Slice], base, last, count [3]uint32) *Slice {
	var slice *Slice
	if pool != nil {
		if s, err := pool.Acquire(); err == nil {
			slice = s
		}
	}
	if slice == nil {
		slice = &Slice{}
	}
	slice.initialize(d, base, last, count)
	return slice
}

func (d *Dispatch) allocateShard(pool *Pool[Shard]) *Shard {
	var shard *Shard
	if pool != nil {
		if s, err := pool.Acquire(); err == nil {
			shard = s
		}
	}
	if shard == nil {
		shard = &Shard{}
	}
	shard.initialize(d)
	return shard
}

// Retire runs when the last slice or shard completion edge drops the
// dispatch's pending count to zero (or immediately for an empty grid). The
// aggregated statistics roll up into the scope and the status captured from
// any failed tile is surfaced through the generic retire path.
func (d *Dispatch) Retire(pending *Submission) {
	d.stats.MergeInto(&d.scope.stats)
	retire(&d.Task, pending, d.st.Take())
}

func ceilDiv(n, d uint32) uint32 {
	return (n + d - 1) / d
}
