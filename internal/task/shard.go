package task

import (
	"fmt"
	"sync/atomic"

	"github.com/vk/taskgrid/internal/status"
)

// shardState is shared by all shards of one dispatch: the work-stealing
// cursor over the flattened tile space.
type shardState struct {
	// tileIndex is the next unreserved tile. Relaxed ordering suffices:
	// tiles are independent and the reservation itself carries no data.
	tileIndex atomic.Uint32
	tileCount uint32
	// tilesPerReservation is how many tiles a shard claims per cursor bump.
	tilesPerReservation uint32
}

// Shard dynamically reserves tile ranges of a dispatch grid from the shared
// cursor until the grid is exhausted. One shard is spawned per worker, so an
// idle worker steals work simply by reserving the next range.
type Shard struct {
	Task
	dispatch *Dispatch
	shared   *shardState
}

// initialize wires the shard to its parent dispatch, raising the dispatch's
// pending count through the completion edge.
func (s *Shard) initialize(d *Dispatch) {
	s.init(KindDispatchShard, d.scope, s)
	_ = s.SetCompletion(&d.Task)
	s.dispatch = d
	s.shared = &d.shard
}

// Execute loops reserving tile ranges and running the dispatch closure per
// tile. Statistics aggregate in the shard's frame and merge into the parent
// once at the end, keeping the shared counters uncontended. A tile failure
// stops this shard and is captured in the parent (first wins); sibling
// shards continue. Once its reservations are done the shard retires OK; when
// the worker's local memory is smaller than the dispatch's request, no tile
// runs and the shard retires with a resource-exhausted status.
func (s *Shard) Execute(localMemory []byte, pending *Submission) {
	d := s.dispatch

	if d.localMemorySize > len(localMemory) {
		retire(&s.Task, pending, fmt.Errorf(
			"dispatch requires %db of local memory but only %db is available per-worker: %w",
			d.localMemorySize, len(localMemory), status.ErrResourceExhausted))
		return
	}

	var stats DispatchStatistics
	tile := TileContext{
		WorkgroupSize:  d.workgroupSize,
		WorkgroupCount: d.workgroupCount,
		Statistics:     &stats,
		LocalMemory:    localMemory[:d.localMemorySize],
	}
	countX := d.workgroupCount[0]
	countY := d.workgroupCount[1]

	tileCount := s.shared.tileCount
	tilesPerReservation := s.shared.tilesPerReservation

	var err error
	if !s.hasFlag(FlagAborted) {
	reservations:
		for {
			base := s.shared.tileIndex.Add(tilesPerReservation) - tilesPerReservation
			if base >= tileCount {
				break
			}
			stats.Reservations.Add(1)
			end := min(base+tilesPerReservation, tileCount)
			for i := base; i < end; i++ {
				// Decompose the flat index into grid coordinates, X fastest.
				ti := i
				x := ti % countX
				ti /= countX
				y := ti % countY
				ti /= countY
				tile.WorkgroupXYZ = [3]uint32{x, y, ti}
				err = d.fn(&tile, pending)
				stats.Tiles.Add(1)
				if err != nil {
					break reservations
				}
			}
		}
	}

	stats.MergeInto(&d.stats)
	if err != nil {
		d.st.TrySet(err)
	}
	retire(&s.Task, pending, nil)
}
