package task

import (
	"fmt"

	"github.com/vk/taskgrid/internal/status"
)

// Slice executes a statically assigned block of a dispatch grid on one
// worker. Slices are transient: created at dispatch issue, wired as
// completion dependencies of the dispatch, and usually pool-allocated.
type Slice struct {
	Task
	fn DispatchFn

	// base and last bound the block, inclusive on both ends.
	base [3]uint32
	last [3]uint32

	workgroupSize  [3]uint32
	workgroupCount [3]uint32

	localMemorySize int

	// dispatchStatus and dispatchStats point back into the parent dispatch.
	dispatchStatus *status.Slot
	dispatchStats  *DispatchStatistics

	// stats is slice-local and rolls up into the dispatch on retirement.
	stats DispatchStatistics
}

// initialize wires the slice to its parent dispatch, raising the dispatch's
// pending count through the completion edge.
func (s *Slice) initialize(d *Dispatch, base, last, count [3]uint32) {
	s.init(KindDispatchSlice, d.scope, s)
	// Wiring the completion edge cannot fail here: the slice was created
	// this instant and has no prior edge.
	_ = s.SetCompletion(&d.Task)
	s.fn = d.fn
	s.base = base
	s.last = last
	s.workgroupSize = d.workgroupSize
	s.workgroupCount = count
	s.localMemorySize = d.localMemorySize
	s.dispatchStatus = &d.st
	s.dispatchStats = &d.stats
	s.stats.Reset()
}

// Bounds returns the inclusive block assigned to the slice.
func (s *Slice) Bounds() (base, last [3]uint32) {
	return s.base, s.last
}

// Execute iterates the block in Z-major order, invoking the dispatch closure
// per tile. A tile failure stops this slice and is captured in the parent
// dispatch (first failure wins); sibling slices continue, the parent
// aggregates. Once its tiles have run the slice retires OK — the parent
// carries the true status. When the worker's local memory is smaller than
// the dispatch's request, no tile runs and the slice retires with a
// resource-exhausted status.
func (s *Slice) Execute(localMemory []byte, pending *Submission) {
	if s.localMemorySize > len(localMemory) {
		retire(&s.Task, pending, fmt.Errorf(
			"dispatch requires %db of local memory but only %db is available per-worker: %w",
			s.localMemorySize, len(localMemory), status.ErrResourceExhausted))
		return
	}

	tile := TileContext{
		WorkgroupSize:  s.workgroupSize,
		WorkgroupCount: s.workgroupCount,
		Statistics:     &s.stats,
		LocalMemory:    localMemory[:s.localMemorySize],
	}

	var err error
	if !s.hasFlag(FlagAborted) {
	tiles:
		for z := s.base[2]; z <= s.last[2]; z++ {
			for y := s.base[1]; y <= s.last[1]; y++ {
				for x := s.base[0]; x <= s.last[0]; x++ {
					tile.WorkgroupXYZ = [3]uint32{x, y, z}
					err = s.fn(&tile, pending)
					s.stats.Tiles.Add(1)
					if err != nil {
						// Bail from the block; remaining tiles are skipped.
						break tiles
					}
				}
			}
		}
	}

	s.stats.MergeInto(s.dispatchStats)
	if err != nil {
		s.dispatchStatus.TrySet(err)
	}
	retire(&s.Task, pending, nil)
}
