package task

import "sync/atomic"

// DispatchStatistics counts the work performed by a dispatch. Slices and
// shards accumulate into a private instance while they run and merge into the
// parent dispatch on retirement, so the shared counters are only touched once
// per slice or shard rather than once per tile.
type DispatchStatistics struct {
	// Tiles is the number of workgroup invocations executed.
	Tiles atomic.Uint64
	// Slices is the number of slice tasks issued.
	Slices atomic.Uint64
	// Shards is the number of shard tasks issued.
	Shards atomic.Uint64
	// Reservations is the number of tile-range reservations shards pulled
	// from the cursor.
	Reservations atomic.Uint64
}

// Reset zeroes every counter. Used when recycling the containing task.
func (s *DispatchStatistics) Reset() {
	s.Tiles.Store(0)
	s.Slices.Store(0)
	s.Shards.Store(0)
	s.Reservations.Store(0)
}

// MergeInto adds s into target.
func (s *DispatchStatistics) MergeInto(target *DispatchStatistics) {
	if n := s.Tiles.Load(); n != 0 {
		target.Tiles.Add(n)
	}
	if n := s.Slices.Load(); n != 0 {
		target.Slices.Add(n)
	}
	if n := s.Shards.Load(); n != 0 {
		target.Shards.Add(n)
	}
	if n := s.Reservations.Load(); n != 0 {
		target.Reservations.Add(n)
	}
}

// Snapshot returns a plain copy of the counters.
func (s *DispatchStatistics) Snapshot() StatisticsSnapshot {
	return StatisticsSnapshot{
		Tiles:        s.Tiles.Load(),
		Slices:       s.Slices.Load(),
		Shards:       s.Shards.Load(),
		Reservations: s.Reservations.Load(),
	}
}

// StatisticsSnapshot is a point-in-time copy of DispatchStatistics.
type StatisticsSnapshot struct {
	Tiles        uint64
	Slices       uint64
	Shards       uint64
	Reservations uint64
}
