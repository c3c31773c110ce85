package task

import "time"

// Tuning collects the scheduling knobs of the dispatch machinery. Values are
// fixed for the lifetime of an executor; the defaults favor cache-friendly
// runs along X with fine-grained stealing elsewhere.
type Tuning struct {
	// TilesPerSliceX/Y/Z are the block dimensions used when statically
	// partitioning a dispatch grid into slices.
	TilesPerSliceX uint32
	TilesPerSliceY uint32
	TilesPerSliceZ uint32

	// MaxTilesPerShardReservation caps how many tiles a shard reserves from
	// the shared cursor at a time. Higher amortizes cursor traffic and
	// improves locality; lower bounds worst-case latency. Small grids
	// collapse to one tile per reservation.
	MaxTilesPerShardReservation uint32

	// WaitPollInterval is how long a worker sleeps between polls of an
	// unsatisfied wait handle when it has nothing else to run.
	WaitPollInterval time.Duration
}

// DefaultTuning returns the default scheduling parameters.
func DefaultTuning() Tuning {
	return Tuning{
		TilesPerSliceX:              8,
		TilesPerSliceY:              1,
		TilesPerSliceZ:              1,
		MaxTilesPerShardReservation: 8,
		WaitPollInterval:            100 * time.Microsecond,
	}
}
