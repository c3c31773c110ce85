package config

import (
	"context"
	"runtime"

	"github.com/vk/taskgrid/internal/task"
)

// Settings is the unified representation of everything an executor needs at
// construction: pool sizing, worker-local memory, and the dispatch tuning
// knobs.
type Settings struct {
	// Workers is the number of worker goroutines. Zero or negative means
	// one per available CPU.
	Workers int

	// LocalMemorySize is the per-worker scratch span, in bytes. Dispatches
	// requesting more than this fail their slices and shards with a
	// resource-exhausted status.
	LocalMemorySize int

	// SlicePoolCapacity and ShardPoolCapacity bound the free lists for
	// transient dispatch tasks.
	SlicePoolCapacity int
	ShardPoolCapacity int

	Tuning task.Tuning
}

// Default returns the settings used when no configuration file is given.
func Default() Settings {
	return Settings{
		Workers:           runtime.GOMAXPROCS(0),
		LocalMemorySize:   64 * 1024,
		SlicePoolCapacity: 1024,
		ShardPoolCapacity: 256,
		Tuning:            task.DefaultTuning(),
	}
}

// Loader is the interface for a format-specific settings loader. Load reads
// the file at path and returns Default overlaid with whatever the file sets.
type Loader interface {
	Load(ctx context.Context, path string) (*Settings, error)
}
