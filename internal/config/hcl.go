package config

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/vk/taskgrid/internal/ctxlog"
)

// HCLLoader loads Settings from an HCL file of the form:
//
//	executor {
//	  workers                         = 8
//	  local_memory_size               = 65536
//	  slice_pool_capacity             = 1024
//	  shard_pool_capacity             = 256
//	  tiles_per_slice                 = [8, 1, 1]
//	  max_tiles_per_shard_reservation = 8
//	  wait_poll_interval              = "100us"
//	}
//
// Every attribute is optional; omitted ones keep their defaults.
type HCLLoader struct{}

// NewHCLLoader creates an HCL settings loader.
func NewHCLLoader() *HCLLoader {
	return &HCLLoader{}
}

// executorSchema is the HCL-facing shape of the executor block. Pointer
// fields distinguish "absent" from zero.
type executorSchema struct {
	Workers                     *int           `hcl:"workers,optional"`
	LocalMemorySize             *int           `hcl:"local_memory_size,optional"`
	SlicePoolCapacity           *int           `hcl:"slice_pool_capacity,optional"`
	ShardPoolCapacity           *int           `hcl:"shard_pool_capacity,optional"`
	TilesPerSlice               hcl.Expression `hcl:"tiles_per_slice,optional"`
	MaxTilesPerShardReservation *int           `hcl:"max_tiles_per_shard_reservation,optional"`
	WaitPollInterval            *string        `hcl:"wait_poll_interval,optional"`
}

type fileSchema struct {
	Executor *executorSchema `hcl:"executor,block"`
}

// Load implements Loader.
func (l *HCLLoader) Load(ctx context.Context, path string) (*Settings, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Loading executor settings.", "path", path)

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", path, diags)
	}

	var schema fileSchema
	if diags := gohcl.DecodeBody(file.Body, nil, &schema); diags.HasErrors() {
		return nil, fmt.Errorf("decoding %s: %w", path, diags)
	}

	settings := Default()
	if schema.Executor == nil {
		logger.Debug("No executor block found; using defaults.")
		return &settings, nil
	}
	if err := applyExecutorSchema(schema.Executor, &settings); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	logger.Debug("Executor settings loaded.",
		"workers", settings.Workers,
		"local_memory_size", settings.LocalMemorySize)
	return &settings, nil
}

func applyExecutorSchema(s *executorSchema, settings *Settings) error {
	if s.Workers != nil {
		if *s.Workers < 1 {
			return fmt.Errorf("workers must be at least 1, got %d", *s.Workers)
		}
		settings.Workers = *s.Workers
	}
	if s.LocalMemorySize != nil {
		if *s.LocalMemorySize < 0 {
			return fmt.Errorf("local_memory_size must not be negative, got %d", *s.LocalMemorySize)
		}
		settings.LocalMemorySize = *s.LocalMemorySize
	}
	if s.SlicePoolCapacity != nil {
		settings.SlicePoolCapacity = *s.SlicePoolCapacity
	}
	if s.ShardPoolCapacity != nil {
		settings.ShardPoolCapacity = *s.ShardPoolCapacity
	}
	if s.MaxTilesPerShardReservation != nil {
		if *s.MaxTilesPerShardReservation < 1 {
			return fmt.Errorf("max_tiles_per_shard_reservation must be at least 1, got %d",
				*s.MaxTilesPerShardReservation)
		}
		settings.Tuning.MaxTilesPerShardReservation = uint32(*s.MaxTilesPerShardReservation)
	}
	if s.WaitPollInterval != nil {
		d, err := time.ParseDuration(*s.WaitPollInterval)
		if err != nil {
			return fmt.Errorf("wait_poll_interval: %w", err)
		}
		settings.Tuning.WaitPollInterval = d
	}
	if s.TilesPerSlice != nil {
		tps, ok, err := decodeTilesPerSlice(s.TilesPerSlice)
		if err != nil {
			return err
		}
		if ok {
			settings.Tuning.TilesPerSliceX = tps[0]
			settings.Tuning.TilesPerSliceY = tps[1]
			settings.Tuning.TilesPerSliceZ = tps[2]
		}
	}
	return nil
}

// decodeTilesPerSlice evaluates the tiles_per_slice expression and converts
// it to exactly three positive dimensions. ok is false when the attribute
// was absent (gohcl hands optional expressions through as null).
func decodeTilesPerSlice(expr hcl.Expression) (_ [3]uint32, ok bool, _ error) {
	var out [3]uint32

	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return out, false, fmt.Errorf("tiles_per_slice: %w", diags)
	}
	if val.IsNull() {
		return out, false, nil
	}

	val, err := convert.Convert(val, cty.List(cty.Number))
	if err != nil {
		return out, false, fmt.Errorf("tiles_per_slice must be a list of numbers: %w", err)
	}

	var dims []uint32
	if err := gocty.FromCtyValue(val, &dims); err != nil {
		return out, false, fmt.Errorf("tiles_per_slice: %w", err)
	}
	if len(dims) != 3 {
		return out, false, fmt.Errorf("tiles_per_slice must have exactly 3 elements, got %d", len(dims))
	}
	for i, d := range dims {
		if d < 1 {
			return out, false, fmt.Errorf("tiles_per_slice[%d] must be at least 1, got %d", i, d)
		}
		out[i] = d
	}
	return out, true, nil
}
