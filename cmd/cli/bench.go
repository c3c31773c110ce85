package main

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/vk/taskgrid/internal/ctxlog"
	"github.com/vk/taskgrid/internal/executor"
	"github.com/vk/taskgrid/internal/task"
)

func newBenchCmd() *cobra.Command {
	var (
		flagGrid     string
		flagMode     string
		flagIndirect bool
		flagLocalMem int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a 3-D dispatch grid and report tile throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, settings, err := loadSettings(cmd.Context())
			if err != nil {
				return err
			}
			logger := ctxlog.FromContext(ctx)

			grid, err := parseGrid(flagGrid)
			if err != nil {
				return err
			}
			var mode task.DispatchMode
			switch flagMode {
			case "shard", "sharded":
				mode = task.ModeSharded
			case "slice", "sliced":
				mode = task.ModeSliced
			default:
				return fmt.Errorf("unknown mode %q (want shard or slice)", flagMode)
			}

			exec := executor.New(ctx, settings)
			defer func() {
				if err := exec.Shutdown(ctx); err != nil {
					logger.Warn("Executor shutdown interrupted.", "error", err)
				}
			}()

			scope := task.NewScope("bench")
			var checksum atomic.Uint64
			body := func(tile *task.TileContext, pending *task.Submission) error {
				// Touch every tile coordinate so the work cannot be elided.
				checksum.Add(uint64(tile.WorkgroupXYZ[0]) +
					uint64(tile.WorkgroupXYZ[1])<<16 +
					uint64(tile.WorkgroupXYZ[2])<<32)
				return nil
			}

			var dispatch *task.Dispatch
			workgroupSize := [3]uint32{1, 1, 1}
			if flagIndirect {
				countBuf := grid
				dispatch = task.NewIndirectDispatch(scope, body, workgroupSize, &countBuf)
			} else {
				dispatch = task.NewDispatch(scope, body, workgroupSize, grid)
			}
			dispatch.SetMode(mode)
			dispatch.SetLocalMemorySize(flagLocalMem)

			fence := task.NewFence(scope)
			if err := dispatch.SetCompletion(&fence.Task); err != nil {
				return err
			}

			var sub task.Submission
			sub.Enqueue(&dispatch.Task)

			start := time.Now()
			exec.Submit(&sub)
			if err := scope.WaitIdle(ctx); err != nil {
				return err
			}
			elapsed := time.Since(start)
			if err := scope.Status(); err != nil {
				return fmt.Errorf("dispatch failed: %w", err)
			}

			stats := scope.Statistics()
			logger.Info("Bench complete.",
				"grid", flagGrid,
				"mode", mode.String(),
				"workers", exec.WorkerCount(),
				"tiles", stats.Tiles,
				"slices", stats.Slices,
				"shards", stats.Shards,
				"reservations", stats.Reservations,
				"elapsed", elapsed,
				"tiles_per_sec", float64(stats.Tiles)/elapsed.Seconds(),
				"checksum", checksum.Load(),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&flagGrid, "grid", "64x64x8", "workgroup count as XxYxZ")
	cmd.Flags().StringVar(&flagMode, "mode", "shard", "issue mode: shard or slice")
	cmd.Flags().BoolVar(&flagIndirect, "indirect", false, "resolve the grid through an indirect count")
	cmd.Flags().IntVar(&flagLocalMem, "local-memory", 0, "bytes of worker-local scratch per tile")
	return cmd
}

// parseGrid parses "XxYxZ" into workgroup counts.
func parseGrid(s string) ([3]uint32, error) {
	var grid [3]uint32
	parts := strings.Split(s, "x")
	if len(parts) != 3 {
		return grid, fmt.Errorf("grid must be XxYxZ, got %q", s)
	}
	for i, p := range parts {
		var v uint32
		if _, err := fmt.Sscanf(p, "%d", &v); err != nil {
			return grid, fmt.Errorf("grid dimension %q: %w", p, err)
		}
		grid[i] = v
	}
	return grid, nil
}
