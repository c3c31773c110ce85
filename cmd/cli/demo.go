package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/vk/taskgrid/internal/ctxlog"
	"github.com/vk/taskgrid/internal/executor"
	"github.com/vk/taskgrid/internal/task"
)

func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a small example graph: a call chain into a barrier fan-out",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, settings, err := loadSettings(cmd.Context())
			if err != nil {
				return err
			}
			logger := ctxlog.FromContext(ctx)

			exec := executor.New(ctx, settings)
			defer func() {
				if err := exec.Shutdown(ctx); err != nil {
					logger.Warn("Executor shutdown interrupted.", "error", err)
				}
			}()

			scope := task.NewScope("demo")
			var mu sync.Mutex
			var order []string
			step := func(name string) task.CallFn {
				return func(c *task.Call, pending *task.Submission) error {
					mu.Lock()
					order = append(order, name)
					mu.Unlock()
					logger.Info("Step executed.", "step", name)
					return nil
				}
			}

			// prepare -> stage -> {left, right, center} -> fence
			prepare := task.NewCall(scope, step("prepare"))
			stage := task.NewCall(scope, step("stage"))
			left := task.NewCall(scope, step("left"))
			right := task.NewCall(scope, step("right"))
			center := task.NewCall(scope, step("center"))

			fanOut := task.NewBarrier(scope, &left.Task, &right.Task, &center.Task)
			fence := task.NewFence(scope)
			join := task.NewBarrier(scope, &fence.Task)

			if err := prepare.SetCompletion(&stage.Task); err != nil {
				return err
			}
			if err := stage.SetCompletion(&fanOut.Task); err != nil {
				return err
			}
			for _, leaf := range []*task.Call{left, right, center} {
				if err := leaf.SetCompletion(&join.Task); err != nil {
					return err
				}
			}

			var sub task.Submission
			sub.Enqueue(&prepare.Task)
			exec.Submit(&sub)

			if err := scope.WaitIdle(ctx); err != nil {
				return err
			}
			if err := scope.Status(); err != nil {
				return fmt.Errorf("demo graph failed: %w", err)
			}

			logger.Info("Demo complete.", "order", order)
			return nil
		},
	}
}
