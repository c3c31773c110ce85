package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeName(t *testing.T) {
	assert.Equal(t, "payload", NewScope("payload").Name())
	assert.NotEmpty(t, NewScope("").Name(), "empty names are replaced with a generated one")
}

func TestScopeIdleTracking(t *testing.T) {
	scope := NewScope("idle")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// A fresh scope is idle.
	require.NoError(t, scope.WaitIdle(ctx))

	scope.Begin()
	scope.Begin()
	scope.End()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer waitCancel()
	assert.ErrorIs(t, scope.WaitIdle(waitCtx), context.DeadlineExceeded,
		"scope with outstanding work must not report idle")

	scope.End()
	require.NoError(t, scope.WaitIdle(ctx))
}

func TestScopeWaitIdleUnblocksOnEnd(t *testing.T) {
	scope := NewScope("unblock")
	scope.Begin()

	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- scope.WaitIdle(ctx)
	}()

	scope.End()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitIdle did not unblock")
	}
}

func TestScopeFirstFailureWins(t *testing.T) {
	scope := NewScope("failure")
	errFirst := errors.New("first")
	errSecond := errors.New("second")

	require.NoError(t, scope.Status())
	assert.False(t, scope.HasFailed())

	scope.fail(errFirst)
	scope.fail(errSecond)

	assert.True(t, scope.HasFailed())
	assert.ErrorIs(t, scope.Status(), errFirst)
	assert.NotErrorIs(t, scope.Status(), errSecond, "later failures are consumed and dropped")
}

func TestFenceBalancesScope(t *testing.T) {
	scope := NewScope("fence")
	fence := NewFence(scope)

	waitCtx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, scope.WaitIdle(waitCtx), context.DeadlineExceeded,
		"fence initialization must begin the scope")

	var pending Submission
	fence.Retire(&pending)

	ctx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	require.NoError(t, scope.WaitIdle(ctx))
}
