package tasks_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/fleetcore/internal/infrastructure/tasks"
)

func TestSpawnAndAwait(t *testing.T) {
	task := tasks.Spawn(context.Background(), "work", func(ctx context.Context) (bool, error) {
		return true, nil
	})

	ok, err := task.Await(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, task.Done())
}

func TestAwaitAny_ReturnsFirstCompletion(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})

	fast := tasks.Spawn(ctx, "fast", func(ctx context.Context) (bool, error) {
		return true, nil
	})
	slow := tasks.Spawn(ctx, "slow", func(ctx context.Context) (bool, error) {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return true, nil
	})
	defer close(release)

	done, pending, err := tasks.AwaitAny(ctx, []*tasks.Task{fast, slow})
	require.NoError(t, err)
	require.NotEmpty(t, done)
	assert.Equal(t, "fast", done[0].Name())
	require.Len(t, pending, 1)
	assert.Equal(t, "slow", pending[0].Name())
}

func TestCancel_StopsAtNextSuspension(t *testing.T) {
	task := tasks.Spawn(context.Background(), "sleeper", func(ctx context.Context) (bool, error) {
		if err := tasks.Sleep(ctx, time.Minute); err != nil {
			return false, err
		}
		return true, nil
	})

	task.Cancel()

	ok, err := task.Await(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSleep_HonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tasks.Sleep(ctx, time.Minute), context.Canceled)

	assert.NoError(t, tasks.Sleep(context.Background(), time.Millisecond))
}
