package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instrumented returns n tasks that track how many of them run at the same time.
func instrumented(n int, hold time.Duration, active, peak, ran *atomic.Int64) []Task {
	tasks := make([]Task, n)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			cur := active.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(hold)
			active.Add(-1)
			ran.Add(1)
			return nil
		}
	}
	return tasks
}

func TestRunBoundsConcurrency(t *testing.T) {
	var active, peak, ran atomic.Int64
	err := Run(context.Background(), 2, instrumented(5, 20*time.Millisecond, &active, &peak, &ran))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int64(2))
	assert.Equal(t, int64(5), ran.Load())
}

func TestRunUsesAvailableConcurrency(t *testing.T) {
	var active, peak, ran atomic.Int64
	err := Run(context.Background(), 8, instrumented(8, 50*time.Millisecond, &active, &peak, &ran))
	require.NoError(t, err)
	assert.Greater(t, peak.Load(), int64(1))
	assert.LessOrEqual(t, peak.Load(), int64(8))
}

func TestRunSurfacesFirstFailureAfterAllFinish(t *testing.T) {
	boom := errors.New("boom")
	var finished atomic.Int64
	tasks := []Task{
		func(ctx context.Context) error {
			return boom
		},
		func(ctx context.Context) error {
			time.Sleep(30 * time.Millisecond)
			finished.Add(1)
			return nil
		},
		func(ctx context.Context) error {
			time.Sleep(30 * time.Millisecond)
			finished.Add(1)
			return nil
		},
	}
	err := Run(context.Background(), 3, tasks)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(2), finished.Load(), "siblings of a failed task still run to completion")
}

func TestRunRecoversPanics(t *testing.T) {
	err := Run(context.Background(), 1, []Task{func(ctx context.Context) error { panic("oops") }})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "oops")
}

func TestRunSkipsTasksAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Int64
	tasks := []Task{
		func(ctx context.Context) error {
			cancel()
			ran.Add(1)
			return nil
		},
		func(ctx context.Context) error {
			ran.Add(1)
			return nil
		},
	}
	err := Run(ctx, 1, tasks)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(1), ran.Load())
}

func TestRunRejectsInvalidConcurrency(t *testing.T) {
	called := false
	err := Run(context.Background(), 0, []Task{func(ctx context.Context) error { called = true; return nil }})
	assert.ErrorIs(t, err, ErrInvalidConcurrency)
	assert.False(t, called)
}

func TestRunEmpty(t *testing.T) {
	assert.NoError(t, Run(context.Background(), 4, nil))
}
