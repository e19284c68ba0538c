package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond"
)

var ErrInvalidConcurrency = errors.New("concurrency must be at least 1")

// A Task is one independent unit of work.
type Task func(ctx context.Context) error

// Run executes every task with at most concurrency of them active at once. It returns once all
// outcomes are known, surfacing the first failure. A failing task does not stop its siblings.
// Tasks that have not started when ctx is done are skipped and fail with ctx.Err().
func Run(ctx context.Context, concurrency int, tasks []Task) error {
	if concurrency < 1 {
		return fmt.Errorf("%w, got %d", ErrInvalidConcurrency, concurrency)
	}
	if len(tasks) == 0 {
		return nil
	}

	workers := min(concurrency, len(tasks))
	pool := pond.New(workers, len(tasks), pond.MinWorkers(workers))
	defer pool.StopAndWait()

	var (
		once     sync.Once
		firstErr error
		failed   atomic.Int64
	)
	fail := func(err error) {
		failed.Add(1)
		once.Do(func() { firstErr = err })
	}

	group := pool.Group()
	for i, task := range tasks {
		group.Submit(func() {
			if err := ctx.Err(); err != nil {
				fail(fmt.Errorf("task %d not started: %w", i, err))
				return
			}
			if err := runTask(ctx, task); err != nil {
				fail(fmt.Errorf("task %d: %w", i, err))
			}
		})
	}
	group.Wait()

	if firstErr != nil {
		slog.Debug("scheduler finished with failure",
			slog.Int("tasks", len(tasks)),
			slog.Int64("failed", failed.Load()),
			slog.String("error", firstErr.Error()))
	}
	return firstErr
}

func runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}
