package async

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Executor runs background work (fetch, decode, resolve) with bounded
// parallelism. It never touches the world; results go back through a Queue.
type Executor struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup
	log *zap.Logger
}

func NewExecutor(workers int, log *zap.Logger) *Executor {
	if workers <= 0 {
		workers = 1
	}
	return &Executor{
		sem: semaphore.NewWeighted(int64(workers)),
		log: log,
	}
}

// Go schedules fn and returns immediately. fn waits for a free worker slot;
// if ctx ends first fn is dropped and onDrop (when non-nil) runs instead.
func (e *Executor) Go(ctx context.Context, fn func(ctx context.Context), onDrop func(err error)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.sem.Acquire(ctx, 1); err != nil {
			if onDrop != nil {
				onDrop(err)
			}
			return
		}
		defer e.sem.Release(1)
		defer func() {
			if rec := recover(); rec != nil {
				e.log.Error("background task panic recovered", zap.String("panic", fmt.Sprint(rec)))
			}
		}()
		fn(ctx)
	}()
}

// Wait blocks until every scheduled task has finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}
