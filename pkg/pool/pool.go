package pool

import (
	"context"
	"sync"
)

// WorkerFunc processes one item. A non-nil error is collected by Run.
type WorkerFunc[T any] func(ctx context.Context, item T) error

// Run processes items with up to numWorkers goroutines and returns the collected errors.
// A numWorkers below one is treated as one.
func Run[T any](ctx context.Context, items []T, numWorkers int, workerFunc WorkerFunc[T]) []error {
	return RunWithProgress(ctx, items, numWorkers, workerFunc, nil)
}

// RunWithProgress is Run with an onDone callback invoked once per finished item.
// onDone may be called from several goroutines at once.
func RunWithProgress[T any](ctx context.Context, items []T, numWorkers int, workerFunc WorkerFunc[T], onDone func()) []error {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if numWorkers > len(items) && len(items) > 0 {
		numWorkers = len(items)
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	tasks := make(chan T)

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range tasks {
				if ctx.Err() != nil {
					continue
				}
				if err := workerFunc(ctx, item); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				if onDone != nil {
					onDone()
				}
			}
		}()
	}

feed:
	for _, item := range items {
		select {
		case tasks <- item:
		case <-ctx.Done():
			break feed
		}
	}
	close(tasks)
	wg.Wait()

	return errs
}
