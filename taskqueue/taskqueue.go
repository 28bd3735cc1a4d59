// Package taskqueue provides a bounded-concurrency executor for an ordered
// backlog of tasks. A fixed pool of workers drains the backlog, results are
// collected by submission index regardless of completion order, and the
// first task failure rejects the whole run.
package taskqueue

import (
	"context"
	"errors"
	"sync"
)

// ErrExecuteStarted is returned by Add once Execute has been called.
var ErrExecuteStarted = errors.New("task queue is already executing")

// Task is a single unit of work producing a value of type T.
type Task[T any] func(ctx context.Context) (T, error)

// Queue executes tasks with a hard cap on the number of tasks in flight
// at any instant. The zero value is not usable, use New.
type Queue[T any] struct {
	concurrency int

	mu      sync.Mutex
	backlog []Task[T]
	started bool

	once    sync.Once
	results []T
	err     error
	done    chan struct{}
}

// New creates a queue that runs at most concurrency tasks at once.
func New[T any](concurrency int) *Queue[T] {
	return &Queue[T]{
		concurrency: concurrency,
		done:        make(chan struct{}),
	}
}

// Add appends a task to the backlog. Tasks run in submission order and
// their results are reported in submission order. Add fails with
// ErrExecuteStarted after the first Execute call.
func (q *Queue[T]) Add(task Task[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.started {
		return ErrExecuteStarted
	}
	q.backlog = append(q.backlog, task)
	return nil
}

// Len returns the number of tasks added so far.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// Execute drains the backlog and returns one result per task, indexed by
// submission order. It returns the first task failure as soon as it is
// observed: tasks already in flight at that point finish, but their results
// are discarded and no further task is started.
//
// Execute is idempotent. Concurrent or repeated calls do not start a second
// run, they wait for the first run and return its outcome.
func (q *Queue[T]) Execute(ctx context.Context) ([]T, error) {
	q.once.Do(func() {
		q.mu.Lock()
		q.started = true
		tasks := q.backlog
		q.mu.Unlock()

		q.results, q.err = q.run(ctx, tasks)
		close(q.done)
	})

	<-q.done
	return q.results, q.err
}

func (q *Queue[T]) run(ctx context.Context, tasks []Task[T]) ([]T, error) {
	if len(tasks) == 0 || q.concurrency <= 0 {
		return []T{}, nil
	}

	workers := q.concurrency
	if workers > len(tasks) {
		workers = len(tasks)
	}

	backlog := make(chan int, len(tasks))
	for i := range tasks {
		backlog <- i
	}
	close(backlog)

	results := make([]T, len(tasks))
	quit := make(chan struct{})

	var failMu sync.Mutex
	var firstErr error
	fail := func(err error) {
		failMu.Lock()
		defer failMu.Unlock()
		if firstErr == nil {
			firstErr = err
			close(quit)
		}
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				select {
				case <-quit:
					return
				case <-ctx.Done():
					fail(ctx.Err())
					return
				case index, ok := <-backlog:
					if !ok {
						return
					}
					// A failure or cancellation may have been observed while
					// this worker was blocked on the backlog.
					select {
					case <-quit:
						return
					case <-ctx.Done():
						fail(ctx.Err())
						return
					default:
					}

					result, err := tasks[index](ctx)
					if err != nil {
						fail(err)
						return
					}
					results[index] = result
				}
			}
		}()
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}
