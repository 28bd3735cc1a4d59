package taskqueue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestExecute_ResultsFollowSubmissionOrder(t *testing.T) {
	const numTasks = 20

	queue := New[int](4)
	for i := 0; i < numTasks; i++ {
		index := i
		err := queue.Add(func(ctx context.Context) (int, error) {
			// Randomized latency so completion order differs from
			// submission order.
			time.Sleep(time.Duration(rand.Intn(20)) * time.Millisecond)
			return index * 10, nil
		})
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	results, err := queue.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(results) != numTasks {
		t.Fatalf("Expected %d results, got %d", numTasks, len(results))
	}
	for i, result := range results {
		if result != i*10 {
			t.Errorf("Result %d: expected %d, got %d", i, i*10, result)
		}
	}
}

func TestExecute_ConcurrencyBound(t *testing.T) {
	const numTasks = 30
	const limit = 5

	var inFlight, highWater int32

	queue := New[struct{}](limit)
	for i := 0; i < numTasks; i++ {
		_ = queue.Add(func(ctx context.Context) (struct{}, error) {
			current := atomic.AddInt32(&inFlight, 1)
			for {
				observed := atomic.LoadInt32(&highWater)
				if current <= observed || atomic.CompareAndSwapInt32(&highWater, observed, current) {
					break
				}
			}
			time.Sleep(time.Duration(rand.Intn(10)) * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return struct{}{}, nil
		})
	}

	if _, err := queue.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if observed := atomic.LoadInt32(&highWater); observed > limit {
		t.Errorf("Observed %d tasks in flight, limit is %d", observed, limit)
	}
}

func TestExecute_FailFast(t *testing.T) {
	failure := errors.New("task blew up")

	var started int32
	queue := New[int](1)
	for i := 0; i < 5; i++ {
		index := i
		_ = queue.Add(func(ctx context.Context) (int, error) {
			atomic.AddInt32(&started, 1)
			if index == 1 {
				return 0, failure
			}
			return index, nil
		})
	}

	_, err := queue.Execute(context.Background())
	if !errors.Is(err, failure) {
		t.Fatalf("Expected the failing task's error, got: %v", err)
	}

	// With a single worker the failure is observed before task 2 could be
	// dispatched, so only tasks 0 and 1 ever ran.
	if count := atomic.LoadInt32(&started); count != 2 {
		t.Errorf("Expected 2 started tasks, got %d", count)
	}
}

func TestExecute_InFlightTasksFinishAfterFailure(t *testing.T) {
	failure := errors.New("middle task failed")

	var finished int32
	slowTask := func(ctx context.Context) (string, error) {
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&finished, 1)
		return "ok", nil
	}

	queue := New[string](3)
	_ = queue.Add(slowTask)
	_ = queue.Add(func(ctx context.Context) (string, error) {
		return "", failure
	})
	_ = queue.Add(slowTask)

	_, err := queue.Execute(context.Background())
	if !errors.Is(err, failure) {
		t.Fatalf("Expected the failing task's error, got: %v", err)
	}

	// Execute returns only after every worker has drained, so the slow
	// tasks completed even though their results were discarded.
	if count := atomic.LoadInt32(&finished); count != 2 {
		t.Errorf("Expected in-flight tasks to finish, finished: %d", count)
	}
}

func TestExecute_EmptyBacklog(t *testing.T) {
	queue := New[string](8)

	results, err := queue.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
}

func TestExecute_ZeroConcurrency(t *testing.T) {
	var executed int32

	queue := New[int](0)
	_ = queue.Add(func(ctx context.Context) (int, error) {
		atomic.AddInt32(&executed, 1)
		return 1, nil
	})

	results, err := queue.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("Expected no results, got %d", len(results))
	}
	if atomic.LoadInt32(&executed) != 0 {
		t.Error("No task should run with zero concurrency")
	}
}

func TestAdd_AfterExecute(t *testing.T) {
	queue := New[int](2)
	_ = queue.Add(func(ctx context.Context) (int, error) { return 1, nil })

	if _, err := queue.Execute(context.Background()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	err := queue.Add(func(ctx context.Context) (int, error) { return 2, nil })
	if !errors.Is(err, ErrExecuteStarted) {
		t.Fatalf("Expected ErrExecuteStarted, got: %v", err)
	}
}

func TestExecute_Idempotent(t *testing.T) {
	var executions int32

	queue := New[int](2)
	for i := 0; i < 6; i++ {
		index := i
		_ = queue.Add(func(ctx context.Context) (int, error) {
			atomic.AddInt32(&executions, 1)
			time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
			return index, nil
		})
	}

	var wg sync.WaitGroup
	outcomes := make([][]int, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results, err := queue.Execute(context.Background())
			if err != nil {
				t.Errorf("Execute failed: %v", err)
				return
			}
			outcomes[slot] = results
		}(i)
	}
	wg.Wait()

	if count := atomic.LoadInt32(&executions); count != 6 {
		t.Fatalf("Expected each task to run exactly once, got %d executions", count)
	}
	for slot, results := range outcomes {
		if fmt.Sprint(results) != fmt.Sprint(outcomes[0]) {
			t.Errorf("Call %d returned different results: %v vs %v", slot, results, outcomes[0])
		}
	}
}

func TestExecute_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := New[int](1)
	for i := 0; i < 10; i++ {
		_ = queue.Add(func(taskCtx context.Context) (int, error) {
			cancel()
			time.Sleep(5 * time.Millisecond)
			return 0, nil
		})
	}

	_, err := queue.Execute(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got: %v", err)
	}
}
