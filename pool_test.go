package poolz

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPool(t *testing.T) {
	t.Run("Empty Pool Waits Immediately", func(t *testing.T) {
		pool := New("empty", 4)
		defer pool.Close() //nolint:errcheck

		done := make(chan struct{})
		go func() {
			// Wait belongs to the constructing goroutine, but with
			// zero submissions it only reads counters, so driving
			// it from here keeps the test free to time out.
			pool.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Wait did not return promptly on an empty pool")
		}

		if pool.Submitted() != 0 || pool.Completed() != 0 {
			t.Errorf("expected zero counters, got submitted=%d completed=%d",
				pool.Submitted(), pool.Completed())
		}
	})

	t.Run("Leaf Tasks Run Exactly Once", func(t *testing.T) {
		pool := New("leaves", 4)
		defer pool.Close() //nolint:errcheck

		var counter atomic.Int64
		for i := 0; i < 10; i++ {
			pool.Submit(i%pool.Len(), Task{Do: func(_ *Worker, _ any) int {
				counter.Add(1)
				return 0
			}})
		}
		pool.Wait()

		if got := counter.Load(); got != 10 {
			t.Errorf("expected 10 executions, got %d", got)
		}
		if pool.Submitted() != 10 || pool.Completed() != 10 {
			t.Errorf("expected counters 10/10, got %d/%d",
				pool.Submitted(), pool.Completed())
		}
	})

	t.Run("Expanding Workload Terminates", func(t *testing.T) {
		pool := New("expand", 4)
		defer pool.Close() //nolint:errcheck

		var executed atomic.Int64
		var spawn TaskFunc
		spawn = func(w *Worker, _ any) int {
			executed.Add(1)
			if w.pool.Submitted() < 10000 {
				for i := 0; i < 5; i++ {
					w.Submit(Task{Do: spawn})
				}
			}
			return 0
		}

		for i := 0; i < 10; i++ {
			pool.Submit(0, Task{Do: spawn})
		}
		pool.Wait()

		if pool.Submitted() != pool.Completed() {
			t.Errorf("expected quiescence, got submitted=%d completed=%d",
				pool.Submitted(), pool.Completed())
		}
		if pool.Completed() < 10000 {
			t.Errorf("expected at least 10000 completions, got %d", pool.Completed())
		}
		if got := executed.Load(); uint64(got) != pool.Completed() {
			t.Errorf("execution count %d disagrees with completed counter %d",
				got, pool.Completed())
		}
	})

	t.Run("Reset Separates Phases", func(t *testing.T) {
		pool := New("phased", 4)
		defer pool.Close() //nolint:errcheck

		var counter atomic.Int64
		inc := func(_ *Worker, _ any) int {
			counter.Add(1)
			return 0
		}

		for i := 0; i < 10; i++ {
			pool.Submit(i%pool.Len(), Task{Do: inc})
		}
		pool.Wait()
		pool.Reset()

		if pool.Submitted() != 0 || pool.Completed() != 0 {
			t.Fatalf("expected counters zeroed, got %d/%d",
				pool.Submitted(), pool.Completed())
		}

		for i := 0; i < 10; i++ {
			pool.Submit(i%pool.Len(), Task{Do: inc})
		}
		pool.Wait()

		if pool.Completed() != 10 {
			t.Errorf("expected second phase to account 10 tasks, got %d", pool.Completed())
		}
		if got := counter.Load(); got != 20 {
			t.Errorf("expected 20 total executions, got %d", got)
		}
	})

	t.Run("Wait After Reset Returns Immediately", func(t *testing.T) {
		pool := New("reset-idle", 2)
		defer pool.Close() //nolint:errcheck

		pool.Reset()

		done := make(chan struct{})
		go func() {
			pool.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("Wait after Reset with no submissions did not return")
		}
	})

	t.Run("Reset While Busy Panics", func(t *testing.T) {
		pool := New("reset-busy", 2)
		defer pool.Close() //nolint:errcheck

		release := make(chan struct{})
		pool.Submit(1, Task{Do: func(_ *Worker, _ any) int {
			<-release
			return 0
		}})

		// Give the worker time to start the body so the counters
		// disagree for a well-defined reason.
		time.Sleep(20 * time.Millisecond)

		func() {
			defer func() {
				if r := recover(); r == nil {
					t.Error("expected Reset on a busy pool to panic")
				}
			}()
			pool.Reset()
		}()

		close(release)
		pool.Wait()
	})

	t.Run("Steals Spread Single-Target Load", func(t *testing.T) {
		pool := New("steals", 7) // 8 workers, host included
		defer pool.Close()       //nolint:errcheck

		perWorker := make([]atomic.Int64, pool.Len())
		for i := 0; i < 1000; i++ {
			pool.Submit(0, Task{Do: func(w *Worker, _ any) int {
				perWorker[w.Index()].Add(1)
				time.Sleep(200 * time.Microsecond)
				return 0
			}})
		}
		pool.Wait()

		var total int64
		for i := range perWorker {
			total += perWorker[i].Load()
		}
		if total != 1000 {
			t.Fatalf("expected 1000 executions, got %d", total)
		}

		idle := 0
		for i := 1; i < pool.Len(); i++ {
			if perWorker[i].Load() == 0 {
				idle++
			}
		}
		if idle > 0 {
			t.Errorf("%d of %d child workers never stole a task", idle, pool.Len()-1)
		}

		if got := pool.Metrics().Counter(PoolStealsTotal).Value(); got == 0 {
			t.Error("expected nonzero steal count in metrics")
		}
	})

	t.Run("Shutdown While Idle Joins Promptly", func(t *testing.T) {
		pool := New("shutdown", 6)

		var counter atomic.Int64
		for i := 0; i < 10; i++ {
			pool.Submit(i%pool.Len(), Task{Do: func(_ *Worker, _ any) int {
				counter.Add(1)
				return 0
			}})
		}
		pool.Wait()

		done := make(chan struct{})
		go func() {
			pool.Close() //nolint:errcheck
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Close did not join workers in bounded time")
		}

		if got := counter.Load(); got != 10 {
			t.Errorf("expected 10 executions before shutdown, got %d", got)
		}
	})

	t.Run("Close Is Idempotent", func(t *testing.T) {
		pool := New("close-twice", 2)
		if err := pool.Close(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := pool.Close(); err != nil {
			t.Fatalf("unexpected error on second close: %v", err)
		}
	})

	t.Run("Submission Concurrent With Parking Is Not Lost", func(t *testing.T) {
		pool := New("wakeup", 3)
		defer pool.Close() //nolint:errcheck

		// Alternate tiny bursts with gaps long enough for every
		// worker to park. Each burst must still complete: a lost
		// wakeup would leave Wait hanging.
		var counter atomic.Int64
		for round := 0; round < 50; round++ {
			pool.Submit(round%pool.Len(), Task{Do: func(_ *Worker, _ any) int {
				counter.Add(1)
				return 0
			}})
			pool.Wait()
			time.Sleep(time.Millisecond)
		}

		if got := counter.Load(); got != 50 {
			t.Errorf("expected 50 executions, got %d", got)
		}
	})

	t.Run("Overflow Panics With Diagnostic", func(t *testing.T) {
		pool := New("overflow", 0, WithRingCapacity(4))
		defer pool.Close() //nolint:errcheck

		noop := func(_ *Worker, _ any) int { return 0 }

		// With no child workers and no Wait in progress, nothing
		// drains: capacity pushes are legal, one more is fatal.
		for i := 0; i < 4; i++ {
			pool.Submit(0, Task{Do: noop})
		}

		defer func() {
			r := recover()
			if r == nil {
				t.Fatal("expected overflow panic")
			}
			msg, ok := r.(string)
			if !ok || !strings.Contains(msg, "queue full") {
				t.Errorf("expected diagnostic mentioning the full queue, got %v", r)
			}
		}()
		pool.Submit(0, Task{Do: noop})
	})

	t.Run("Invalid Worker Index Panics", func(t *testing.T) {
		pool := New("bad-index", 2)
		defer pool.Close() //nolint:errcheck

		defer func() {
			if r := recover(); r == nil {
				t.Error("expected out-of-range index to panic")
			}
		}()
		pool.Submit(99, Task{Do: func(_ *Worker, _ any) int { return 0 }})
	})

	t.Run("Batch Submission Accounts Every Task", func(t *testing.T) {
		pool := New("batch", 4)
		defer pool.Close() //nolint:errcheck

		var counter atomic.Int64
		tasks := make([]Task, 100)
		for i := range tasks {
			tasks[i] = Task{Do: func(_ *Worker, _ any) int {
				counter.Add(1)
				return 0
			}}
		}

		pool.SubmitBatch(1, tasks...)
		pool.Wait()

		if got := counter.Load(); got != 100 {
			t.Errorf("expected 100 executions, got %d", got)
		}
		if pool.Submitted() != 100 {
			t.Errorf("expected submitted counter 100, got %d", pool.Submitted())
		}
	})

	t.Run("Host Drains Its Own Queue In Wait", func(t *testing.T) {
		// A pool with no child workers has only the host; everything
		// submitted to worker 0 runs inside Wait, on this goroutine.
		pool := New("host-only", 0)
		defer pool.Close() //nolint:errcheck

		var order []int
		var mu sync.Mutex
		for i := 0; i < 20; i++ {
			arg := i
			pool.Submit(0, Task{Do: func(_ *Worker, a any) int {
				mu.Lock()
				order = append(order, a.(int))
				mu.Unlock()
				return 0
			}, Arg: arg})
		}
		pool.Wait()

		if len(order) != 20 {
			t.Fatalf("expected 20 executions, got %d", len(order))
		}
		// Single consumer, so per-queue FIFO holds exactly.
		for i, v := range order {
			if v != i {
				t.Fatalf("expected FIFO order under single consumer, got %v", order)
			}
		}
	})

	t.Run("Observability", func(t *testing.T) {
		t.Run("Counters Track Submissions And Completions", func(t *testing.T) {
			pool := New("metrics", 3)
			defer pool.Close() //nolint:errcheck

			for i := 0; i < 25; i++ {
				pool.Submit(i%pool.Len(), Task{Do: func(_ *Worker, _ any) int { return 0 }})
			}
			pool.Wait()

			if got := pool.Metrics().Counter(PoolTasksSubmittedTotal).Value(); got != 25 {
				t.Errorf("expected submitted metric 25, got %v", got)
			}
			if got := pool.Metrics().Counter(PoolTasksCompletedTotal).Value(); got != 25 {
				t.Errorf("expected completed metric 25, got %v", got)
			}
		})

		t.Run("Nonzero Statuses Are Counted", func(t *testing.T) {
			pool := New("statuses", 2)
			defer pool.Close() //nolint:errcheck

			for i := 0; i < 10; i++ {
				status := i % 2
				pool.Submit(i%pool.Len(), Task{Do: func(_ *Worker, _ any) int {
					return status
				}})
			}
			pool.Wait()

			if got := pool.Metrics().Counter(PoolNonzeroStatusTotal).Value(); got != 5 {
				t.Errorf("expected 5 nonzero statuses, got %v", got)
			}
		})

		t.Run("Metrics Survive Reset", func(t *testing.T) {
			// Reset zeroes the accounting counters only; metrics
			// stay cumulative across phases.
			pool := New("metrics-reset", 2)
			defer pool.Close() //nolint:errcheck

			for i := 0; i < 10; i++ {
				pool.Submit(i%pool.Len(), Task{Do: func(_ *Worker, _ any) int { return 0 }})
			}
			pool.Wait()
			pool.Reset()

			for i := 0; i < 10; i++ {
				pool.Submit(i%pool.Len(), Task{Do: func(_ *Worker, _ any) int { return 0 }})
			}
			pool.Wait()

			if got := pool.Metrics().Counter(PoolTasksSubmittedTotal).Value(); got != 20 {
				t.Errorf("expected cumulative submitted metric 20, got %v", got)
			}
			if pool.Submitted() != 10 {
				t.Errorf("expected accounting counter 10 after reset, got %d", pool.Submitted())
			}
		})

		t.Run("Worker Hooks Fire Per Worker", func(t *testing.T) {
			pool := New("hooks", 4)

			var starts, stops atomic.Int64
			var stopTasks atomic.Int64
			if err := pool.OnWorkerStart(func(_ context.Context, e WorkerEvent) error {
				starts.Add(1)
				return nil
			}); err != nil {
				t.Fatalf("unexpected error registering start hook: %v", err)
			}
			if err := pool.OnWorkerStop(func(_ context.Context, e WorkerEvent) error {
				stops.Add(1)
				stopTasks.Add(int64(e.Tasks))
				return nil
			}); err != nil {
				t.Fatalf("unexpected error registering stop hook: %v", err)
			}

			for i := 1; i < pool.Len(); i++ {
				pool.Submit(i, Task{Do: func(_ *Worker, _ any) int { return 0 }})
			}
			pool.Wait()
			pool.Close() //nolint:errcheck

			// Hooks are async; give them a moment to drain.
			time.Sleep(100 * time.Millisecond)

			// Start hooks may fire before registration for workers
			// that won the race with New; stops are registered well
			// before Close and must all arrive.
			if got := stops.Load(); got != 4 {
				t.Errorf("expected 4 stop events, got %d", got)
			}
			if starts.Load() > 4 {
				t.Errorf("expected at most 4 start events, got %d", starts.Load())
			}
		})
	})
}
