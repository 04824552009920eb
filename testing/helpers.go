// Package testing provides test utilities for poolz-based workloads.
//
// This package includes instrumented task builders and assertion helpers
// for exercising pools in tests: counting bodies, bodies that block until
// released, self-expanding workloads, and chaos bodies with randomized
// latency.
//
// Example usage:
//
//	func TestMyWorkload(t *testing.T) {
//		pool := poolz.New("test", 4)
//		defer pool.Close()
//
//		counter := pooltesting.NewCounter()
//		for i := 0; i < 100; i++ {
//			pool.Submit(i%pool.Len(), counter.Task())
//		}
//		pool.Wait()
//
//		pooltesting.AssertQuiescent(t, pool)
//		pooltesting.AssertExecuted(t, counter, 100)
//	}
package testing

import (
	mathrand "math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/poolz"
)

// Counter builds tasks that count their own executions. Safe for
// concurrent execution across workers.
type Counter struct {
	executions atomic.Int64
}

// NewCounter creates a Counter with zero executions.
func NewCounter() *Counter {
	return &Counter{}
}

// Task returns a task whose body increments the counter and succeeds.
func (c *Counter) Task() poolz.Task {
	return poolz.Task{Do: func(_ *poolz.Worker, _ any) int {
		c.executions.Add(1)
		return 0
	}}
}

// Executions returns how many of this counter's tasks have run.
func (c *Counter) Executions() int64 {
	return c.executions.Load()
}

// Blocker builds tasks that block until released, for holding a pool
// deliberately non-quiescent.
type Blocker struct {
	release chan struct{}
	held    atomic.Int64
}

// NewBlocker creates a Blocker whose tasks block until Release is called.
func NewBlocker() *Blocker {
	return &Blocker{release: make(chan struct{})}
}

// Task returns a task whose body blocks until Release.
func (b *Blocker) Task() poolz.Task {
	return poolz.Task{Do: func(_ *poolz.Worker, _ any) int {
		b.held.Add(1)
		<-b.release
		b.held.Add(-1)
		return 0
	}}
}

// Held reports how many bodies are currently blocked.
func (b *Blocker) Held() int64 {
	return b.held.Load()
}

// Release unblocks every current and future task built by this Blocker.
// Release must be called exactly once.
func (b *Blocker) Release() {
	close(b.release)
}

// Expander builds a self-expanding workload: each body spawns fanout more
// tasks onto its own worker until the pool has seen limit submissions.
// This is the canonical shape for exercising steal paths and the wait
// barrier under growth.
type Expander struct {
	executions atomic.Int64
	limit      uint64
	fanout     int
}

// NewExpander creates an Expander that grows until the pool's submitted
// count reaches limit, spawning fanout children per body.
func NewExpander(limit uint64, fanout int) *Expander {
	if fanout < 1 {
		fanout = 1
	}
	return &Expander{limit: limit, fanout: fanout}
}

// Task returns one root of the expanding workload.
func (e *Expander) Task() poolz.Task {
	var body poolz.TaskFunc
	body = func(w *poolz.Worker, _ any) int {
		e.executions.Add(1)
		if e.limit > 0 {
			// Stop spawning once the pool has accounted enough.
			if w.Pool().Submitted() < e.limit {
				children := make([]poolz.Task, e.fanout)
				for i := range children {
					children[i] = poolz.Task{Do: body}
				}
				w.SubmitBatch(children...)
			}
		}
		return 0
	}
	return poolz.Task{Do: body}
}

// Executions returns how many expander bodies have run.
func (e *Expander) Executions() int64 {
	return e.executions.Load()
}

// Chaos builds tasks with randomized latency up to maxDelay, for shaking
// out interleavings that uniform bodies never produce.
func Chaos(maxDelay time.Duration) poolz.Task {
	return poolz.Task{Do: func(_ *poolz.Worker, _ any) int {
		if maxDelay > 0 {
			time.Sleep(time.Duration(mathrand.Int63n(int64(maxDelay)))) //nolint:gosec // test jitter, not crypto
		}
		return 0
	}}
}

// AssertQuiescent fails the test unless the pool's submitted and
// completed counters agree.
func AssertQuiescent(t *testing.T, pool *poolz.Pool) {
	t.Helper()
	if s, c := pool.Submitted(), pool.Completed(); s != c {
		t.Errorf("pool %q not quiescent: submitted=%d completed=%d", pool.Name(), s, c)
	}
}

// AssertExecuted fails the test unless the counter has seen exactly want
// executions.
func AssertExecuted(t *testing.T, c *Counter, want int64) {
	t.Helper()
	if got := c.Executions(); got != want {
		t.Errorf("expected %d executions, got %d", want, got)
	}
}
