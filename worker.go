package poolz

import (
	"context"
	"strconv"

	"github.com/zoobzio/tracez"
)

// Span names for worker execution.
const (
	WorkerRunSpan = tracez.Key("poolz.worker.run")
)

// Span tags for worker execution.
const (
	WorkerTagPool   = tracez.Tag("poolz.worker.pool")
	WorkerTagIndex  = tracez.Tag("poolz.worker.index")
	WorkerTagTasks  = tracez.Tag("poolz.worker.tasks")
	WorkerTagSteals = tracez.Tag("poolz.worker.steals")
)

// Worker is one execution context of a Pool. Workers at index 1 and up
// each run a drain+steal loop on a dedicated goroutine; the worker at
// index 0 is the host, owned by the goroutine that constructed the pool
// and driven through Wait.
//
// Task bodies receive the worker executing them, which is how spawned
// work lands on the spawning worker's own queue:
//
//	task := poolz.Task{Arg: job, Do: func(w *poolz.Worker, arg any) int {
//	    for _, sub := range split(arg) {
//	        w.Submit(poolz.Task{Do: process, Arg: sub})
//	    }
//	    return 0
//	}}
type Worker struct {
	pool *Pool
	ring *ring
	idx  int

	// Lifetime stats, written only by the goroutine driving this worker.
	tasks  uint64
	steals uint64
}

// Index returns this worker's position in the pool, 0 being the host.
func (w *Worker) Index() int {
	return w.idx
}

// Pool returns the pool this worker belongs to. Task bodies use it to
// read pool-wide accounting, the usual way a self-expanding workload
// decides when to stop spawning.
func (w *Worker) Pool() *Pool {
	return w.pool
}

// Len reports how many tasks are queued on this worker's ring. The value
// is a racy snapshot; by the time the caller looks at it, owner pops and
// peer steals may have moved on.
func (w *Worker) Len() int {
	return int(w.ring.size())
}

// Submit pushes a task onto this worker's own ring. It is the path a
// running task body uses to spawn further work. Fatal if the ring is full.
func (w *Worker) Submit(task Task) {
	w.pool.push(w, task)
}

// SubmitBatch pushes several tasks while holding the queue lock once and
// waking sleepers once at the end.
func (w *Worker) SubmitBatch(tasks ...Task) {
	w.pool.pushBatch(w, tasks)
}

// run is the loop for workers with their own goroutine. It drains the
// local ring, steals when unfinished work sits on a peer, and parks when
// neither applies. The loop re-checks the pool's running flag at the top
// of every pass; Close flips it and wakes everyone.
func (w *Worker) run() {
	p := w.pool

	ctx, span := p.tracer.StartSpan(context.Background(), WorkerRunSpan)
	span.SetTag(WorkerTagPool, string(p.name))
	span.SetTag(WorkerTagIndex, strconv.Itoa(w.idx))
	p.workerStarted(ctx, w)

	for p.running.Load() {
		w.drain(ctx)

		// Steal only once the local ring is dry and unfinished work
		// remains somewhere. A successful steal loops back to the
		// drain: the stolen body may have spawned local work, and
		// local work has priority.
		if p.completed.Load() < p.submitted.Load() && w.ring.size() == 0 {
			if w.steal(ctx) {
				continue
			}
		}

		w.park()
	}

	span.SetTag(WorkerTagTasks, strconv.FormatUint(w.tasks, 10))
	span.SetTag(WorkerTagSteals, strconv.FormatUint(w.steals, 10))
	span.Finish()
	p.workerStopped(ctx, w)
}

// drain runs tasks from the worker's own ring until it is empty. The
// queue lock is held only around each pop, never while a body runs, so
// submitters and thieves stay unblocked.
func (w *Worker) drain(ctx context.Context) {
	for w.ring.size() > 0 {
		w.ring.mu.Lock()
		t, ok := w.ring.pop()
		w.ring.mu.Unlock()
		if !ok {
			break
		}
		w.execute(ctx, t)
	}
}

// steal scans peers round-robin starting just past this worker, popping
// at most one task. Peer locks are tried, never waited on; a busy or
// raced-to-empty peer is skipped. Starting each worker's scan at a
// different offset keeps one busy peer from being mobbed while others
// starve. Reports whether a task was stolen and executed.
func (w *Worker) steal(ctx context.Context) bool {
	p := w.pool
	n := len(p.workers)
	idx := w.idx
	for i := 0; i < n; i++ {
		if p.completed.Load() == p.submitted.Load() {
			return false
		}

		idx = (idx + 1) % n
		peer := p.workers[idx]
		if peer.ring.size() == 0 {
			continue
		}
		if !peer.ring.mu.TryLock() {
			continue
		}
		t, ok := peer.ring.pop()
		peer.ring.mu.Unlock()
		if !ok {
			continue
		}

		w.steals++
		p.metrics.Counter(PoolStealsTotal).Inc()
		w.execute(ctx, t)
		return true
	}
	return false
}

// execute runs one task body and settles the completion accounting. The
// completed counter moves strictly after the body returns, so an observer
// that sees completed catch submitted also sees every side effect. The
// increment that closes the gap wakes all sleepers: the wait barrier and
// parked peers must both observe quiescence.
func (w *Worker) execute(ctx context.Context, t Task) {
	p := w.pool

	status := t.Do(w, t.Arg)
	if status != 0 {
		p.metrics.Counter(PoolNonzeroStatusTotal).Inc()
	}
	w.tasks++

	p.metrics.Counter(PoolTasksCompletedTotal).Inc()
	if p.completed.Add(1) == p.submitted.Load() {
		p.quiesced(ctx)
	}
}

// park sleeps until a push or shutdown wakes this worker. The sleep
// condition is re-checked under the park mutex in a loop, and all wakers
// broadcast under the same mutex, so a wake landing between the last
// drain and the wait cannot be lost. Spurious wakes only cost another
// pass through the condition.
func (w *Worker) park() {
	p := w.pool
	p.parkMu.Lock()
	parked := false
	for p.running.Load() && w.ring.size() == 0 && !p.stealable(w.idx) {
		if !parked {
			parked = true
			p.metrics.Counter(PoolParksTotal).Inc()
		}
		p.parkCond.Wait()
	}
	p.parkMu.Unlock()
}
