package poolz

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Metric keys for Pool observability.
const (
	PoolTasksSubmittedTotal = metricz.Key("poolz.tasks.submitted.total")
	PoolTasksCompletedTotal = metricz.Key("poolz.tasks.completed.total")
	PoolNonzeroStatusTotal  = metricz.Key("poolz.tasks.nonzero_status.total")
	PoolStealsTotal         = metricz.Key("poolz.steals.total")
	PoolParksTotal          = metricz.Key("poolz.parks.total")
	PoolWorkersActive       = metricz.Key("poolz.workers.active")
)

// Hook event keys.
const (
	EventWorkerStart = hookz.Key("poolz.worker.start")
	EventWorkerStop  = hookz.Key("poolz.worker.stop")
)

// WorkerEvent is emitted via hookz at worker goroutine entry and exit.
// It is the attachment point for per-worker profiling: a begin/end pair
// carrying the worker index, plus lifetime totals on the stop event.
type WorkerEvent struct {
	Pool      Name      // Pool instance name
	Worker    int       // Worker index
	Tasks     uint64    // Tasks executed over the worker's lifetime (stop only)
	Steals    uint64    // Tasks stolen from peers (stop only)
	Timestamp time.Time // When the event occurred
}

// Pool executes short-lived tasks across a fixed set of workers. Each
// worker owns a bounded queue; idle workers steal from peers, so load
// spreads even when all submissions target one worker. Any worker,
// including a running task body, may submit more work; the workload is
// free to grow itself.
//
// The pool is a primitive: submission is infallible apart from two fatal
// programmer errors (queue overflow and an out-of-range worker index,
// both panic), task statuses are recorded but never interpreted, and a
// body that crashes the process crashes the pool with it. Richer
// semantics (retries, priorities, cancellation) belong in layers above.
//
// The constructing goroutine owns worker 0 (the host): it has a queue but
// no goroutine of its own, and its drain runs inside Wait. The intended
// shape is seed, wait, and optionally reset for another phase:
//
//	pool := poolz.New("render", 8)
//	defer pool.Close()
//
//	for i := 0; i < jobs; i++ {
//	    pool.Submit(i%pool.Len(), poolz.Task{Do: render, Arg: frames[i]})
//	}
//	pool.Wait()
//
// Execution order is FIFO per queue only as long as only the owner pops;
// a thief consumes from the same end concurrently, so no global order
// exists and callers must not depend on one.
type Pool struct {
	name         Name
	workers      []*Worker
	running      atomic.Bool
	submitted    atomic.Uint64
	completed    atomic.Uint64
	active       atomic.Int64
	parkMu       sync.Mutex
	parkCond     *sync.Cond
	wg           sync.WaitGroup
	ringCapacity int
	clock        clockz.Clock

	// Observability
	metrics *metricz.Registry
	tracer  *tracez.Tracer
	hooks   *hookz.Hooks[WorkerEvent]

	closeOnce sync.Once
}

// New creates a pool with childWorkers dedicated worker goroutines plus
// the host worker at index 0, and starts the goroutines immediately.
// The calling goroutine becomes the host: it seeds work through Submit
// and joins the draining through Wait.
func New(name Name, childWorkers int, opts ...Option) *Pool {
	if childWorkers < 0 {
		childWorkers = 0
	}

	// Initialize observability components
	registry := metricz.New()
	tracer := tracez.New()

	// Register metrics
	registry.Counter(PoolTasksSubmittedTotal)
	registry.Counter(PoolTasksCompletedTotal)
	registry.Counter(PoolNonzeroStatusTotal)
	registry.Counter(PoolStealsTotal)
	registry.Counter(PoolParksTotal)
	registry.Gauge(PoolWorkersActive)

	p := &Pool{
		name:         name,
		ringCapacity: DefaultRingCapacity,
		clock:        clockz.RealClock,
		metrics:      registry,
		tracer:       tracer,
		hooks:        hookz.New[WorkerEvent](),
	}
	p.parkCond = sync.NewCond(&p.parkMu)

	for _, opt := range opts {
		opt(p)
	}

	p.workers = make([]*Worker, childWorkers+1)
	for i := range p.workers {
		p.workers[i] = &Worker{pool: p, ring: newRing(p.ringCapacity), idx: i}
	}
	p.running.Store(true)

	for _, w := range p.workers[1:] {
		p.wg.Add(1)
		go func(w *Worker) {
			defer p.wg.Done()
			w.run()
		}(w)
	}

	capitan.Info(context.Background(), SignalPoolStarted,
		FieldPool.Field(string(p.name)),
		FieldWorkers.Field(len(p.workers)),
		FieldCapacity.Field(p.ringCapacity),
		FieldTimestamp.Field(float64(p.clock.Now().Unix())),
	)

	return p
}

// Name returns the name of this pool.
func (p *Pool) Name() Name {
	return p.name
}

// Len returns the worker count, host included.
func (p *Pool) Len() int {
	return len(p.workers)
}

// Host returns the host worker (index 0), owned by the goroutine that
// constructed the pool.
func (p *Pool) Host() *Worker {
	return p.workers[0]
}

// Submitted returns the number of tasks submitted since construction or
// the last Reset.
func (p *Pool) Submitted() uint64 {
	return p.submitted.Load()
}

// Completed returns the number of tasks completed since construction or
// the last Reset.
func (p *Pool) Completed() uint64 {
	return p.completed.Load()
}

// Submit pushes a task onto the queue of the worker at index. Any index
// is valid, including the submitter's own. Fatal if the target queue is
// full or the index is out of range.
func (p *Pool) Submit(index int, task Task) {
	p.push(p.workerAt(index), task)
}

// SubmitBatch pushes several tasks onto one worker's queue while holding
// its lock once, and wakes sleepers once at the end instead of per push.
func (p *Pool) SubmitBatch(index int, tasks ...Task) {
	p.pushBatch(p.workerAt(index), tasks)
}

// Wait blocks until every submitted task has completed. It must be called
// on the goroutine that constructed the pool: the host worker's queue is
// drained here, cooperatively, between parks. Tasks submitted while Wait
// runs (including by running bodies) extend the wait.
//
// After Wait returns the pool is quiescent (no body is executing and no
// queue holds a task), which is the only state where Reset is legal.
func (p *Pool) Wait() {
	host := p.workers[0]
	for p.completed.Load() < p.submitted.Load() {
		host.drain(context.Background())

		if p.completed.Load() == p.submitted.Load() {
			break
		}

		// Same no-lost-wakeup discipline as a parking worker: the
		// counter check repeats under the park mutex, and every
		// waker broadcasts under it.
		p.parkMu.Lock()
		for p.completed.Load() < p.submitted.Load() && host.ring.size() == 0 {
			p.parkCond.Wait()
		}
		p.parkMu.Unlock()
	}
}

// Reset zeroes the submitted and completed counters so a new phase of
// work accounts from zero. Legal only at quiescence: after Wait, with no
// concurrent submissions. Resetting a busy pool corrupts the accounting
// that Wait and the steal scan depend on.
func (p *Pool) Reset() {
	if p.completed.Load() != p.submitted.Load() {
		panic(fmt.Sprintf("poolz: %s: reset while busy (%d of %d tasks complete)",
			p.name, p.completed.Load(), p.submitted.Load()))
	}

	p.submitted.Store(0)
	p.completed.Store(0)

	capitan.Info(context.Background(), SignalPoolReset,
		FieldPool.Field(string(p.name)),
		FieldTimestamp.Field(float64(p.clock.Now().Unix())),
	)
}

// Close stops the workers, joins their goroutines, and releases
// observability resources. Close does not drain: each worker stops at its
// next pass through its loop, so tasks still queued when it is called may
// never run, and callers who care call Wait first. Close is
// idempotent - multiple calls return the same result.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		p.running.Store(false)
		p.wake()
		p.wg.Wait()

		capitan.Info(context.Background(), SignalPoolStopped,
			FieldPool.Field(string(p.name)),
			FieldSubmitted.Field(int(p.submitted.Load())),
			FieldCompleted.Field(int(p.completed.Load())),
			FieldTimestamp.Field(float64(p.clock.Now().Unix())),
		)

		p.tracer.Close()
		p.hooks.Close()
	})
	return nil
}

// Metrics returns the metrics registry for this pool.
func (p *Pool) Metrics() *metricz.Registry {
	return p.metrics
}

// Tracer returns the tracer for this pool.
func (p *Pool) Tracer() *tracez.Tracer {
	return p.tracer
}

// OnWorkerStart registers a handler called when a worker goroutine
// begins, before it drains its first task. Profiling collectors hook
// their per-thread begin here.
func (p *Pool) OnWorkerStart(handler func(context.Context, WorkerEvent) error) error {
	_, err := p.hooks.Hook(EventWorkerStart, handler)
	return err
}

// OnWorkerStop registers a handler called as a worker goroutine exits,
// carrying the worker's lifetime task and steal totals.
func (p *Pool) OnWorkerStop(handler func(context.Context, WorkerEvent) error) error {
	_, err := p.hooks.Hook(EventWorkerStop, handler)
	return err
}

func (p *Pool) workerAt(index int) *Worker {
	if index < 0 || index >= len(p.workers) {
		panic(fmt.Sprintf("poolz: %s: worker index %d out of range [0,%d)",
			p.name, index, len(p.workers)))
	}
	return p.workers[index]
}

// push appends one task to w's queue. The submitted counter moves inside
// the queue lock, after the slot write: a consumer that can pop the task
// is guaranteed to read a submitted count that includes it, which keeps
// completed from ever passing submitted.
func (p *Pool) push(w *Worker, task Task) {
	w.ring.mu.Lock()
	if !w.ring.push(task) {
		w.ring.mu.Unlock()
		p.overflow(w)
	}
	p.submitted.Add(1)
	p.metrics.Counter(PoolTasksSubmittedTotal).Inc()
	w.ring.mu.Unlock()

	p.wake()
}

// pushBatch is push amortized over a batch: one lock hold, one wake.
func (p *Pool) pushBatch(w *Worker, tasks []Task) {
	if len(tasks) == 0 {
		return
	}

	w.ring.mu.Lock()
	for _, t := range tasks {
		if !w.ring.push(t) {
			w.ring.mu.Unlock()
			p.overflow(w)
		}
		p.submitted.Add(1)
		p.metrics.Counter(PoolTasksSubmittedTotal).Inc()
	}
	w.ring.mu.Unlock()

	p.wake()
}

// overflow reports a full queue and terminates. Ring capacity is a hard
// cap on in-flight tasks per worker; exceeding it is a bug in the
// workload's submission pattern, not a recoverable condition.
func (p *Pool) overflow(w *Worker) {
	capitan.Error(context.Background(), SignalRingOverflow,
		FieldPool.Field(string(p.name)),
		FieldWorker.Field(w.idx),
		FieldCapacity.Field(len(w.ring.slots)),
		FieldTimestamp.Field(float64(p.clock.Now().Unix())),
	)
	panic(fmt.Sprintf("poolz: %s: worker %d queue full (capacity %d)",
		p.name, w.idx, len(w.ring.slots)))
}

// wake broadcasts the park condition under the park mutex. Holding the
// mutex is what pairs this broadcast with a sleeper's check-then-wait:
// the broadcast lands either before the sleeper's condition check (which
// then sees the new state) or after its wait is registered.
func (p *Pool) wake() {
	p.parkMu.Lock()
	p.parkCond.Broadcast()
	p.parkMu.Unlock()
}

// quiesced fires when a completion closes the submitted/completed gap.
// Sleepers are woken so the wait barrier and parked workers observe the
// counters agreeing. Quiescence here can be transient: a later submission
// reopens the gap, and the woken parties simply re-check and go back to
// what they were doing.
func (p *Pool) quiesced(ctx context.Context) {
	capitan.Info(ctx, SignalPoolQuiescent,
		FieldPool.Field(string(p.name)),
		FieldCompleted.Field(int(p.completed.Load())),
		FieldTimestamp.Field(float64(p.clock.Now().Unix())),
	)
	p.wake()
}

// stealable reports whether any worker other than idx has queued work.
// Used as the park condition's last gate; racy by design, the same way
// the steal scan's size probes are.
func (p *Pool) stealable(idx int) bool {
	for i, w := range p.workers {
		if i != idx && w.ring.size() > 0 {
			return true
		}
	}
	return false
}

func (p *Pool) workerStarted(ctx context.Context, w *Worker) {
	p.metrics.Gauge(PoolWorkersActive).Set(float64(p.active.Add(1)))

	if p.hooks.ListenerCount(EventWorkerStart) > 0 {
		_ = p.hooks.Emit(ctx, EventWorkerStart, WorkerEvent{ //nolint:errcheck
			Pool:      p.name,
			Worker:    w.idx,
			Timestamp: p.clock.Now(),
		})
	}
}

func (p *Pool) workerStopped(ctx context.Context, w *Worker) {
	p.metrics.Gauge(PoolWorkersActive).Set(float64(p.active.Add(-1)))

	if p.hooks.ListenerCount(EventWorkerStop) > 0 {
		_ = p.hooks.Emit(ctx, EventWorkerStop, WorkerEvent{ //nolint:errcheck
			Pool:      p.name,
			Worker:    w.idx,
			Tasks:     w.tasks,
			Steals:    w.steals,
			Timestamp: p.clock.Now(),
		})
	}
}
