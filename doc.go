// Package poolz provides a fixed-size work-stealing task pool for dynamic
// workloads: tasks that spawn more tasks while the pool runs.
//
// # Overview
//
// poolz schedules short-lived, independent units of work across a set of
// long-lived workers. Each worker owns a private bounded queue; when a
// worker's queue runs dry it steals from its peers, so the load spreads
// even when every submission targets a single worker. Any worker,
// including a running task body, may submit new work, which makes the
// pool suitable for recursive, self-expanding workloads: tree walks,
// subdivision renders, fan-out crawls.
//
// # Core Concepts
//
//   - Task: an opaque (body, argument) pair, scheduled as an indivisible
//     unit. The body receives the worker executing it and returns an
//     integer status the pool records but never interprets.
//   - Worker: one execution context with its own bounded queue. Workers
//     at index 1 and up run on dedicated goroutines; worker 0 is the
//     host, owned by the goroutine that constructed the pool.
//   - Pool: the worker set plus two atomic counters, tasks submitted and
//     tasks completed. Their equality is quiescence, the condition Wait
//     blocks on.
//
// # Usage Example
//
//	pool := poolz.New("indexer", 8)
//	defer pool.Close()
//
//	// Seed roots; bodies spawn their own children.
//	for i, root := range roots {
//	    pool.Submit(i%pool.Len(), poolz.Task{
//	        Arg: root,
//	        Do: func(w *poolz.Worker, arg any) int {
//	            for _, child := range expand(arg) {
//	                w.Submit(poolz.Task{Do: index, Arg: child})
//	            }
//	            return 0
//	        },
//	    })
//	}
//
//	pool.Wait() // returns once every task, spawned ones included, ran
//
// # Guarantees and Non-Guarantees
//
// Every submitted task runs exactly once, and after Wait returns all task
// side effects are visible. Tasks on one queue run in FIFO order only
// while the owning worker is the sole consumer; a thief pops from the
// same end concurrently, so there is no global execution order. Queues
// are a hard cap: overflowing one is a fatal programmer error, not
// backpressure. Task bodies are not isolated: a body that crashes the
// process takes the pool with it.
//
// # Observability
//
// Each pool carries a metricz registry (submissions, completions, steals,
// parks), a tracez tracer emitting one span per worker lifetime, and
// hookz worker start/stop events for per-worker profiling collectors.
// Lifecycle transitions and fatal diagnostics are emitted as capitan
// signals.
package poolz
