package poolz

// Name is a human-readable identifier for a pool instance.
// Names appear in signals, span tags, and fatal diagnostics, making
// concurrent pools distinguishable in observability output.
type Name = string

// TaskFunc is the body of a task. It receives the worker executing it and
// the opaque argument the task was submitted with, and returns an integer
// status. The pool counts nonzero statuses in its metrics but never
// interprets them; a body that must not fail silently should report
// through its own channels.
//
// The worker handle stands in for a thread-local current-worker pointer:
// it is how a running body reaches its own queue to spawn further work
// (w.Submit, w.SubmitBatch). The handle is only meaningful on the
// goroutine executing the body; retaining it past the body's return is a
// misuse.
type TaskFunc func(w *Worker, arg any) int

// Task pairs a body with its argument. Tasks are plain values copied into
// worker queues. The pool takes no ownership of Arg; its lifetime is the
// submitter's concern.
type Task struct {
	Do  TaskFunc
	Arg any
}
