package poolz

import "github.com/zoobzio/capitan"

// Signal constants for pool lifecycle events.
// Signals follow the pattern: <component>.<event>.
const (
	// Pool signals.
	SignalPoolStarted   capitan.Signal = "pool.started"
	SignalPoolStopped   capitan.Signal = "pool.stopped"
	SignalPoolQuiescent capitan.Signal = "pool.quiescent"
	SignalPoolReset     capitan.Signal = "pool.reset"

	// Ring signals.
	SignalRingOverflow capitan.Signal = "ring.overflow"
)

// Common field keys using capitan primitive types.
// All keys use primitive types to avoid custom struct serialization.
var (
	FieldPool      = capitan.NewStringKey("pool")       // Pool instance name
	FieldWorker    = capitan.NewIntKey("worker")        // Worker index
	FieldWorkers   = capitan.NewIntKey("workers")       // Total worker count, host included
	FieldCapacity  = capitan.NewIntKey("capacity")      // Per-worker ring capacity
	FieldSubmitted = capitan.NewIntKey("submitted")     // Tasks submitted so far
	FieldCompleted = capitan.NewIntKey("completed")     // Tasks completed so far
	FieldTimestamp = capitan.NewFloat64Key("timestamp") // Unix timestamp
)
