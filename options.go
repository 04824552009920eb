package poolz

import "github.com/zoobzio/clockz"

// Option configures a Pool at construction, before its workers start.
// Options are the construction-time counterpart of the fluent setters
// found elsewhere in the ecosystem: once New returns, the workers are
// already draining, so structural knobs cannot change.
type Option func(*Pool)

// WithRingCapacity sets the per-worker queue capacity. The capacity is a
// hard cap on in-flight tasks per worker: pushing onto a full ring is a
// fatal overflow, never backpressure. Non-positive values are ignored.
func WithRingCapacity(capacity int) Option {
	return func(p *Pool) {
		if capacity > 0 {
			p.ringCapacity = capacity
		}
	}
}

// WithClock sets the clock used for event timestamps.
// This option is primarily intended for testing with FakeClock.
func WithClock(clock clockz.Clock) Option {
	return func(p *Pool) {
		if clock != nil {
			p.clock = clock
		}
	}
}
