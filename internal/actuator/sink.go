// Package actuator implements the interlocked Pump, Heater, Light, and
// ColorDriver state machines — the repository's safety-critical core.
package actuator

import "github.com/mjpetersen/pipool-controller/internal/model"

// EventSink persists opaque events and state transitions. Persistence is
// best-effort: implementations must never block or panic into an
// actuator call path. internal/store implements this against sqlite; nil
// is a valid EventSink for tests.
type EventSink interface {
	Event(e model.Event)
}

// RuntimeSink persists flushed actuator runtime durations.
type RuntimeSink interface {
	Runtime(r model.Runtime)
}

type noopSink struct{}

func (noopSink) Event(model.Event)     {}
func (noopSink) Runtime(model.Runtime) {}
