package actuator

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mjpetersen/pipool-controller/internal/model"
)

// Light is the pool light's on/off relay plus a non-blocking cycle
// worker used to power-cycle the fixture for color selection. At most
// one cycle runs at a time; the cycle-gate serializes bodies while still
// letting cycle() itself return immediately, per spec.
type Light struct {
	mu    sync.Mutex
	port  int
	relay Relay
	events EventSink

	state      model.OnOff
	lastOnWall time.Time
	lastOffWall time.Time
	everOff    bool

	cycleGate sync.Mutex
	cycleDone chan struct{}
}

func NewLight(port int, relay Relay, events EventSink) *Light {
	if events == nil {
		events = noopSink{}
	}
	return &Light{port: port, relay: relay, events: events, state: model.StateOff}
}

func (l *Light) IsOn() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state == model.StateOn
}

func (l *Light) On() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onLocked()
}

func (l *Light) onLocked() {
	from := l.state
	l.state = model.StateOn
	l.lastOnWall = time.Now()
	if err := l.relay.PortOn(l.port); err != nil {
		log.Error().Err(err).Msg("light: relay activation failed")
	}
	if from != model.StateOn {
		l.events.Event(model.Event{Name: "light_state", From: string(from), To: string(model.StateOn), Timestamp: time.Now()})
	}
}

func (l *Light) Off() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.offLocked()
}

func (l *Light) offLocked() {
	from := l.state
	l.state = model.StateOff
	l.everOff = true
	l.lastOffWall = time.Now()
	if err := l.relay.PortOff(l.port); err != nil {
		log.Error().Err(err).Msg("light: relay deactivation failed")
	}
	if from != model.StateOff {
		l.events.Event(model.Event{Name: "light_state", From: string(from), To: string(model.StateOff), Timestamp: time.Now()})
	}
}

// SecondsInOffState returns the wall duration since the light last went
// off, 0 if currently ON, or (0, false) if it has never been off.
func (l *Light) SecondsInOffState() (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == model.StateOn {
		return 0, true
	}
	if !l.everOff {
		return 0, false
	}
	return time.Since(l.lastOffWall).Seconds(), true
}

// Cycle spawns a single background worker performing count iterations
// of off/sleep(delay)/on; it never blocks the caller. A call made from
// the supervisor tick should be logged by the caller as a warning — this
// method itself only guarantees non-blocking return.
func (l *Light) Cycle(count int, delay time.Duration) {
	done := make(chan struct{})
	l.mu.Lock()
	l.cycleDone = done
	l.mu.Unlock()

	go func() {
		defer close(done)
		l.cycleGate.Lock()
		defer l.cycleGate.Unlock()

		for i := 0; i < count; i++ {
			l.Off()
			time.Sleep(delay)
			l.On()
		}
	}()
}

// WaitForCycle blocks until the most recently spawned cycle finishes or
// timeout elapses, supporting deterministic tests.
func (l *Light) WaitForCycle(timeout time.Duration) bool {
	l.mu.Lock()
	done := l.cycleDone
	l.mu.Unlock()
	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
