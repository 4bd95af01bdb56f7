package actuator

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mjpetersen/pipool-controller/internal/model"
	"github.com/mjpetersen/pipool-controller/internal/timer"
)

// Pump is the {OFF,ON} x {OFF,RUN_FOR_DURATION} state machine. Every
// public mutator acquires mu; private Locked-suffixed methods assume it
// is already held, so no call path needs mu to be reentrant (the teacher
// repo's run_for_minutes-then-stop and off-from-set-mode-off paths are
// the origin of the original reentrancy wrinkle; factoring the locked
// inner routine from the public wrapper removes the need for it).
type Pump struct {
	mu   sync.Mutex
	port int
	relay Relay
	timer *timer.Timer
	events  EventSink
	runtime RuntimeSink

	state         model.OnOff
	mode          model.PumpMode
	runForMinutes int
}

func NewPump(port int, relay Relay, events EventSink, runtime RuntimeSink) *Pump {
	if events == nil {
		events = noopSink{}
	}
	if runtime == nil {
		runtime = noopSink{}
	}
	return &Pump{
		port:    port,
		relay:   relay,
		timer:   timer.New(),
		events:  events,
		runtime: runtime,
		state:   model.StateOff,
		mode:    model.PumpModeOff,
	}
}

// WithStateLock runs fn while holding the pump's state-gate and passing
// the current on/off state. This is the sole seam by which the Heater
// composes its dual-gated activation (spec §4.4); no other caller may
// take the pump's gate.
func (p *Pump) WithStateLock(fn func(isOn bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p.state == model.StateOn)
}

func (p *Pump) IsOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == model.StateOn
}

// Elapsed reports the current on-cycle's running time, or 0 if off.
func (p *Pump) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer.Elapsed()
}

func (p *Pump) On() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLocked()
}

func (p *Pump) onLocked() {
	if p.state == model.StateOn {
		return
	}
	from := p.state
	p.state = model.StateOn
	if err := p.relay.PortOn(p.port); err != nil {
		log.Error().Err(err).Msg("pump: relay activation failed")
	}
	p.events.Event(model.Event{Name: "pump_state", From: string(from), To: string(model.StateOn), Timestamp: time.Now()})
	if p.mode != model.PumpModeRunForDuration {
		p.timer.Start()
	}
	log.Info().Str("actuator", "pump").Msg("turned ON")
}

func (p *Pump) Off() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.offLocked()
}

func (p *Pump) offLocked() {
	if p.state == model.StateOff {
		p.mode = model.PumpModeOff
		return
	}
	from := p.state
	p.state = model.StateOff
	p.mode = model.PumpModeOff
	if err := p.relay.PortOff(p.port); err != nil {
		log.Error().Err(err).Msg("pump: relay deactivation failed")
	}
	p.events.Event(model.Event{Name: "pump_state", From: string(from), To: string(model.StateOff), Timestamp: time.Now()})

	startWall, elapsed := p.timer.Stop()
	if elapsed > 0 {
		p.runtime.Runtime(model.Runtime{Topic: "pump", StartWall: startWall, Elapsed: elapsed})
	}
	log.Info().Str("actuator", "pump").Msg("turned OFF")
}

func (p *Pump) HardStop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events.Event(model.Event{Name: "pump_hard_stop", Timestamp: time.Now()})
	p.offLocked()
}

func (p *Pump) SetRunForMinutesAndStop(minutes int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.timer.Stop()
	p.timer.Start()
	p.mode = model.PumpModeRunForDuration
	p.runForMinutes = minutes
	p.onLocked()
}

func (p *Pump) SetModeOff() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode = model.PumpModeOff
	p.offLocked()
}

// RunOneTick applies the per-tick safety cascade: a RUN_FOR_DURATION
// session past its budget is stopped; a stale OFF+non-OFF-mode pairing
// is normalized.
func (p *Pump) RunOneTick() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == model.StateOff && p.mode != model.PumpModeOff {
		p.mode = model.PumpModeOff
	}
	if p.mode == model.PumpModeRunForDuration && p.timer.Elapsed() > time.Duration(p.runForMinutes)*time.Minute {
		p.offLocked()
	}
}
