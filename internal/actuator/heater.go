package actuator

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mjpetersen/pipool-controller/internal/model"
	"github.com/mjpetersen/pipool-controller/internal/timer"
)

const (
	staleSensorAfter        = 60 * time.Second
	defaultMaxRuntimeSeconds = 14400
)

// Heater is the repository's safety core: {OFF,ON} x
// {OFF,HOLD_AT,REACH_AND_STOP} guarded by a single exclusive gate that
// doubles as the spec's "activation-gate". A single mutex, rather than
// the narrower gate/no-gate split the source describes for tick-only
// mutation, is the deliberate choice documented in DESIGN.md: the
// source's claim that a tick/hard-stop race is "harmless" because both
// paths are idempotent does not hold in a language with a real memory
// model, so every Heater method — tick included — takes the same lock.
type Heater struct {
	mu    sync.Mutex
	port  int
	relay Relay
	pump  *Pump // dual-gate interlock partner
	timer *timer.Timer

	events  EventSink
	runtime RuntimeSink

	maxWaterTemp      float64
	maxRuntimeSeconds int

	state  model.OnOff
	mode   model.HeaterMode
	target int

	inputTemp       float64
	hasInputTemp    bool
	outputTemp      float64
	lastInputUpdate time.Time
}

type HeaterConfig struct {
	Port              int
	Relay             Relay
	Pump              *Pump
	Events            EventSink
	Runtime           RuntimeSink
	MaxWaterTemp      float64
	MaxRuntimeSeconds int
}

func NewHeater(cfg HeaterConfig) *Heater {
	events := cfg.Events
	if events == nil {
		events = noopSink{}
	}
	runtime := cfg.Runtime
	if runtime == nil {
		runtime = noopSink{}
	}
	maxRuntime := cfg.MaxRuntimeSeconds
	if maxRuntime <= 0 {
		maxRuntime = defaultMaxRuntimeSeconds
	}
	return &Heater{
		port:              cfg.Port,
		relay:             cfg.Relay,
		pump:              cfg.Pump,
		timer:             timer.New(),
		events:            events,
		runtime:           runtime,
		maxWaterTemp:      cfg.MaxWaterTemp,
		maxRuntimeSeconds: maxRuntime,
		state:             model.StateOff,
		mode:              model.HeaterModeOff,
	}
}

func (h *Heater) IsOn() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == model.StateOn
}

// InputTempLessThan reports whether the last known input-to-heater
// reading is below target. A heater with no valid reading yet reports
// false, so callers gated on this never start a heater blind.
func (h *Heater) InputTempLessThan(target int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hasInputTemp && h.inputTemp < float64(target)
}

// Elapsed reports the current on-cycle's running time, or 0 if off.
func (h *Heater) Elapsed() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.timer.Elapsed()
}

// On implements the repository's critical section: acquire the
// heater's own gate (outer), then — if a Pump is wired — the pump's
// state-gate (inner), observe pump.state under both, and only energize
// while still holding both. Returns false if the pump was not running,
// leaving the heater off.
func (h *Heater) On() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.onLocked()
}

func (h *Heater) onLocked() bool {
	if h.state == model.StateOn {
		return true
	}

	if h.pump == nil {
		log.Warn().Msg("heater: no pump reference configured, proceeding without interlock")
		h.energizeLocked()
		return true
	}

	energized := false
	h.pump.WithStateLock(func(pumpIsOn bool) {
		if !pumpIsOn {
			return
		}
		h.energizeLocked()
		energized = true
	})
	if !energized {
		log.Warn().Msg("heater_blocked_no_pump")
		h.events.Event(model.Event{Name: "heater_blocked_no_pump", Timestamp: time.Now()})
	}
	return energized
}

func (h *Heater) energizeLocked() {
	from := h.state
	h.state = model.StateOn
	if err := h.relay.PortOn(h.port); err != nil {
		log.Error().Err(err).Msg("heater: relay activation failed")
	}
	h.events.Event(model.Event{Name: "heater_state", From: string(from), To: string(model.StateOn), Timestamp: time.Now()})
	h.timer.Start()
	log.Info().Str("actuator", "heater").Msg("turned ON")
}

func (h *Heater) Off() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.offLocked()
}

func (h *Heater) offLocked() {
	h.mode = model.HeaterModeOff
	if h.state == model.StateOff {
		return
	}
	from := h.state
	h.state = model.StateOff
	if err := h.relay.PortOff(h.port); err != nil {
		log.Error().Err(err).Msg("heater: relay deactivation failed")
	}
	h.events.Event(model.Event{Name: "heater_state", From: string(from), To: string(model.StateOff), Timestamp: time.Now()})

	startWall, elapsed := h.timer.Stop()
	if elapsed > 0 {
		h.runtime.Runtime(model.Runtime{Topic: "heater", StartWall: startWall, Elapsed: elapsed})
	}
	log.Info().Str("actuator", "heater").Msg("turned OFF")
}

func (h *Heater) HardStop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hardStopLocked()
}

func (h *Heater) hardStopLocked() {
	h.mode = model.HeaterModeOff
	h.offLocked()
}

// SetInputTemp records the latest temperature reading from the sensor
// feeding the heater. A null or non-positive reading is treated as
// invalid and hard-stops the heater within this same call.
func (h *Heater) SetInputTemp(t float64, valid bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !valid || t <= 0 {
		log.Error().Msg("heater: invalid input temperature reading")
		h.hardStopLocked()
		return
	}
	h.inputTemp = t
	h.hasInputTemp = true
	h.lastInputUpdate = time.Now()
}

func (h *Heater) SetOutputTemp(t float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outputTemp = t
}

func (h *Heater) SetModeHoldAt(target int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.target = target
	h.mode = model.HeaterModeHoldAt
}

func (h *Heater) SetModeReachAndStop(target int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.target = target
	h.mode = model.HeaterModeReachAndStop
}

func (h *Heater) SetModeOff() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.mode = model.HeaterModeOff
}

// RunOneTick applies the safety cascade in spec order; the first
// matching condition wins and no further steps run this tick.
func (h *Heater) RunOneTick() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == model.StateOn && h.pump != nil && !h.pump.IsOn() {
		h.hardStopLocked()
		h.events.Event(model.Event{Name: "heater_emergency_pump_stopped", Timestamp: time.Now()})
		return
	}
	if h.state == model.StateOn && h.timer.Elapsed() > time.Duration(h.maxRuntimeSeconds)*time.Second {
		h.hardStopLocked()
		h.events.Event(model.Event{Name: "heater_max_runtime_exceeded", Timestamp: time.Now()})
		return
	}
	if !h.lastInputUpdate.IsZero() && time.Since(h.lastInputUpdate) > staleSensorAfter {
		h.hardStopLocked()
		log.Error().Msg("Input sensor stale")
		return
	}
	// An OFF state with no active mode is a fully idle heater: idempotent
	// cleanup and nothing further to evaluate. An OFF state with
	// HOLD_AT/REACH_AND_STOP still set means the heater just cycled off
	// on a prior tick (the mode-branch "off without clearing mode" case
	// below) and must still be evaluated every tick so it can turn back
	// on as the water cools.
	if h.state == model.StateOff && h.mode == model.HeaterModeOff {
		h.offLocked()
		return
	}
	if h.inputTemp >= h.maxWaterTemp {
		h.offLocked()
		return
	}

	switch h.mode {
	case model.HeaterModeReachAndStop:
		if h.inputTemp < float64(h.target) {
			h.onLocked()
		} else {
			h.events.Event(model.Event{Name: "heater_reached_target", Payload: map[string]any{"target_temp": h.target}, Timestamp: time.Now()})
			h.offLocked()
			h.mode = model.HeaterModeOff
		}
	case model.HeaterModeHoldAt:
		if h.inputTemp < float64(h.target) {
			h.onLocked()
		} else {
			h.offLocked()
			h.mode = model.HeaterModeHoldAt
		}
	}
}
