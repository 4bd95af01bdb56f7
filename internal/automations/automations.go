// Package automations implements the composite, higher-level commands
// the broker exposes beyond raw actuator on/off: "heat to T" sequences
// pump-first then a delayed, re-verified heater activation; "pump for N
// minutes" is a thin pass-through to the Pump's timed-run mode. The
// heat-to-target handler's sleep-then-recheck shape is grounded on the
// buffer controller's mode-pin switch sequencing in the teacher repo.
package automations

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mjpetersen/pipool-controller/internal/model"
)

const (
	minTargetTemp = 1
	maxTargetTemp = 45

	defaultCirculationDelay = 5 * time.Second
)

// Heater is the subset of actuator.Heater the automations layer needs.
type Heater interface {
	On() bool
	Off()
	SetModeReachAndStop(target int)
	SetModeOff()
	InputTempLessThan(target int) bool
}

// Pump is the subset of actuator.Pump the automations layer needs.
type Pump interface {
	On()
	IsOn() bool
	SetRunForMinutesAndStop(minutes int)
	SetModeOff()
}

// EventSink records opaque automation events, best-effort.
type EventSink interface {
	Event(e model.Event)
}

type noopSink struct{}

func (noopSink) Event(model.Event) {}

// Automations wires the heater/pump command handlers. Delay is the
// circulation dwell before the heater is re-verified and activated;
// Sleep is injectable so tests don't wait on the real clock.
type Automations struct {
	heater Heater
	pump   Pump
	events EventSink
	delay  time.Duration
	sleep  func(time.Duration)
}

func New(heater Heater, pump Pump, events EventSink) *Automations {
	if events == nil {
		events = noopSink{}
	}
	return &Automations{
		heater: heater,
		pump:   pump,
		events: events,
		delay:  defaultCirculationDelay,
		sleep:  time.Sleep,
	}
}

// WithDelay overrides the circulation delay, used by tests.
func (a *Automations) WithDelay(d time.Duration) *Automations {
	a.delay = d
	return a
}

// WithSleepFunc overrides the sleep primitive, used by tests to avoid
// real waits.
func (a *Automations) WithSleepFunc(fn func(time.Duration)) *Automations {
	a.sleep = fn
	return a
}

type heatToTargetPayload struct {
	Mode       string `json:"mode"`
	TargetTemp *int   `json:"targetTemp"`
}

// HeatToTarget implements the "heat to T" broker command. It must never
// block its caller: the pump-circulation delay runs on its own
// goroutine.
func (a *Automations) HeatToTarget(raw []byte) {
	var payload heatToTargetPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("automation heat_to_target: malformed payload")
		return
	}

	switch payload.Mode {
	case "OFF":
		a.heater.Off()
		return
	case "ON":
		// handled below
	default:
		log.Error().Str("mode", payload.Mode).Msg("automation heat_to_target: mode must be ON or OFF")
		return
	}

	if payload.TargetTemp == nil {
		log.Error().Msg("automation heat_to_target: targetTemp required when mode=ON")
		return
	}
	target := *payload.TargetTemp
	if target < minTargetTemp || target > maxTargetTemp {
		log.Error().Int("target_temp", target).Msg("automation heat_to_target: targetTemp out of range")
		return
	}

	if !a.heater.InputTempLessThan(target) {
		log.Info().Int("target_temp", target).Msg("automation heat_to_target: input temp already at or above target, not starting heater")
		return
	}

	a.pump.On()

	go a.finishHeatToTarget(target)
}

func (a *Automations) finishHeatToTarget(target int) {
	a.sleep(a.delay)

	if !a.pump.IsOn() {
		a.events.Event(model.Event{
			Name:      "automation_heater_blocked",
			Payload:   map[string]any{"reason": "pump_stopped_during_delay"},
			Timestamp: time.Now(),
		})
		return
	}

	if !a.heater.On() {
		return
	}
	a.heater.SetModeReachAndStop(target)
	a.events.Event(model.Event{
		Name:      "automation_heating_started",
		Payload:   map[string]any{"target_temp": target},
		Timestamp: time.Now(),
	})
}

type pumpForMinutesPayload struct {
	Mode            string `json:"mode"`
	DurationMinutes *int   `json:"durationInMinutes"`
}

// PumpForMinutes implements the "pump for N minutes" broker command.
func (a *Automations) PumpForMinutes(raw []byte) {
	var payload pumpForMinutesPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("automation pump_for_minutes: malformed payload")
		return
	}

	switch payload.Mode {
	case "OFF":
		a.pump.SetModeOff()
	case "ON":
		if payload.DurationMinutes == nil || *payload.DurationMinutes <= 0 {
			log.Error().Msg("automation pump_for_minutes: durationInMinutes required and must be positive")
			return
		}
		a.pump.SetRunForMinutesAndStop(*payload.DurationMinutes)
	default:
		log.Error().Str("mode", payload.Mode).Msg("automation pump_for_minutes: mode must be ON or OFF")
	}
}
