// Package model defines the shared domain vocabulary for the pool
// controller: actuator on/off state, heater and pump operating modes,
// and the event/runtime/sensor records persisted by internal/store.
package model

import "time"

// OnOff is the binary electrical state of a relay-driven actuator.
type OnOff string

const (
	StateOn  OnOff = "ON"
	StateOff OnOff = "OFF"
)

// HeaterMode records why the heater is (or isn't) running, beyond the
// raw on/off state: HoldAt cycles the heater around a target
// temperature, turning it back on as the water cools; ReachAndStop
// heats until the target is reached, then turns the heater off and
// clears the mode.
type HeaterMode string

const (
	HeaterModeOff          HeaterMode = "OFF"
	HeaterModeHoldAt       HeaterMode = "HOLD_AT"
	HeaterModeReachAndStop HeaterMode = "REACH_AND_STOP"
)

// PumpMode distinguishes an indefinite run from a timed one.
type PumpMode string

const (
	PumpModeOff             PumpMode = "OFF"
	PumpModeRunForDuration  PumpMode = "RUN_FOR_DURATION"
)

// Event is one state-change or notable occurrence, persisted to the
// event log and mirrored onto the message bus.
type Event struct {
	Name      string         `json:"name"`
	From      string         `json:"from,omitempty"`
	To        string         `json:"to,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Runtime records a completed on-cycle for a device, used to roll up
// equipment hours.
type Runtime struct {
	Topic     string        `json:"topic"`
	StartWall time.Time     `json:"startWall"`
	Elapsed   time.Duration `json:"elapsedSeconds"`
}

// SensorReading is one temperature sample taken from a named sensor
// role (pump inlet, heater outlet, ambient, CPU).
type SensorReading struct {
	Name  string    `json:"name"`
	Value float64   `json:"value"`
	Wall  time.Time `json:"wall"`
}
