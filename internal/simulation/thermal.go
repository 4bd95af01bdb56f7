// Package simulation implements a first-order thermal model for the
// simulated hardware backend: pool water temperature drifts toward
// ambient, and toward a higher setpoint while the heater is energized
// and the pump is circulating, by an exponential-decay response per tick.
package simulation

import (
	"math"
	"sync"
	"time"
)

// Config tunes the thermal response. Alpha governs how quickly the pool
// equalizes with ambient air; Beta governs how quickly it responds to
// heater output once the pump is circulating.
type Config struct {
	Alpha           float64
	Beta            float64
	InitialPoolTemp float64
	InitialAmbient  float64
	HeaterOutputTemp float64
	TimeMultiplier  float64
}

func DefaultConfig() Config {
	return Config{
		Alpha:            0.002,
		Beta:             0.01,
		InitialPoolTemp:  20.0,
		InitialAmbient:   24.0,
		HeaterOutputTemp: 40.0,
		TimeMultiplier:   1.0,
	}
}

// DeviceState is read once per tick to learn whether the pump is
// circulating and the heater is energized; the simulation has no
// knowledge of the actuators beyond these two booleans.
type DeviceState interface {
	PumpRunning() bool
	HeaterRunning() bool
}

// Thermal is the simulation singleton: one instance per process,
// advanced once per supervisor tick.
type Thermal struct {
	mu sync.Mutex
	cfg Config

	poolTemp   float64
	ambient    float64
	devices    DeviceState
	lastAdvance time.Time
}

func New(cfg Config) *Thermal {
	return &Thermal{
		cfg:      cfg,
		poolTemp: cfg.InitialPoolTemp,
		ambient:  cfg.InitialAmbient,
	}
}

// BindDevices wires the device-state provider in after actuators exist,
// mirroring the supervisor's init-order step 7.
func (t *Thermal) BindDevices(devices DeviceState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.devices = devices
}

// Advance steps the model forward by dt, scaled by TimeMultiplier.
func (t *Thermal) Advance(dt time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seconds := dt.Seconds() * t.cfg.TimeMultiplier
	t.poolTemp += t.cfg.Alpha * (t.ambient - t.poolTemp) * seconds

	if t.devices != nil && t.devices.PumpRunning() && t.devices.HeaterRunning() {
		t.poolTemp += t.cfg.Beta * (t.cfg.HeaterOutputTemp - t.poolTemp) * seconds
	}

	t.lastAdvance = t.lastAdvance.Add(dt)
}

// WaterTemp is the simulated input-to-heater reading.
func (t *Thermal) WaterTemp() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.poolTemp
}

// OutputTemp is the simulated leaving-water (heater output) reading: it
// tracks the heater's target output temperature when energized and the
// pool temperature otherwise.
func (t *Thermal) OutputTemp() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.devices != nil && t.devices.HeaterRunning() {
		return t.cfg.HeaterOutputTemp
	}
	return t.poolTemp
}

// AmbientTemp is the simulated air-temperature reading.
func (t *Thermal) AmbientTemp() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ambient
}

func (t *Thermal) SetPoolTemp(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.poolTemp = v
}

func (t *Thermal) SetAmbientTemp(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ambient = v
}

func (t *Thermal) SetTimeMultiplier(v float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v <= 0 || math.IsNaN(v) {
		return
	}
	t.cfg.TimeMultiplier = v
}
