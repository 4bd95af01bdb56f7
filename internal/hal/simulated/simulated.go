// Package simulated implements the hardware abstraction layer against
// internal/simulation's thermal model instead of real GPIO and 1-Wire
// hardware, so the actuator supervisor can be exercised deterministically
// without a wired board.
package simulated

import (
	"sync"
	"time"

	"github.com/mjpetersen/pipool-controller/internal/simulation"
)

// GPIO tracks logical line state in memory; no real pin is driven.
type GPIO struct {
	mu    sync.Mutex
	lines map[int]bool // pin -> currently active (electrical level doesn't matter here)
}

func NewGPIO() *GPIO {
	return &GPIO{lines: make(map[int]bool)}
}

func (g *GPIO) Configure(pin int, activeHigh bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lines[pin] = false
	return nil
}

func (g *GPIO) Drive(pin int, activeHigh bool, active bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lines[pin] = active
	return nil
}

// Level reports the line's logical active flag as last driven, not its
// electrical level: an active-low line reads true while it is active.
func (g *GPIO) Level(pin int) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lines[pin], nil
}

// Thermometer reads sensor values from the shared thermal simulation by
// well-known sensor role rather than by 1-Wire device path, since the
// simulated backend has no physical devices.
type Thermometer struct {
	sim *simulation.Thermal
}

func NewThermometer(sim *simulation.Thermal) *Thermometer {
	return &Thermometer{sim: sim}
}

// ReadCelsius interprets devicePath as a sensor role: "in_to_heater",
// "out_from_heater", or "temp_ambient".
func (t *Thermometer) ReadCelsius(devicePath string) (float64, bool) {
	switch devicePath {
	case "in_to_heater":
		return t.sim.WaterTemp(), true
	case "out_from_heater":
		return t.sim.OutputTemp(), true
	case "temp_ambient":
		return t.sim.AmbientTemp(), true
	default:
		return 0, false
	}
}

// CPUTemp reports a fixed plausible SoC temperature in simulated mode.
type CPUTemp struct{}

func NewCPUTemp() *CPUTemp { return &CPUTemp{} }

func (CPUTemp) ReadCelsius() (float64, bool) { return 45.0, true }

// Reachability is always connected in simulated mode: there is no
// network dependency to model.
type Reachability struct{}

func NewReachability() *Reachability { return &Reachability{} }

func (Reachability) Connected() bool { return true }

// Probe is a no-op: simulated mode has no network to probe.
func (Reachability) Probe(count int, interval time.Duration) {}

// ModuleLoader is a no-op: there is no kernel module to load for a
// simulated 1-Wire bus.
type ModuleLoader struct{}

func NewModuleLoader() *ModuleLoader { return &ModuleLoader{} }

func (ModuleLoader) LoadOneWireModules() error { return nil }
