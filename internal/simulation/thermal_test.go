package simulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeDevices struct {
	pump, heater bool
}

func (f fakeDevices) PumpRunning() bool   { return f.pump }
func (f fakeDevices) HeaterRunning() bool { return f.heater }

func TestAdvanceDriftsTowardAmbient(t *testing.T) {
	sim := New(Config{Alpha: 0.01, Beta: 0.05, InitialPoolTemp: 60, InitialAmbient: 80, TimeMultiplier: 1})

	sim.Advance(10 * time.Second)

	assert.Greater(t, sim.WaterTemp(), 60.0)
	assert.Less(t, sim.WaterTemp(), 80.0)
}

func TestAdvanceWithHeaterRunningPullsTowardOutput(t *testing.T) {
	sim := New(Config{Alpha: 0.0, Beta: 0.05, InitialPoolTemp: 60, InitialAmbient: 60, HeaterOutputTemp: 104, TimeMultiplier: 1})
	sim.BindDevices(fakeDevices{pump: true, heater: true})

	before := sim.WaterTemp()
	sim.Advance(10 * time.Second)

	assert.Greater(t, sim.WaterTemp(), before)
}

func TestAdvanceWithoutPumpIgnoresHeaterOutput(t *testing.T) {
	sim := New(Config{Alpha: 0.0, Beta: 0.05, InitialPoolTemp: 60, InitialAmbient: 60, HeaterOutputTemp: 104, TimeMultiplier: 1})
	sim.BindDevices(fakeDevices{pump: false, heater: true})

	before := sim.WaterTemp()
	sim.Advance(10 * time.Second)

	assert.Equal(t, before, sim.WaterTemp())
}

func TestSetTimeMultiplierRejectsNonPositive(t *testing.T) {
	sim := New(DefaultConfig())
	sim.SetTimeMultiplier(5)
	sim.SetTimeMultiplier(0)
	sim.SetTimeMultiplier(-1)

	sim.mu.Lock()
	defer sim.mu.Unlock()
	assert.Equal(t, 5.0, sim.cfg.TimeMultiplier)
}
