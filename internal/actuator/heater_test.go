package actuator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjpetersen/pipool-controller/internal/model"
)

func newTestHeater(pump *Pump, relay Relay, sink *recordingSink) *Heater {
	return NewHeater(HeaterConfig{
		Port:              2,
		Relay:             relay,
		Pump:              pump,
		Events:            sink,
		Runtime:           sink,
		MaxWaterTemp:      104,
		MaxRuntimeSeconds: 14400,
	})
}

func TestHeaterBlockedWithoutPumpRunning(t *testing.T) {
	relay := newFakeRelay()
	sink := &recordingSink{}
	pumpRelay := newFakeRelay()
	pump := NewPump(1, pumpRelay, sink, sink)
	heater := newTestHeater(pump, relay, sink)

	ok := heater.On()

	require.False(t, ok)
	assert.False(t, heater.IsOn())
	assert.Equal(t, 0, relay.onCount[2])
}

func TestHeaterEnergizesWhenPumpRunning(t *testing.T) {
	relay := newFakeRelay()
	sink := &recordingSink{}
	pumpRelay := newFakeRelay()
	pump := NewPump(1, pumpRelay, sink, sink)
	pump.On()
	heater := newTestHeater(pump, relay, sink)

	ok := heater.On()

	require.True(t, ok)
	assert.True(t, heater.IsOn())
	assert.Equal(t, 1, relay.onCount[2])
}

func TestHeaterProceedsWithoutInterlockWhenNoPumpWired(t *testing.T) {
	relay := newFakeRelay()
	sink := &recordingSink{}
	heater := newTestHeater(nil, relay, sink)

	ok := heater.On()

	assert.True(t, ok)
	assert.True(t, heater.IsOn())
}

func TestHeaterRunOneTickEmergencyStopsWhenPumpLeaves(t *testing.T) {
	relay := newFakeRelay()
	sink := &recordingSink{}
	pumpRelay := newFakeRelay()
	pump := NewPump(1, pumpRelay, sink, sink)
	pump.On()
	heater := newTestHeater(pump, relay, sink)
	require.True(t, heater.On())

	pump.Off()
	heater.RunOneTick()

	assert.False(t, heater.IsOn())
	var names []string
	for _, e := range sink.events {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "heater_emergency_pump_stopped")
}

func TestHeaterSetInputTempInvalidHardStops(t *testing.T) {
	relay := newFakeRelay()
	sink := &recordingSink{}
	pumpRelay := newFakeRelay()
	pump := NewPump(1, pumpRelay, sink, sink)
	pump.On()
	heater := newTestHeater(pump, relay, sink)
	require.True(t, heater.On())

	heater.SetInputTemp(0, true)

	assert.False(t, heater.IsOn())
}

func TestHeaterStaleSensorHardStops(t *testing.T) {
	relay := newFakeRelay()
	sink := &recordingSink{}
	pumpRelay := newFakeRelay()
	pump := NewPump(1, pumpRelay, sink, sink)
	pump.On()
	heater := newTestHeater(pump, relay, sink)
	require.True(t, heater.On())
	heater.SetInputTemp(80, true)
	heater.mu.Lock()
	heater.lastInputUpdate = time.Now().Add(-61 * time.Second)
	heater.mu.Unlock()

	heater.RunOneTick()

	assert.False(t, heater.IsOn())
}

func TestHeaterReachAndStopTurnsOffAtTarget(t *testing.T) {
	relay := newFakeRelay()
	sink := &recordingSink{}
	pumpRelay := newFakeRelay()
	pump := NewPump(1, pumpRelay, sink, sink)
	pump.On()
	heater := newTestHeater(pump, relay, sink)
	require.True(t, heater.On())
	heater.SetModeReachAndStop(82)
	heater.SetInputTemp(75, true)

	heater.RunOneTick() // still below target, stays on
	assert.True(t, heater.IsOn())

	heater.SetInputTemp(82.5, true)
	heater.RunOneTick()

	assert.False(t, heater.IsOn())
}

func TestHeaterHoldAtCyclesAroundTarget(t *testing.T) {
	relay := newFakeRelay()
	sink := &recordingSink{}
	pumpRelay := newFakeRelay()
	pump := NewPump(1, pumpRelay, sink, sink)
	pump.On()
	heater := newTestHeater(pump, relay, sink)
	require.True(t, heater.On())
	heater.SetModeHoldAt(80)
	heater.SetInputTemp(85, true)

	heater.RunOneTick() // above target: off, mode preserved
	assert.False(t, heater.IsOn())

	heater.SetInputTemp(70, true)
	heater.RunOneTick() // below target again: back on

	assert.True(t, heater.IsOn())
}

func TestHeaterInputAtMaxWaterTempTurnsOff(t *testing.T) {
	relay := newFakeRelay()
	sink := &recordingSink{}
	pumpRelay := newFakeRelay()
	pump := NewPump(1, pumpRelay, sink, sink)
	pump.On()
	heater := newTestHeater(pump, relay, sink)
	require.True(t, heater.On())
	heater.SetModeHoldAt(90)
	heater.SetInputTemp(104, true)

	heater.RunOneTick()

	assert.False(t, heater.IsOn())
}

func TestHeaterHardStopIdempotent(t *testing.T) {
	relay := newFakeRelay()
	sink := &recordingSink{}
	heater := newTestHeater(nil, relay, sink)

	heater.HardStop()
	heater.HardStop()

	assert.False(t, heater.IsOn())
	assert.Equal(t, model.HeaterModeOff, heater.mode)
}
