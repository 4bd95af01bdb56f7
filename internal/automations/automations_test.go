package automations

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjpetersen/pipool-controller/internal/model"
)

type fakeHeater struct {
	mu               sync.Mutex
	on               bool
	onOK             bool
	targetSet        int
	offCalled        bool
	inputBelowTarget bool
}

func (h *fakeHeater) On() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.on = h.onOK
	return h.onOK
}
func (h *fakeHeater) Off() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.on = false
	h.offCalled = true
}
func (h *fakeHeater) SetModeReachAndStop(target int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.targetSet = target
}
func (h *fakeHeater) SetModeOff() {}
func (h *fakeHeater) InputTempLessThan(target int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.inputBelowTarget
}

type fakePump struct {
	mu           sync.Mutex
	on           bool
	runMinutes   int
	modeOffCalls int
}

func (p *fakePump) On() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.on = true
}
func (p *fakePump) IsOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.on
}
func (p *fakePump) SetRunForMinutesAndStop(minutes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runMinutes = minutes
	p.on = true
}
func (p *fakePump) SetModeOff() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.modeOffCalls++
	p.on = false
}

type fakeSink struct {
	mu     sync.Mutex
	events []model.Event
}

func (s *fakeSink) Event(e model.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}
func (s *fakeSink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for _, e := range s.events {
		names = append(names, e.Name)
	}
	return names
}

func TestHeatToTargetStartsPumpThenHeaterAfterDelay(t *testing.T) {
	heater := &fakeHeater{onOK: true, inputBelowTarget: true}
	pump := &fakePump{}
	sink := &fakeSink{}
	a := New(heater, pump, sink).WithSleepFunc(func(time.Duration) {})

	a.HeatToTarget([]byte(`{"mode":"ON","targetTemp":28}`))

	require.Eventually(t, func() bool { return heater.targetSet == 28 }, time.Second, time.Millisecond)
	assert.True(t, pump.IsOn())
	assert.Contains(t, sink.names(), "automation_heating_started")
}

func TestHeatToTargetAbortsIfPumpStoppedDuringDelay(t *testing.T) {
	heater := &fakeHeater{onOK: true, inputBelowTarget: true}
	pump := &fakePump{}
	sink := &fakeSink{}

	var wg sync.WaitGroup
	a := New(heater, pump, sink).WithSleepFunc(func(time.Duration) {
		pump.mu.Lock()
		pump.on = false
		pump.mu.Unlock()
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.HeatToTarget([]byte(`{"mode":"ON","targetTemp":28}`))
	}()
	wg.Wait()

	require.Eventually(t, func() bool { return len(sink.names()) > 0 }, time.Second, time.Millisecond)
	assert.Contains(t, sink.names(), "automation_heater_blocked")
	assert.False(t, heater.on)
}

func TestHeatToTargetNoOpsWhenInputAlreadyAtTarget(t *testing.T) {
	heater := &fakeHeater{onOK: true, inputBelowTarget: false}
	pump := &fakePump{}
	sink := &fakeSink{}
	a := New(heater, pump, sink).WithSleepFunc(func(time.Duration) {})

	a.HeatToTarget([]byte(`{"mode":"ON","targetTemp":28}`))

	assert.False(t, pump.IsOn())
	assert.Zero(t, heater.targetSet)
	assert.Empty(t, sink.names())
}

func TestHeatToTargetRejectsOutOfRangeTarget(t *testing.T) {
	heater := &fakeHeater{onOK: true, inputBelowTarget: true}
	pump := &fakePump{}
	a := New(heater, pump, nil)

	a.HeatToTarget([]byte(`{"mode":"ON","targetTemp":46}`))

	assert.False(t, pump.IsOn())
}

func TestHeatToTargetOffCallsHeaterOff(t *testing.T) {
	heater := &fakeHeater{on: true, onOK: true, inputBelowTarget: true}
	pump := &fakePump{}
	a := New(heater, pump, nil)

	a.HeatToTarget([]byte(`{"mode":"OFF"}`))

	assert.True(t, heater.offCalled)
}

func TestPumpForMinutesOn(t *testing.T) {
	heater := &fakeHeater{}
	pump := &fakePump{}
	a := New(heater, pump, nil)

	a.PumpForMinutes([]byte(`{"mode":"ON","durationInMinutes":30}`))

	assert.Equal(t, 30, pump.runMinutes)
}

func TestPumpForMinutesOff(t *testing.T) {
	heater := &fakeHeater{}
	pump := &fakePump{on: true}
	a := New(heater, pump, nil)

	a.PumpForMinutes([]byte(`{"mode":"OFF"}`))

	assert.Equal(t, 1, pump.modeOffCalls)
}
