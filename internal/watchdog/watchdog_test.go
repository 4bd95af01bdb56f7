package watchdog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mjpetersen/pipool-controller/internal/model"
)

type fakeHeater struct {
	on        bool
	stopCalls int
}

func (h *fakeHeater) IsOn() bool { return h.on }
func (h *fakeHeater) HardStop() {
	h.stopCalls++
	h.on = false
}

type fakePump struct {
	on        bool
	stopCalls int
}

func (p *fakePump) IsOn() bool { return p.on }
func (p *fakePump) HardStop() {
	p.stopCalls++
	p.on = false
}

type fakePinger struct{ connected bool }

func (p *fakePinger) IsConnected() bool { return p.connected }

type fakeBus struct {
	connected   bool
	connectCalls int
}

func (b *fakeBus) Connected() bool { return b.connected }
func (b *fakeBus) Connect()        { b.connectCalls++ }

type fakeSink struct{ events []model.Event }

func (s *fakeSink) Event(e model.Event) { s.events = append(s.events, e) }
func (s *fakeSink) names() []string {
	var out []string
	for _, e := range s.events {
		out = append(out, e.Name)
	}
	return out
}

func TestCheckStopsHeaterWhenPumpOff(t *testing.T) {
	heater := &fakeHeater{on: true}
	pump := &fakePump{on: false}
	pinger := &fakePinger{connected: true}
	bus := &fakeBus{connected: true}
	sink := &fakeSink{}

	New(heater, pump, pinger, bus, sink).Check()

	assert.Equal(t, 1, heater.stopCalls)
	assert.Contains(t, sink.names(), "watchdog_heater_emergency_stop")
}

func TestCheckStopsHeaterOnNetworkLoss(t *testing.T) {
	heater := &fakeHeater{on: true}
	pump := &fakePump{on: true}
	pinger := &fakePinger{connected: false}
	bus := &fakeBus{connected: true}
	sink := &fakeSink{}

	New(heater, pump, pinger, bus, sink).Check()

	assert.Equal(t, 1, heater.stopCalls)
	assert.Contains(t, sink.names(), "watchdog_network_loss")
	assert.True(t, pump.on)
}

func TestCheckBrokerDownStopsHeaterAndAttemptsReconnect(t *testing.T) {
	heater := &fakeHeater{on: true}
	pump := &fakePump{on: true}
	pinger := &fakePinger{connected: true}
	bus := &fakeBus{connected: false}
	sink := &fakeSink{}

	w := New(heater, pump, pinger, bus, sink)
	w.Check()

	assert.Equal(t, 1, heater.stopCalls)
	assert.Equal(t, 1, bus.connectCalls)
	assert.True(t, pump.on)
}

func TestCheckBrokerExtendedOutageStopsPump(t *testing.T) {
	heater := &fakeHeater{on: false}
	pump := &fakePump{on: true}
	pinger := &fakePinger{connected: true}
	bus := &fakeBus{connected: false}
	sink := &fakeSink{}

	w := New(heater, pump, pinger, bus, sink)
	w.firstDisconnect = time.Now().Add(-301 * time.Second)
	w.Check()

	assert.Equal(t, 1, pump.stopCalls)
	assert.Contains(t, sink.names(), "watchdog_mqtt_extended_outage")
}

func TestCheckBrokerReconnectEmitsEventAndClearsTimestamp(t *testing.T) {
	heater := &fakeHeater{}
	pump := &fakePump{}
	pinger := &fakePinger{connected: true}
	bus := &fakeBus{connected: true}
	sink := &fakeSink{}

	w := New(heater, pump, pinger, bus, sink)
	w.firstDisconnect = time.Now().Add(-10 * time.Second)
	w.Check()

	assert.Contains(t, sink.names(), "watchdog_mqtt_reconnected")
	assert.True(t, w.firstDisconnect.IsZero())
}
