// Package watchdog implements the per-tick safety evaluation, grounded
// on the teacher's internal/controllers/failsafecontroller periodic
// evaluate-then-act cycle; here each check reads state and acts on it
// directly. Generalized from the teacher's zone-temperature failsafe
// ladder to the heater/pump/network/broker escalation ladder this
// controller requires.
package watchdog

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mjpetersen/pipool-controller/internal/model"
)

type Heater interface {
	IsOn() bool
	HardStop()
}

type Pump interface {
	IsOn() bool
	HardStop()
}

type Pinger interface {
	IsConnected() bool
}

type Bus interface {
	Connected() bool
	Connect()
}

type EventSink interface {
	Event(e model.Event)
}

const extendedOutageThreshold = 300 * time.Second

// Watchdog runs the escalation ladder once per call to Check, called
// once per supervisor tick.
type Watchdog struct {
	heater Heater
	pump   Pump
	pinger Pinger
	bus    Bus
	events EventSink

	firstDisconnect time.Time
	extendedEmitted bool
}

func New(heater Heater, pump Pump, pinger Pinger, bus Bus, events EventSink) *Watchdog {
	return &Watchdog{heater: heater, pump: pump, pinger: pinger, bus: bus, events: events}
}

// Check runs the three-step ladder in order: heater-without-pump,
// network loss, broker reachability.
func (w *Watchdog) Check() {
	w.checkHeaterWithoutPump()
	w.checkNetwork()
	w.checkBroker()
}

func (w *Watchdog) checkHeaterWithoutPump() {
	if w.heater.IsOn() && !w.pump.IsOn() {
		w.heater.HardStop()
		w.events.Event(model.Event{Name: "watchdog_heater_emergency_stop", Timestamp: time.Now()})
	}
}

func (w *Watchdog) checkNetwork() {
	if !w.pinger.IsConnected() {
		w.heater.HardStop()
		w.events.Event(model.Event{Name: "watchdog_network_loss", Timestamp: time.Now()})
	}
}

func (w *Watchdog) checkBroker() {
	if w.bus.Connected() {
		if !w.firstDisconnect.IsZero() {
			outage := time.Since(w.firstDisconnect)
			w.events.Event(model.Event{
				Name:      "watchdog_mqtt_reconnected",
				Payload:   map[string]any{"outage_duration_seconds": outage.Seconds()},
				Timestamp: time.Now(),
			})
			w.firstDisconnect = time.Time{}
			w.extendedEmitted = false
		}
		return
	}

	if w.firstDisconnect.IsZero() {
		w.firstDisconnect = time.Now()
	}
	w.bus.Connect()

	if w.heater.IsOn() {
		w.heater.HardStop()
		w.events.Event(model.Event{Name: "watchdog_mqtt_heater_stop", Timestamp: time.Now()})
	}

	outage := time.Since(w.firstDisconnect)
	if outage > extendedOutageThreshold {
		if w.pump.IsOn() {
			w.pump.HardStop()
		}
		if !w.extendedEmitted {
			w.events.Event(model.Event{
				Name:      "watchdog_mqtt_extended_outage",
				Payload:   map[string]any{"duration_seconds": outage.Seconds()},
				Timestamp: time.Now(),
			})
			w.extendedEmitted = true
			log.Warn().Dur("outage", outage).Msg("watchdog: mqtt outage exceeded threshold, pump stopped")
		}
	}
}
