// Package supervisor is the composition root: it builds every
// component per the documented init order, runs the 1 Hz tick loop
// grounded on the teacher's Controller.Run (a ticker select-loop against
// a cancellable context), and owns the ordered, single-shot shutdown
// sequence grounded on the teacher's system/shutdown idiom, generalized
// to the full actuator set and made independently testable via an
// injectable exit function.
package supervisor

import (
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/mjpetersen/pipool-controller/internal/actuator"
	"github.com/mjpetersen/pipool-controller/internal/automations"
	"github.com/mjpetersen/pipool-controller/internal/broker"
	"github.com/mjpetersen/pipool-controller/internal/config"
	"github.com/mjpetersen/pipool-controller/internal/hal"
	halreal "github.com/mjpetersen/pipool-controller/internal/hal/real"
	halsim "github.com/mjpetersen/pipool-controller/internal/hal/simulated"
	"github.com/mjpetersen/pipool-controller/internal/metrics"
	"github.com/mjpetersen/pipool-controller/internal/model"
	"github.com/mjpetersen/pipool-controller/internal/notifications"
	"github.com/mjpetersen/pipool-controller/internal/pinger"
	"github.com/mjpetersen/pipool-controller/internal/relay"
	"github.com/mjpetersen/pipool-controller/internal/sensors"
	"github.com/mjpetersen/pipool-controller/internal/simulation"
	"github.com/mjpetersen/pipool-controller/internal/store"
	"github.com/mjpetersen/pipool-controller/internal/watchdog"
)

// ExitFunc terminates the process; a package variable so tests can
// substitute a non-terminating stand-in.
var ExitFunc = os.Exit

const tickInterval = 1 * time.Second

// Supervisor owns every long-lived component and the tick/shutdown loops.
type Supervisor struct {
	cfg config.Config

	gpio    hal.GPIO
	thermo  hal.Thermometer
	cpu     hal.CPUTemp
	reach   reachability
	modules hal.ModuleLoader

	sim *simulation.Thermal

	logStore *store.Store

	sensors     *sensors.Service
	relayBoard  *relay.Board
	pump        *actuator.Pump
	heater      *actuator.Heater
	light       *actuator.Light
	colorDriver *actuator.ColorDriver

	automations *automations.Automations
	ping        *pinger.Pinger
	bus         *broker.Bus
	watch       *watchdog.Watchdog

	snapshot *metrics.Snapshot
	dd       *metrics.Datadog

	events fanoutSink

	shutdownOnce sync.Once
	signals      chan os.Signal
}

type reachability interface {
	Connected() bool
	Probe(count int, interval time.Duration)
}

// New builds every component in the documented order. Steps 1 (load
// config) and 9 (signal registration) are the caller's and Run's
// responsibility respectively; New covers steps 2-8.
func New(cfg config.Config) (*Supervisor, error) {
	s := &Supervisor{cfg: cfg, signals: make(chan os.Signal, 1)}

	s.selectHAL()

	if err := s.modules.LoadOneWireModules(); err != nil {
		log.Warn().Err(err).Msg("supervisor: failed to load 1-Wire kernel modules")
	}

	logStore, err := store.Open(s.dbPath())
	if err != nil {
		return nil, err
	}
	s.logStore = logStore

	s.events = s.buildEventSink()
	events := s.events

	inDevice, outDevice, ambientDevice := s.sensorDevicePaths()
	s.sensors = sensors.New(s.thermo, s.cpu, s.logStore, inDevice, outDevice, ambientDevice)

	lines := []relay.Line{
		relay.StandardLine(cfg.Ports.Pump),
		relay.StandardLine(cfg.Ports.Heater),
		relay.StandardLine(cfg.Ports.Light),
	}
	board, err := relay.New(s.gpio, lines)
	if err != nil {
		return nil, err
	}
	s.relayBoard = board
	if cfg.NoDevices {
		board.SetInhibit(true)
	}

	s.pump = actuator.NewPump(cfg.Ports.Pump, board, events, s.logStore)
	s.heater = actuator.NewHeater(actuator.HeaterConfig{
		Port:              cfg.Ports.Heater,
		Relay:             board,
		Pump:              s.pump,
		Events:            events,
		Runtime:           s.logStore,
		MaxWaterTemp:      float64(cfg.MaxWaterTemp),
		MaxRuntimeSeconds: cfg.MaxHeaterRuntimeSeconds,
	})
	s.light = actuator.NewLight(cfg.Ports.Light, board, events)
	s.colorDriver = actuator.NewColorDriver(s.light, events)

	if s.sim != nil {
		s.sim.BindDevices(deviceState{pump: s.pump, heater: s.heater})
	}

	s.automations = automations.New(s.heater, s.pump, events)
	s.ping = pinger.New(s.reach)
	s.bus = broker.New(cfg.MQTTBroker, "pipool-controller")
	s.watch = watchdog.New(s.heater, s.pump, s.ping, s.bus, events)

	s.snapshot = metrics.NewSnapshot()
	s.dd = metrics.NewDatadog(cfg.DDAgentAddr, cfg.DDNamespace, nil)

	s.registerTopics()
	s.bus.Connect()
	s.ping.Run()

	return s, nil
}

func (s *Supervisor) dbPath() string {
	if s.cfg.DBPath != "" {
		return s.cfg.DBPath
	}
	return "pipool.db"
}

type deviceState struct {
	pump   *actuator.Pump
	heater *actuator.Heater
}

func (d deviceState) PumpRunning() bool   { return d.pump.IsOn() }
func (d deviceState) HeaterRunning() bool { return d.heater.IsOn() }

// selectHAL instantiates the real or simulated hardware backend per
// cfg.HardwareMode, creating the thermal simulation singleton first
// when simulated (init steps 2-3).
func (s *Supervisor) selectHAL() {
	if s.cfg.HardwareMode == "real" {
		s.gpio = halreal.NewGPIO(s.cfg.NoDevices)
		s.thermo = halreal.NewThermometer()
		s.cpu = halreal.NewCPUTemp()
		s.reach = halreal.NewReachability(s.cfg.PingTarget)
		s.modules = halreal.NewModuleLoader()
		return
	}

	simCfg := simulation.DefaultConfig()
	if s.cfg.Simulation.Thermal.Alpha != 0 {
		simCfg.Alpha = s.cfg.Simulation.Thermal.Alpha
	}
	if s.cfg.Simulation.Thermal.Beta != 0 {
		simCfg.Beta = s.cfg.Simulation.Thermal.Beta
	}
	if s.cfg.Simulation.Thermal.InitialPoolTemp != 0 {
		simCfg.InitialPoolTemp = s.cfg.Simulation.Thermal.InitialPoolTemp
	}
	if s.cfg.Simulation.Thermal.InitialAmbient != 0 {
		simCfg.InitialAmbient = s.cfg.Simulation.Thermal.InitialAmbient
	}
	if s.cfg.Simulation.Thermal.HeaterOutputTemp != 0 {
		simCfg.HeaterOutputTemp = s.cfg.Simulation.Thermal.HeaterOutputTemp
	}
	simCfg.TimeMultiplier = s.cfg.Simulation.TimeMultiplier

	s.sim = simulation.New(simCfg)
	s.gpio = halsim.NewGPIO()
	s.thermo = halsim.NewThermometer(s.sim)
	s.cpu = halsim.NewCPUTemp()
	s.reach = halsim.NewReachability()
	s.modules = halsim.NewModuleLoader()
}

func (s *Supervisor) sensorDevicePaths() (in, out, ambient string) {
	if s.cfg.HardwareMode == "real" {
		return s.cfg.TempSensors.InToHeater.Device, s.cfg.TempSensors.OutFromHeater.Device, s.cfg.TempSensors.Ambient.Device
	}
	return "in_to_heater", "out_from_heater", "temp_ambient"
}

// fanoutSink broadcasts one event to every wired sink; used so the log
// store and the notification watcher both see every event without the
// actuator layer knowing either exists.
type fanoutSink struct {
	sinks []actuatorEventSink
}

type actuatorEventSink interface {
	Event(e model.Event)
}

func (f fanoutSink) Event(e model.Event) {
	for _, sink := range f.sinks {
		sink.Event(e)
	}
}

func (s *Supervisor) buildEventSink() fanoutSink {
	sinks := []actuatorEventSink{s.logStore}
	if s.cfg.NtfyTopic != "" {
		sinks = append(sinks, notifications.NewWatch(notifications.New(s.cfg.NtfyTopic)))
	}
	return fanoutSink{sinks: sinks}
}

// registerTopics wires the MQTT topic table (step 8: build automations,
// pinger, message bus, watchdog; register handlers; connect and
// subscribe — connect/subscribe happen in New after this call).
func (s *Supervisor) registerTopics() {
	s.bus.Subscribe("pipool/control/pump_on", func([]byte) { s.pump.On() })
	s.bus.Subscribe("pipool/control/pump_off", func([]byte) { s.pump.Off() })
	s.bus.Subscribe("pipool/control/pump_state", func(payload []byte) {
		if model.OnOff(payload) == model.StateOn {
			s.pump.On()
		} else {
			s.pump.Off()
		}
	})
	s.bus.Subscribe("pipool/control/light_state", func(payload []byte) {
		if model.OnOff(payload) == model.StateOn {
			s.light.On()
		} else {
			s.light.Off()
		}
	})
	s.bus.Subscribe("pipool/control/light_set_color", func(payload []byte) {
		var id int
		if err := json.Unmarshal(payload, &id); err != nil {
			log.Error().Err(err).Msg("supervisor: bad light_set_color payload")
			return
		}
		s.colorDriver.Set(id)
	})
	s.bus.Subscribe("pipool/control/heater_state", func(payload []byte) {
		if model.OnOff(payload) == model.StateOn {
			s.heater.On()
		} else {
			s.heater.Off()
		}
	})
	s.bus.Subscribe("pipool/control/heater_reach_and_stop", func(payload []byte) {
		s.automations.HeatToTarget(payload)
	})
	s.bus.Subscribe("pipool/control/pump_run_for_x_minutes", func(payload []byte) {
		s.automations.PumpForMinutes(payload)
	})

	if s.cfg.HardwareMode != "real" {
		s.bus.Subscribe("pipool/simulation/set_pool_temp", func(payload []byte) {
			if v, ok := parseFloat(payload); ok {
				s.sim.SetPoolTemp(v)
			}
		})
		s.bus.Subscribe("pipool/simulation/set_ambient_temp", func(payload []byte) {
			if v, ok := parseFloat(payload); ok {
				s.sim.SetAmbientTemp(v)
			}
		})
		s.bus.Subscribe("pipool/simulation/set_time_multiplier", func(payload []byte) {
			if v, ok := parseFloat(payload); ok {
				s.sim.SetTimeMultiplier(v)
			}
		})
	}
}

func parseFloat(payload []byte) (float64, bool) {
	var v float64
	if err := json.Unmarshal(payload, &v); err != nil {
		log.Error().Err(err).Msg("supervisor: bad numeric payload")
		return 0, false
	}
	return v, true
}

// ServeMetrics starts the Prometheus /metrics endpoint on addr. Intended
// to be run in its own goroutine by the caller.
func (s *Supervisor) ServeMetrics(addr string) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(metrics.NewCollector(s.snapshot))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(addr, mux)
}

// Run installs the signal handlers and runs the tick loop until a
// shutdown signal arrives. The shutdown sequence ends by calling
// ExitFunc(0), so with the default ExitFunc Run does not return.
func (s *Supervisor) Run() {
	signal.Notify(s.signals, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.loop()
	}()

	sig := <-s.signals
	s.shutdown(sig.String())
}

// loop runs the per-tick body until shutdown is triggered; a fatal
// exception anywhere in the body emergency-stops the movable parts,
// logs, sleeps 5s, and retries rather than crashing the process.
func (s *Supervisor) loop() {
	for {
		select {
		case <-s.signals:
			return
		default:
		}

		if !s.tickSafely() {
			s.pump.HardStop()
			s.heater.HardStop()
			s.colorDriver.HardStop()
			time.Sleep(5 * time.Second)
			continue
		}

		time.Sleep(tickInterval)
	}
}

// tickSafely runs one tick body and reports whether it completed
// without a panic.
func (s *Supervisor) tickSafely() (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("supervisor: fatal tick exception")
			ok = false
		}
	}()
	s.tick()
	return true
}

func (s *Supervisor) tick() {
	if s.sim != nil {
		s.sim.Advance(tickInterval)
	}

	reading := s.sensors.Read()

	s.heater.SetInputTemp(reading.InToHeater, reading.InToHeaterValid)
	s.heater.SetOutputTemp(reading.OutFromHeater)

	s.heater.RunOneTick()
	s.pump.RunOneTick()

	s.watch.Check()

	s.publishTelemetry(reading)

	now := time.Now()
	s.sensors.PersistThrottled(reading, now)

	s.snapshot.SetTemps(reading.InToHeater, reading.OutFromHeater, reading.Ambient, reading.CPU)
	s.snapshot.SetStates(s.pump.IsOn(), s.heater.IsOn(), s.light.IsOn())
	s.snapshot.SetRuntimes(s.pump.Elapsed().Seconds(), s.heater.Elapsed().Seconds())
}

func (s *Supervisor) publishTelemetry(reading interface{ Telemetry() map[string]any }) {
	if err := s.bus.Publish("pipool/status", []byte("Online")); err != nil {
		log.Debug().Err(err).Msg("supervisor: heartbeat publish failed")
	}

	payload := reading.Telemetry()
	payload["pump_on"] = s.pump.IsOn()
	payload["heater_on"] = s.heater.IsOn()
	payload["light_on"] = s.light.IsOn()

	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("supervisor: failed to marshal telemetry")
		return
	}
	if err := s.bus.Publish("pipool/sensors", body); err != nil {
		log.Debug().Err(err).Msg("supervisor: telemetry publish failed")
	}
}

// shutdown runs the documented ordered sequence exactly once. A second
// signal arriving while this runs forces an immediate exit(1).
func (s *Supervisor) shutdown(signalName string) {
	go func() {
		if sig, ok := <-s.signals; ok {
			log.Warn().Str("signal", sig.String()).Msg("supervisor: second signal received, forcing exit")
			ExitFunc(1)
		}
	}()

	s.shutdownOnce.Do(func() {
		s.runShutdownSequence(signalName)
	})
}

func (s *Supervisor) runShutdownSequence(signalName string) {
	safely := func(step string, fn func()) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("step", step).Msg("supervisor: shutdown step failed")
			}
		}()
		fn()
	}

	safely("heater.hard_stop", s.heater.HardStop)
	safely("pump.hard_stop", s.pump.HardStop)
	safely("light.off", s.light.Off)
	safely("color_driver.stop", s.colorDriver.Stop)
	safely("pinger.stop", s.ping.Stop)
	safely("bus.stop", s.bus.Stop)
	safely("gpio.cleanup", s.relayBoard.Cleanup)

	safely("emit shutdown event", func() {
		s.events.Event(model.Event{Name: "system_shutdown", Payload: map[string]any{"signal": signalName}, Timestamp: time.Now()})
	})

	ExitFunc(0)
}
