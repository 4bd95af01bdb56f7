// Package sensors reads the three named thermometers (pump inlet, heater
// outlet, ambient) and the CPU sensor each tick, and throttles how often
// readings reach the log store. Deliberately smaller than the teacher's
// internal/temperature anomaly-detection state machine (disable/recovery
// counters, per-zone delta thresholds): this controller's sensors are a
// thin telemetry source, not a failsafe authority — that role belongs to
// the heater's own stale/out-of-range checks and the watchdog.
package sensors

import (
	"sync"
	"time"

	"github.com/mjpetersen/pipool-controller/internal/model"
)

type Thermometer interface {
	ReadCelsius(devicePath string) (float64, bool)
}

type CPUTemp interface {
	ReadCelsius() (float64, bool)
}

// Recorder persists sensor samples; internal/store.Store implements it.
type Recorder interface {
	Sensor(r model.SensorReading)
}

// Reading is one tick's worth of sensor samples. A false Valid means the
// underlying read failed (1-Wire CRC/timeout, missing device) and callers
// must treat the value as absent, not zero.
type Reading struct {
	InToHeater      float64
	InToHeaterValid bool

	OutFromHeater      float64
	OutFromHeaterValid bool

	Ambient      float64
	AmbientValid bool

	CPU      float64
	CPUValid bool
}

const defaultThrottle = 5 * time.Minute

// Service wraps the three thermometer device paths and the CPU sensor,
// and throttles persistence so a 1 Hz tick doesn't write a row per second
// per sensor.
type Service struct {
	inToHeaterDevice    string
	outFromHeaterDevice string
	ambientDevice       string

	thermo   Thermometer
	cpu      CPUTemp
	recorder Recorder
	throttle time.Duration

	mu            sync.Mutex
	lastPersisted map[string]time.Time
}

func New(thermo Thermometer, cpu CPUTemp, recorder Recorder, inToHeaterDevice, outFromHeaterDevice, ambientDevice string) *Service {
	return &Service{
		inToHeaterDevice:    inToHeaterDevice,
		outFromHeaterDevice: outFromHeaterDevice,
		ambientDevice:       ambientDevice,
		thermo:              thermo,
		cpu:                 cpu,
		recorder:            recorder,
		throttle:            defaultThrottle,
		lastPersisted:       make(map[string]time.Time),
	}
}

// WithThrottle overrides the persistence throttle, used by tests.
func (s *Service) WithThrottle(d time.Duration) *Service {
	s.throttle = d
	return s
}

// Read samples all sensors once.
func (s *Service) Read() Reading {
	var r Reading
	r.InToHeater, r.InToHeaterValid = s.thermo.ReadCelsius(s.inToHeaterDevice)
	r.OutFromHeater, r.OutFromHeaterValid = s.thermo.ReadCelsius(s.outFromHeaterDevice)
	r.Ambient, r.AmbientValid = s.thermo.ReadCelsius(s.ambientDevice)
	r.CPU, r.CPUValid = s.cpu.ReadCelsius()
	return r
}

// Telemetry renders a reading as a flat map suitable for broker publish.
func (r Reading) Telemetry() map[string]any {
	t := make(map[string]any)
	if r.InToHeaterValid {
		t["in_to_heater"] = r.InToHeater
	}
	if r.OutFromHeaterValid {
		t["out_from_heater"] = r.OutFromHeater
	}
	if r.AmbientValid {
		t["temp_ambient"] = r.Ambient
	}
	if r.CPUValid {
		t["cpu_temp"] = r.CPU
	}
	return t
}

// PersistThrottled records each valid sample whose sensor has not been
// persisted within the throttle window, at the given wall time.
func (s *Service) PersistThrottled(r Reading, now time.Time) {
	s.maybePersist("in_to_heater", r.InToHeater, r.InToHeaterValid, now)
	s.maybePersist("out_from_heater", r.OutFromHeater, r.OutFromHeaterValid, now)
	s.maybePersist("temp_ambient", r.Ambient, r.AmbientValid, now)
	s.maybePersist("cpu_temp", r.CPU, r.CPUValid, now)
}

func (s *Service) maybePersist(name string, value float64, valid bool, now time.Time) {
	if !valid {
		return
	}

	s.mu.Lock()
	last, seen := s.lastPersisted[name]
	due := !seen || now.Sub(last) >= s.throttle
	if due {
		s.lastPersisted[name] = now
	}
	s.mu.Unlock()

	if due {
		s.recorder.Sensor(model.SensorReading{Name: name, Value: value, Wall: now})
	}
}
