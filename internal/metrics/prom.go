// Package metrics exposes the controller's live state as Prometheus
// metrics, grounded on the thermia_exporter pack repo's collector
// pattern: a fixed set of prometheus.Desc descriptors built once, and a
// Collector whose Collect reads current values from an in-memory
// snapshot rather than scraping anything remote.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Snapshot holds the latest known value for every exported gauge.
// SupervisorLoop updates it once per tick; Collect reads it under lock.
type Snapshot struct {
	mu sync.RWMutex

	poolWaterTempC   float64
	heaterOutputTempC float64
	ambientTempC     float64
	cpuTempC         float64

	pumpOn   bool
	heaterOn bool
	lightOn  bool

	pumpRuntimeSeconds   float64
	heaterRuntimeSeconds float64
}

func NewSnapshot() *Snapshot { return &Snapshot{} }

func (s *Snapshot) SetTemps(poolWater, heaterOutput, ambient, cpu float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poolWaterTempC = poolWater
	s.heaterOutputTempC = heaterOutput
	s.ambientTempC = ambient
	s.cpuTempC = cpu
}

func (s *Snapshot) SetStates(pumpOn, heaterOn, lightOn bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pumpOn = pumpOn
	s.heaterOn = heaterOn
	s.lightOn = lightOn
}

func (s *Snapshot) SetRuntimes(pumpSeconds, heaterSeconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pumpRuntimeSeconds = pumpSeconds
	s.heaterRuntimeSeconds = heaterSeconds
}

func (s *Snapshot) read() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		poolWaterTempC:       s.poolWaterTempC,
		heaterOutputTempC:    s.heaterOutputTempC,
		ambientTempC:         s.ambientTempC,
		cpuTempC:             s.cpuTempC,
		pumpOn:               s.pumpOn,
		heaterOn:             s.heaterOn,
		lightOn:              s.lightOn,
		pumpRuntimeSeconds:   s.pumpRuntimeSeconds,
		heaterRuntimeSeconds: s.heaterRuntimeSeconds,
	}
}

// Collector adapts a Snapshot into a prometheus.Collector.
type Collector struct {
	snapshot *Snapshot

	poolWaterTemp   *prometheus.Desc
	heaterOutputTemp *prometheus.Desc
	ambientTemp     *prometheus.Desc
	cpuTemp         *prometheus.Desc
	pumpState       *prometheus.Desc
	heaterState     *prometheus.Desc
	lightState      *prometheus.Desc
	pumpRuntime     *prometheus.Desc
	heaterRuntime   *prometheus.Desc
}

func NewCollector(snapshot *Snapshot) *Collector {
	return &Collector{
		snapshot: snapshot,
		poolWaterTemp: prometheus.NewDesc(
			"pipool_water_temperature_celsius", "Pool water temperature at the heater inlet", nil, nil),
		heaterOutputTemp: prometheus.NewDesc(
			"pipool_heater_output_temperature_celsius", "Water temperature at the heater outlet", nil, nil),
		ambientTemp: prometheus.NewDesc(
			"pipool_ambient_temperature_celsius", "Ambient air temperature", nil, nil),
		cpuTemp: prometheus.NewDesc(
			"pipool_cpu_temperature_celsius", "Controller SoC temperature", nil, nil),
		pumpState: prometheus.NewDesc(
			"pipool_pump_on", "Pump relay state (1=on)", nil, nil),
		heaterState: prometheus.NewDesc(
			"pipool_heater_on", "Heater relay state (1=on)", nil, nil),
		lightState: prometheus.NewDesc(
			"pipool_light_on", "Light relay state (1=on)", nil, nil),
		pumpRuntime: prometheus.NewDesc(
			"pipool_pump_runtime_seconds", "Elapsed seconds of the current pump on-cycle", nil, nil),
		heaterRuntime: prometheus.NewDesc(
			"pipool_heater_runtime_seconds", "Elapsed seconds of the current heater on-cycle", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.poolWaterTemp
	ch <- c.heaterOutputTemp
	ch <- c.ambientTemp
	ch <- c.cpuTemp
	ch <- c.pumpState
	ch <- c.heaterState
	ch <- c.lightState
	ch <- c.pumpRuntime
	ch <- c.heaterRuntime
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.snapshot.read()

	ch <- prometheus.MustNewConstMetric(c.poolWaterTemp, prometheus.GaugeValue, s.poolWaterTempC)
	ch <- prometheus.MustNewConstMetric(c.heaterOutputTemp, prometheus.GaugeValue, s.heaterOutputTempC)
	ch <- prometheus.MustNewConstMetric(c.ambientTemp, prometheus.GaugeValue, s.ambientTempC)
	ch <- prometheus.MustNewConstMetric(c.cpuTemp, prometheus.GaugeValue, s.cpuTempC)
	ch <- prometheus.MustNewConstMetric(c.pumpState, prometheus.GaugeValue, boolToFloat(s.pumpOn))
	ch <- prometheus.MustNewConstMetric(c.heaterState, prometheus.GaugeValue, boolToFloat(s.heaterOn))
	ch <- prometheus.MustNewConstMetric(c.lightState, prometheus.GaugeValue, boolToFloat(s.lightOn))
	ch <- prometheus.MustNewConstMetric(c.pumpRuntime, prometheus.GaugeValue, s.pumpRuntimeSeconds)
	ch <- prometheus.MustNewConstMetric(c.heaterRuntime, prometheus.GaugeValue, s.heaterRuntimeSeconds)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
