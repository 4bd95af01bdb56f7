// Package config loads the controller's JSON configuration, grounded on
// the teacher's internal/config: flag + JSON decode, a reflect-based
// conflict validator generalized from GPIO pins to relay ports, and a
// config_custom.json override layer this spec adds on top of the
// teacher's single config.json.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/rs/zerolog"
)

type SensorConfig struct {
	Name   string `json:"name"`
	Device string `json:"device"`
}

type TempSensors struct {
	InToHeater    SensorConfig `json:"in_to_heater"`
	OutFromHeater SensorConfig `json:"out_from_heater"`
	Ambient       SensorConfig `json:"temp_ambient"`
}

// Ports holds the logical relay port assignments; validated for
// range and uniqueness the way the teacher validates GPIO pin fields.
type Ports struct {
	Pump      int `json:"pumpPort"`
	Heater    int `json:"heaterPort"`
	Light     int `json:"lightPort"`
	PumpSpeedS1 int `json:"pumpSpeedS1Port"`
	PumpSpeedS2 int `json:"pumpSpeedS2Port"`
	PumpSpeedS3 int `json:"pumpSpeedS3Port"`
	PumpSpeedS4 int `json:"pumpSpeedS4Port"`
}

type ThermalSimConfig struct {
	Alpha            float64 `json:"alpha"`
	Beta             float64 `json:"beta"`
	InitialPoolTemp  float64 `json:"initialPoolTempC"`
	InitialAmbient   float64 `json:"initialAmbientC"`
	HeaterOutputTemp float64 `json:"heaterOutputTempC"`
}

type SimulationConfig struct {
	TimeMultiplier float64          `json:"time_multiplier"`
	Thermal        ThermalSimConfig `json:"thermal"`
}

type Config struct {
	ConfigFile string
	LogLevel   zerolog.Level

	TempSensors TempSensors `json:"tempSensors"`
	Ports                   // embedded anonymously so its fields decode at the top level

	MaxWaterTemp            int `json:"maxWaterTemp"`
	MaxHeaterRuntimeSeconds int `json:"maxHeaterRuntimeSeconds"`

	PingTarget string `json:"pingTarget"`
	MQTTBroker string `json:"mqttBroker"`

	DBName     string `json:"dbName"`
	DBUser     string `json:"dbUser"`
	DBPassword string `json:"dbPassword"`
	DBHost     string `json:"dbHost"`
	DBPath     string `json:"dbPath"`

	HardwareMode string `json:"hardwareMode"`
	NoDevices    bool

	Simulation SimulationConfig `json:"simulation"`

	NtfyTopic     string `json:"ntfyTopic"`
	DDAgentAddr   string `json:"ddAgentAddr"`
	DDNamespace   string `json:"ddNamespace"`
	PrometheusAddr string `json:"prometheusAddr"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to controller config file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	decodeInto(&cfg, cfg.ConfigFile)

	customPath := customConfigPath(cfg.ConfigFile)
	if _, err := os.Stat(customPath); err == nil {
		decodeInto(&cfg, customPath)
	}

	if cfg.MaxHeaterRuntimeSeconds == 0 {
		cfg.MaxHeaterRuntimeSeconds = 14400
	}
	if cfg.Simulation.TimeMultiplier == 0 {
		cfg.Simulation.TimeMultiplier = 1
	}

	if mode := os.Getenv("PIPOOL_HARDWARE_MODE"); mode != "" {
		cfg.HardwareMode = mode
	}
	if cfg.HardwareMode == "" {
		cfg.HardwareMode = "simulated"
	}
	if os.Getenv("NO_DEVICES") != "" {
		cfg.NoDevices = true
	}

	cfg.validate()
	return cfg
}

func customConfigPath(base string) string {
	dir := "."
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		dir = base[:idx]
	}
	return dir + "/config_custom.json"
}

func decodeInto(cfg *Config, path string) {
	file, err := os.Open(path)
	if err != nil {
		panic("config: failed to load " + path + ": " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		panic("config: failed to parse " + path + ": " + err.Error())
	}
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) validate() {
	var missingFields []string
	usedPorts := map[int]string{}
	var conflicts []string

	v := reflect.ValueOf(cfg.Ports)
	t := reflect.TypeOf(cfg.Ports)

	for i := 0; i < v.NumField(); i++ {
		fieldName := t.Field(i).Tag.Get("json")
		port := int(v.Field(i).Int())

		if port < 1 || port > 8 {
			missingFields = append(missingFields, fmt.Sprintf("%s (got %d, want 1..8)", fieldName, port))
			continue
		}
		if other, exists := usedPorts[port]; exists {
			conflicts = append(conflicts, fmt.Sprintf("%s and %s both use port %d", fieldName, other, port))
		} else {
			usedPorts[port] = fieldName
		}
	}

	if len(missingFields) > 0 {
		panic("config: invalid relay ports: " + strings.Join(missingFields, ", "))
	}
	if len(conflicts) > 0 {
		panic("config: conflicting relay ports: " + strings.Join(conflicts, ", "))
	}

	if cfg.MQTTBroker == "" {
		panic("config: mqttBroker is required")
	}

	if cfg.MaxWaterTemp != 0 && (cfg.MaxWaterTemp < 20 || cfg.MaxWaterTemp > 45) {
		fmt.Fprintf(os.Stderr, "config: warning: maxWaterTemp %d is outside the expected 20..45 range\n", cfg.MaxWaterTemp)
	}
}
