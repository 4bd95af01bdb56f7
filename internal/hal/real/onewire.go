package real

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Thermometer reads a 1-Wire w1_slave file, retrying on I/O or parse
// errors. Only a "YES" crc line on the first line is trusted; on
// exhausted retries the reading is reported invalid rather than zero.
type Thermometer struct {
	Retries int
	Delay   time.Duration
}

func NewThermometer() *Thermometer {
	return &Thermometer{Retries: 10, Delay: 200 * time.Millisecond}
}

func (t *Thermometer) ReadCelsius(devicePath string) (float64, bool) {
	return t.readWithRetries(devicePath, t.Retries)
}

func (t *Thermometer) readWithRetries(devicePath string, remaining int) (float64, bool) {
	value, err := readW1Slave(devicePath)
	if err == nil {
		return value, true
	}
	if remaining <= 0 {
		log.Error().Err(err).Str("device", devicePath).Msg("exhausted 1-Wire read retries")
		return 0, false
	}
	time.Sleep(t.Delay)
	return t.readWithRetries(devicePath, remaining-1)
}

func readW1Slave(devicePath string) (float64, error) {
	data, err := os.ReadFile(filepath.Join(devicePath, "w1_slave"))
	if err != nil {
		return 0, err
	}

	lines := strings.Split(string(data), "\n")
	if len(lines) < 2 || !strings.Contains(lines[0], "YES") {
		return 0, errCRCMismatch
	}
	idx := strings.Index(lines[1], "t=")
	if idx < 0 {
		return 0, errMalformed
	}
	milliC, err := strconv.Atoi(lines[1][idx+2:])
	if err != nil {
		return 0, err
	}

	tempC := float64(milliC) / 1000.0
	return tempC, nil
}
