package real

import (
	"os"
	"strconv"
	"strings"
)

const cpuTempPath = "/sys/class/thermal/thermal_zone0/temp"

// CPUTemp reads the SoC's own thermal zone, reported in milli-Celsius by
// the kernel.
type CPUTemp struct{}

func NewCPUTemp() *CPUTemp { return &CPUTemp{} }

func (c *CPUTemp) ReadCelsius() (float64, bool) {
	data, err := os.ReadFile(cpuTempPath)
	if err != nil {
		return 0, false
	}
	milliC, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, false
	}
	tempC := float64(milliC) / 1000.0
	return tempC, true
}
