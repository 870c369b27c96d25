package sensor

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/okkern/thermactl/internal/errors"
)

// DefaultCPUPaths lists the common locations CPU thermal zones show up at.
// The first readable path wins.
var DefaultCPUPaths = []string{
	"/sys/class/thermal/thermal_zone0/temp",
	"/sys/class/thermal/thermal_zone1/temp",
	"/sys/devices/system/cpu/cpu0/cpufreq/cpu_temp",
	"/sys/devices/system/cpu/cpufreq/cpu_temp",
	"/sys/class/hwmon/hwmon0/temp1_input",
}

// SysfsCPUSensor reads the CPU temperature from sysfs thermal zone files
type SysfsCPUSensor struct {
	paths []string
}

func NewSysfsCPUSensor(paths []string) *SysfsCPUSensor {
	if len(paths) == 0 {
		paths = DefaultCPUPaths
	}

	return &SysfsCPUSensor{paths: paths}
}

func (s *SysfsCPUSensor) ReadTemperature(_ context.Context) (float64, error) {
	for _, path := range s.paths {
		celsius, err := readTemperatureFile(path)
		if err != nil {
			continue
		}

		return celsius, nil
	}

	return 0, errFactory.WithData(errors.ErrSensorUnavailable, s.paths)
}

func readTemperatureFile(path string) (float64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrSensorRead, err)
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrSensorRead, err)
	}

	// Most zone files report millidegrees, some report plain degrees
	if value > 1000 {
		value /= 1000
	}

	return value, nil
}
