package sensor

import (
	"context"

	"github.com/okkern/thermactl/internal/errors"
	"github.com/shirou/gopsutil/v3/host"
)

// GopsutilCPUSensor reads CPU temperatures through gopsutil's host sensors,
// which cover lm-sensors and platforms where raw thermal zones are absent
type GopsutilCPUSensor struct {
	includeKeys []string
}

// NewGopsutilCPUSensor creates a sensor restricted to the given sensor keys.
// An empty list accepts every reported sensor.
func NewGopsutilCPUSensor(includeKeys []string) *GopsutilCPUSensor {
	return &GopsutilCPUSensor{includeKeys: includeKeys}
}

func (s *GopsutilCPUSensor) ReadTemperature(ctx context.Context) (float64, error) {
	temps, err := host.SensorsTemperaturesWithContext(ctx)
	if err != nil && len(temps) == 0 {
		return 0, errFactory.Wrap(errors.ErrSensorRead, err)
	}

	// The hottest plausible sensor wins, matching the governor's
	// worst-case fusion
	hottest := 0.0
	found := false
	for _, temp := range temps {
		if len(s.includeKeys) > 0 && !s.shouldInclude(temp.SensorKey) {
			continue
		}
		// Skip sensors with zero or implausible readings
		if temp.Temperature <= 0 || temp.Temperature > 200 {
			continue
		}
		if !found || temp.Temperature > hottest {
			hottest = temp.Temperature
			found = true
		}
	}

	if !found {
		return 0, errFactory.WithData(errors.ErrSensorUnavailable, s.includeKeys)
	}

	return hottest, nil
}

func (s *GopsutilCPUSensor) shouldInclude(sensorKey string) bool {
	for _, key := range s.includeKeys {
		if key == sensorKey {
			return true
		}
	}

	return false
}
