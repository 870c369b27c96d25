package sensor

import "github.com/okkern/thermactl/internal/errors"

const (
	ErrNoBatterySupply = errors.ErrorCode("sensor_no_battery_supply")
)

var errFactory = errors.New()
