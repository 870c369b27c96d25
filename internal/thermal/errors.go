package thermal

import "github.com/okkern/thermactl/internal/errors"

const (
	// Sensor fusion errors
	ErrCPUReadFailed   = errors.ErrorCode("thermal_cpu_read_failed")
	ErrInvalidSample   = errors.ErrorCode("thermal_invalid_sample")
	ErrAllSourcesStale = errors.ErrorCode("thermal_all_sources_unavailable")

	// Configuration errors
	ErrInvalidBands     = errors.ErrorCode("thermal_invalid_bands")
	ErrInvalidThreshold = errors.ErrorCode("thermal_invalid_trend_threshold")
	ErrInvalidCapacity  = errors.ErrorCode("thermal_invalid_history_capacity")
)

var errFactory = errors.New()
