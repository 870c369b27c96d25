package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrMissingConfig   ErrorCode = "missing_configuration"
	ErrBindFlags       ErrorCode = "bind_flags_failed"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"
	ErrInvalidBands    ErrorCode = "invalid_band_boundaries"
	ErrWatchConfig     ErrorCode = "watch_config_failed"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Application errors
	ErrAlreadyRunning ErrorCode = "daemon_already_running"

	// Sensor errors
	ErrSensorInit        ErrorCode = "sensor_init_failed"
	ErrSensorRead        ErrorCode = "sensor_read_failed"
	ErrSensorUnavailable ErrorCode = "sensor_unavailable"

	// Operation errors
	ErrOperationFailed ErrorCode = "operation_failed"
	ErrTimeout         ErrorCode = "operation_timeout"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrUnavailable:       "Service unavailable",
	ErrInvalidConfig:     "Invalid configuration",
	ErrMissingConfig:     "Missing configuration",
	ErrBindFlags:         "Failed to bind flags",
	ErrReadConfig:        "Failed to read configuration",
	ErrInvalidInterval:   "Invalid interval value",
	ErrInvalidBands:      "Thermal band boundaries are not strictly increasing",
	ErrWatchConfig:       "Failed to watch configuration file",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrAlreadyRunning:    "Daemon is already running",
	ErrSensorInit:        "Failed to initialize sensor",
	ErrSensorRead:        "Failed to read sensor",
	ErrSensorUnavailable: "Sensor not available on this system",
	ErrOperationFailed:   "Operation failed",
	ErrTimeout:           "Operation timed out",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
