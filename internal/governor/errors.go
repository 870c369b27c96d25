package governor

import "github.com/okkern/thermactl/internal/errors"

const (
	ErrInvalidConfig   = errors.ErrorCode("governor_invalid_config")
	ErrInvalidBaseline = errors.ErrorCode("governor_invalid_baseline")
	ErrDispatchFailed  = errors.ErrorCode("governor_dispatch_failed")
	ErrStopped         = errors.ErrorCode("governor_stopped")
)

var errFactory = errors.New()
