package governor

import (
	"github.com/okkern/thermactl/internal/logger"
	"github.com/rs/zerolog"
)

// LogController is a WorkerPoolController that records directives in the
// log instead of delivering them anywhere. It backs the standalone daemon,
// where the real pool lives in another process, and doubles as the monitor
// mode sink.
type LogController struct {
	log zerolog.Logger
}

func NewLogController() *LogController {
	return &LogController{log: logger.WithComponent("worker_pool")}
}

func (c *LogController) SetThreadCount(n int, reason string) error {
	c.log.Info().Int("threads", n).Str("reason", reason).Msg("Directive: set thread count")
	return nil
}

func (c *LogController) Pause(reason string) error {
	c.log.Warn().Str("reason", reason).Msg("Directive: pause")
	return nil
}

func (c *LogController) Resume(reason string) error {
	c.log.Info().Str("reason", reason).Msg("Directive: resume")
	return nil
}
