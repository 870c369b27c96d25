package telemetry

import "time"

const (
	defaultDirPerm = 0o755
	defaultDBPath  = "/var/lib/thermactl/telemetry.db"

	defaultBatchSize     = 30
	defaultFlushInterval = time.Minute
)

type Config struct {
	DBPath        string
	BatchSize     int
	FlushInterval time.Duration
	Enabled       bool
}

func DefaultConfig() Config {
	return Config{
		DBPath:        defaultDBPath,
		BatchSize:     defaultBatchSize,
		FlushInterval: defaultFlushInterval,
		Enabled:       false,
	}
}

func (c Config) Validate() error {
	// Only validate storage settings when telemetry is enabled
	if !c.Enabled {
		return nil
	}

	if c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}

	if c.BatchSize < 1 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Value int
		}{"BatchSize", c.BatchSize})
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
