package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okkern/thermactl/internal/config"
	"github.com/okkern/thermactl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "config_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	configPath := filepath.Join(tempDir, "thermactl.toml")
	err = os.WriteFile(configPath, []byte(content), 0o600)
	require.NoError(t, err)

	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfigFile(t, `
poll_interval_ms = 500
history_capacity = 10
trend_threshold_c = 1.5
workload_threads = 6
monitor = false
log_level = "debug"
telemetry = true
telemetry_db = "/path/to/telemetry.db"

[bands]
warm = 30.0
hot = 38.0
critical = 44.0
emergency = 48.0

[sensor]
provider = "gopsutil"
sensor_keys = ["coretemp", "k10temp"]
battery = false

[mqtt]
broker = "tcp://localhost:1883"
topic = "home/office/temperature"
`)

	// Point the loader at the test config file via the environment
	t.Setenv("THERMACTL_CONFIG", configPath)

	cfg, err := config.Load(config.WithArgs(nil))
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.PollIntervalMS, "Expected PollIntervalMS 500")
	assert.Equal(t, 10, cfg.HistoryCapacity, "Expected HistoryCapacity 10")
	assert.InDelta(t, 1.5, cfg.TrendThreshold, 0.0001, "Expected TrendThreshold 1.5")
	assert.Equal(t, 6, cfg.WorkloadThreads, "Expected WorkloadThreads 6")
	assert.False(t, cfg.Monitor, "Expected Monitor false")
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel debug")
	assert.True(t, cfg.Telemetry, "Expected Telemetry true")
	assert.Equal(t, "/path/to/telemetry.db", cfg.TelemetryDB, "Expected TelemetryDB /path/to/telemetry.db")
	assert.InDelta(t, 30.0, cfg.Bands.Warm, 0.0001, "Expected Warm band 30")
	assert.InDelta(t, 48.0, cfg.Bands.Emergency, 0.0001, "Expected Emergency band 48")
	assert.Equal(t, "gopsutil", cfg.Sensor.Provider, "Expected gopsutil provider")
	assert.Equal(t, []string{"coretemp", "k10temp"}, cfg.Sensor.SensorKeys)
	assert.False(t, cfg.Sensor.Battery, "Expected battery bridge disabled")
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, "home/office/temperature", cfg.MQTT.Topic)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval(), "Expected a 500ms poll interval")
}

func TestLoadDefaults(t *testing.T) {
	// Ensure no config file is used
	t.Setenv("THERMACTL_CONFIG", "")

	cfg, err := config.Load(config.WithArgs(nil))
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, 2000, cfg.PollIntervalMS, "Expected default PollIntervalMS 2000")
	assert.Equal(t, 20, cfg.HistoryCapacity, "Expected default HistoryCapacity 20")
	assert.InDelta(t, 2.0, cfg.TrendThreshold, 0.0001, "Expected default TrendThreshold 2.0")
	assert.GreaterOrEqual(t, cfg.WorkloadThreads, 1, "Expected at least one workload thread")
	assert.False(t, cfg.Monitor, "Expected default Monitor false")
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel, "Expected default LogLevel info")
	assert.False(t, cfg.Telemetry, "Expected default Telemetry false")
	assert.Equal(t, config.DefaultTelemetryDB, cfg.TelemetryDB)
	assert.InDelta(t, 35.0, cfg.Bands.Warm, 0.0001, "Expected default Warm band 35")
	assert.InDelta(t, 40.0, cfg.Bands.Hot, 0.0001, "Expected default Hot band 40")
	assert.InDelta(t, 45.0, cfg.Bands.Critical, 0.0001, "Expected default Critical band 45")
	assert.InDelta(t, 50.0, cfg.Bands.Emergency, 0.0001, "Expected default Emergency band 50")
	assert.Equal(t, "sysfs", cfg.Sensor.Provider, "Expected default sysfs provider")
	assert.True(t, cfg.Sensor.Battery, "Expected battery bridge enabled by default")
	assert.Empty(t, cfg.MQTT.Broker, "Expected ambient subscriber disabled by default")
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	configPath := writeConfigFile(t, `
This is not a valid TOML file
`)

	t.Setenv("THERMACTL_CONFIG", configPath)

	_, err := config.Load(config.WithArgs(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read configuration")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Setenv("THERMACTL_CONFIG", "")

	_, err := config.Load(
		config.WithConfigFile("/nonexistent/thermactl.toml"),
		config.WithArgs(nil),
	)
	require.Error(t, err, "an explicitly named file must exist")
	assert.True(t, errors.IsCode(err, errors.ErrReadConfig))
}

func TestInvalidLogLevel(t *testing.T) {
	configPath := writeConfigFile(t, `
log_level = "invalid"
`)

	t.Setenv("THERMACTL_CONFIG", configPath)

	_, err := config.Load(config.WithArgs(nil))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrInvalidLogLevel))
}

func TestInvalidBandOrdering(t *testing.T) {
	configPath := writeConfigFile(t, `
[bands]
warm = 40.0
hot = 35.0
critical = 45.0
emergency = 50.0
`)

	t.Setenv("THERMACTL_CONFIG", configPath)

	_, err := config.Load(config.WithArgs(nil))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrInvalidBands))
}

func TestLogLevelFlag(t *testing.T) {
	t.Setenv("THERMACTL_CONFIG", "")

	cfg, err := config.Load(config.WithArgs([]string{"--log-level", "debug"}))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
}

func TestFlagsOverrideFile(t *testing.T) {
	configPath := writeConfigFile(t, `
log_level = "error"
monitor = false
workload_threads = 2
`)

	t.Setenv("THERMACTL_CONFIG", configPath)

	cfg, err := config.Load(config.WithArgs([]string{"--log-level", "debug", "--monitor", "--threads", "8"}))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel, "Expected flag to win over file")
	assert.True(t, cfg.Monitor, "Expected flag to win over file")
	assert.Equal(t, 8, cfg.WorkloadThreads, "Expected flag to win over file")
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			PollIntervalMS:  2000,
			HistoryCapacity: 20,
			TrendThreshold:  2.0,
			WorkloadThreads: 4,
			LogLevel:        "info",
			Bands:           config.Bands{Warm: 35, Hot: 40, Critical: 45, Emergency: 50},
			Sensor:          config.Sensor{Provider: "sysfs", Battery: true, BatteryIntervalMS: 10000},
		}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.PollIntervalMS = 0
	assert.True(t, errors.IsCode(cfg.Validate(), errors.ErrInvalidInterval))

	cfg = valid()
	cfg.HistoryCapacity = 4
	assert.True(t, errors.IsCode(cfg.Validate(), errors.ErrInvalidConfig), "history window too small for a trend")

	cfg = valid()
	cfg.TrendThreshold = -1
	assert.True(t, errors.IsCode(cfg.Validate(), errors.ErrInvalidConfig))

	cfg = valid()
	cfg.Sensor.Provider = "acpi"
	assert.True(t, errors.IsCode(cfg.Validate(), errors.ErrInvalidConfig))

	cfg = valid()
	cfg.Telemetry = true
	cfg.TelemetryDB = ""
	assert.True(t, errors.IsCode(cfg.Validate(), errors.ErrMissingConfig))

	cfg = valid()
	cfg.MQTT.Broker = "tcp://localhost:1883"
	cfg.MQTT.Topic = ""
	assert.True(t, errors.IsCode(cfg.Validate(), errors.ErrMissingConfig))
}
