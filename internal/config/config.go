package config

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/okkern/thermactl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultLogLevel    = "info"
	DefaultTelemetryDB = "/var/lib/thermactl/telemetry.db"

	configName      = "thermactl"
	configType      = "toml"
	configSearchDir = "/etc"
	configEnvVar    = "THERMACTL_CONFIG"
	envPrefix       = "THERMACTL"
)

var errFactory = errors.New()

// Config holds the complete daemon configuration after flags, environment
// and file sources have been merged
type Config struct {
	PollIntervalMS  int     `mapstructure:"poll_interval_ms"`
	HistoryCapacity int     `mapstructure:"history_capacity"`
	TrendThreshold  float64 `mapstructure:"trend_threshold_c"`
	WorkloadThreads int     `mapstructure:"workload_threads"`
	Monitor         bool    `mapstructure:"monitor"`
	LogLevel        string  `mapstructure:"log_level"`
	LogFile         string  `mapstructure:"log_file"`
	Telemetry       bool    `mapstructure:"telemetry"`
	TelemetryDB     string  `mapstructure:"telemetry_db"`
	Bands           Bands   `mapstructure:"bands"`
	Sensor          Sensor  `mapstructure:"sensor"`
	MQTT            MQTT    `mapstructure:"mqtt"`

	// Path is the configuration file that was actually read, empty when
	// the daemon runs on defaults alone
	Path string `mapstructure:"-"`
}

// Bands holds the thermal state boundaries in degrees Celsius
type Bands struct {
	Warm      float64 `mapstructure:"warm"`
	Hot       float64 `mapstructure:"hot"`
	Critical  float64 `mapstructure:"critical"`
	Emergency float64 `mapstructure:"emergency"`
}

// Sensor selects and parameterizes the temperature providers
type Sensor struct {
	Provider          string   `mapstructure:"provider"`
	CPUPaths          []string `mapstructure:"cpu_paths"`
	SensorKeys        []string `mapstructure:"sensor_keys"`
	Battery           bool     `mapstructure:"battery"`
	BatteryPath       string   `mapstructure:"battery_path"`
	BatteryIntervalMS int      `mapstructure:"battery_interval_ms"`
}

// MQTT configures the optional ambient temperature subscription
// An empty broker URL disables the subscriber
type MQTT struct {
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
}

func Load(opts ...Option) (*Config, error) {
	o := options{envPrefix: envPrefix, args: os.Args[1:]}
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return nil, err
		}
	}

	// Define flags on a private flag set so Load stays re-entrant
	fs := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	configFile := fs.String("config", "", "Path to configuration file")
	fs.String("log-level", "", "Log level (debug, info, warning, error)")
	fs.String("log-file", "", "Log to this file in addition to the console")
	fs.Bool("monitor", false, "Only monitor thermal state, do not govern a workload")
	fs.Bool("telemetry", false, "Record thermal snapshots and transitions to the telemetry database")
	fs.Int("threads", 0, "Baseline worker thread count (0 selects CPU count - 1)")

	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindFlags(v, fs)

	// Explicit file > --config flag > environment variable > /etc search
	path := o.configPath
	if path == "" {
		path = *configFile
	}
	if path == "" {
		path = os.Getenv(configEnvVar)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(configSearchDir)
	}

	if err := v.ReadInConfig(); err != nil {
		// Running without a file is fine when no explicit path was given
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, err)
	}
	config.Path = v.ConfigFileUsed()

	if config.WorkloadThreads <= 0 {
		config.WorkloadThreads = defaultWorkloadThreads()
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("poll_interval_ms", 2000)
	v.SetDefault("history_capacity", 20)
	v.SetDefault("trend_threshold_c", 2.0)
	v.SetDefault("workload_threads", 0)
	v.SetDefault("monitor", false)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", "")
	v.SetDefault("telemetry", false)
	v.SetDefault("telemetry_db", DefaultTelemetryDB)
	v.SetDefault("bands.warm", 35.0)
	v.SetDefault("bands.hot", 40.0)
	v.SetDefault("bands.critical", 45.0)
	v.SetDefault("bands.emergency", 50.0)
	v.SetDefault("sensor.provider", "sysfs")
	v.SetDefault("sensor.cpu_paths", []string{})
	v.SetDefault("sensor.sensor_keys", []string{})
	v.SetDefault("sensor.battery", true)
	v.SetDefault("sensor.battery_path", "")
	v.SetDefault("sensor.battery_interval_ms", 10000)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.topic", "thermactl/ambient")
	v.SetDefault("mqtt.client_id", "thermactl")
}

// Only explicitly set flags override file and environment values
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	bindings := map[string]string{
		"log_level":        "log-level",
		"log_file":         "log-file",
		"monitor":          "monitor",
		"telemetry":        "telemetry",
		"workload_threads": "threads",
	}
	for key, name := range bindings {
		if flag := fs.Lookup(name); flag != nil && flag.Changed {
			v.Set(key, flag.Value.String())
		}
	}
}

func defaultWorkloadThreads() int {
	threads := runtime.NumCPU() - 1
	if threads < 1 {
		threads = 1
	}

	return threads
}

// Validate checks the merged configuration for values the governor
// cannot run with
func (c *Config) Validate() error {
	if c.PollIntervalMS <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			Field string
			Value int
		}{"poll_interval_ms", c.PollIntervalMS})
	}

	if c.HistoryCapacity < 5 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{"history_capacity", c.HistoryCapacity})
	}

	if c.TrendThreshold <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value float64
		}{"trend_threshold_c", c.TrendThreshold})
	}

	if c.WorkloadThreads < 1 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value int
		}{"workload_threads", c.WorkloadThreads})
	}

	if err := c.Bands.Validate(); err != nil {
		return err
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	switch c.Sensor.Provider {
	case "sysfs", "gopsutil":
	default:
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value string
		}{"sensor.provider", c.Sensor.Provider})
	}

	if c.Sensor.Battery && c.Sensor.BatteryIntervalMS <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, struct {
			Field string
			Value int
		}{"sensor.battery_interval_ms", c.Sensor.BatteryIntervalMS})
	}

	if c.Telemetry && c.TelemetryDB == "" {
		return errFactory.WithData(errors.ErrMissingConfig, struct {
			Field string
		}{"telemetry_db"})
	}

	if c.MQTT.Broker != "" && c.MQTT.Topic == "" {
		return errFactory.WithData(errors.ErrMissingConfig, struct {
			Field string
		}{"mqtt.topic"})
	}

	return nil
}

// Validate checks that the band boundaries are strictly increasing
func (b Bands) Validate() error {
	if b.Warm < b.Hot && b.Hot < b.Critical && b.Critical < b.Emergency {
		return nil
	}

	return errFactory.WithData(errors.ErrInvalidBands, b)
}

// PollInterval returns the governor tick interval
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// BatteryInterval returns the battery bridge polling interval
func (c *Config) BatteryInterval() time.Duration {
	return time.Duration(c.Sensor.BatteryIntervalMS) * time.Millisecond
}
