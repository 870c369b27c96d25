// thermactl watches CPU, battery and ambient temperatures, classifies the
// fused reading into a thermal severity and throttles an external worker
// pool before the hardware does it the hard way.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/spf13/pflag"

	"github.com/okkern/thermactl/internal/config"
	"github.com/okkern/thermactl/internal/errors"
	"github.com/okkern/thermactl/internal/governor"
	"github.com/okkern/thermactl/internal/logger"
	"github.com/okkern/thermactl/internal/pid"
	"github.com/okkern/thermactl/internal/sensor"
	"github.com/okkern/thermactl/internal/telemetry"
	"github.com/okkern/thermactl/internal/thermal"
)

// eventFeedBuffer sizes the telemetry subscriptions. Telemetry is an
// observer; when it falls behind, events are dropped rather than slowing
// the control loop.
const eventFeedBuffer = 64

func main() {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFile, logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		logger.Error().Err(err).Msg("Daemon failed")
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := pid.Write(); err != nil {
		return err
	}
	defer pid.Remove()

	history, err := thermal.NewHistory(cfg.HistoryCapacity)
	if err != nil {
		return err
	}

	machine, err := thermal.NewStateMachine(thermalBands(cfg.Bands), cfg.TrendThreshold)
	if err != nil {
		return err
	}

	aggregator := thermal.NewAggregator(newCPUSensor(cfg.Sensor), clock.New())

	gov, err := governor.New(governor.Config{
		PollInterval: cfg.PollInterval(),
		Pool:         governor.NewLogController(),
		Aggregator:   aggregator,
		History:      history,
		Machine:      machine,
		Monitor:      cfg.Monitor,
	})
	if err != nil {
		return err
	}

	tcfg := telemetry.DefaultConfig()
	tcfg.DBPath = cfg.TelemetryDB
	tcfg.Enabled = cfg.Telemetry
	sink, err := telemetry.NewSink(tcfg)
	if err != nil {
		return err
	}

	consumer := telemetry.NewConsumer(sink,
		gov.Snapshots().Subscribe(eventFeedBuffer),
		gov.Transitions().Subscribe(eventFeedBuffer))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := consumer.Start(ctx); err != nil {
		return err
	}

	battery := startBattery(ctx, cfg, aggregator)
	ambient := startAmbient(cfg, aggregator)
	watcher := startWatcher(cfg, machine)

	if cfg.Monitor {
		logger.Info().Msg("Monitor mode: directives are logged, no workload is governed")
	} else if err := gov.Activate(cfg.WorkloadThreads); err != nil {
		return err
	}

	go handleSignals(cancel)

	if err := gov.Start(ctx); err != nil {
		return err
	}
	logger.Info().
		Bool("monitor", cfg.Monitor).
		Bool("telemetry", cfg.Telemetry).
		Str("provider", cfg.Sensor.Provider).
		Msg("thermactl started")

	<-ctx.Done()

	gov.Stop()
	consumer.Stop()
	if err := sink.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close telemetry sink")
	}
	if ambient != nil {
		ambient.Stop()
	}
	if battery != nil {
		battery.Stop()
	}
	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop configuration watcher")
		}
	}
	logger.Info().Msg("Exiting...")

	return nil
}

// newCPUSensor selects the CPU temperature provider. Load has already
// constrained the provider name to a supported value.
func newCPUSensor(cfg config.Sensor) thermal.CPUSensor {
	if cfg.Provider == "gopsutil" {
		return sensor.NewGopsutilCPUSensor(cfg.SensorKeys)
	}

	return sensor.NewSysfsCPUSensor(cfg.CPUPaths)
}

// startBattery launches the battery poller when enabled. A machine without
// a battery temperature file degrades to CPU-only sensing.
func startBattery(ctx context.Context, cfg *config.Config, aggregator *thermal.Aggregator) *sensor.BatteryBridge {
	if !cfg.Sensor.Battery {
		return nil
	}

	battery := sensor.NewBatteryBridge(aggregator, cfg.Sensor.BatteryPath, cfg.BatteryInterval(), nil)
	if err := battery.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("Battery temperature unavailable, continuing without it")
		return nil
	}

	return battery
}

// startAmbient launches the MQTT subscriber when a broker is configured.
// An unreachable broker is degraded sensing, not a startup failure.
func startAmbient(cfg *config.Config, aggregator *thermal.Aggregator) *sensor.AmbientMQTT {
	if cfg.MQTT.Broker == "" {
		return nil
	}

	ambient := sensor.NewAmbientMQTT(aggregator, cfg.MQTT.Broker, cfg.MQTT.Topic, cfg.MQTT.ClientID)
	if err := ambient.Start(); err != nil {
		logger.Warn().Err(err).Msg("Ambient temperature feed unavailable, continuing without it")
		return nil
	}

	return ambient
}

// startWatcher hot-reloads the settings that can change without a restart:
// thermal bands, trend threshold and log level.
func startWatcher(cfg *config.Config, machine *thermal.StateMachine) *config.Watcher {
	if cfg.Path == "" {
		return nil
	}

	watcher, err := config.NewWatcher(cfg.Path, func(next *config.Config) {
		if err := machine.Reconfigure(thermalBands(next.Bands), next.TrendThreshold); err != nil {
			logger.Error().Err(err).Msg("Rejected reloaded thermal bands")
		}
		if level, err := logger.ParseLevel(next.LogLevel); err == nil {
			logger.SetLogLevel(level)
		}
		logger.Info().Msg("Configuration reloaded")
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Configuration reload unavailable")
		return nil
	}
	if err := watcher.Start(); err != nil {
		logger.Warn().Err(err).Msg("Configuration reload unavailable")
		return nil
	}

	return watcher
}

func thermalBands(b config.Bands) thermal.Bands {
	return thermal.Bands{
		Warm:      b.Warm,
		Hot:       b.Hot,
		Critical:  b.Critical,
		Emergency: b.Emergency,
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
