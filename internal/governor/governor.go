package governor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/okkern/thermactl/internal/events"
	"github.com/okkern/thermactl/internal/logger"
	"github.com/okkern/thermactl/internal/thermal"
)

// DefaultPollInterval matches the two-second sensor cadence the band and
// trend defaults are tuned for
const DefaultPollInterval = 2 * time.Second

// Config wires a Governor together
type Config struct {
	PollInterval time.Duration
	Pool         WorkerPoolController
	Aggregator   *thermal.Aggregator
	History      *thermal.History
	Machine      *thermal.StateMachine
	// Clock drives the poll ticker; nil selects the wall clock
	Clock clock.Clock
	// Monitor raises per-tick logging from debug to info
	Monitor bool
}

func (c Config) Validate() error {
	if c.PollInterval <= 0 {
		return errFactory.WithData(ErrInvalidConfig, "poll interval must be positive")
	}
	if c.Pool == nil || c.Aggregator == nil || c.History == nil || c.Machine == nil {
		return errFactory.WithData(ErrInvalidConfig, "pool, aggregator, history and machine are required")
	}

	return nil
}

// Governor owns the poll loop and the workload context: each tick it
// fuses the sensors, extends the history, evaluates the state machine,
// publishes what it saw, and steers the worker pool when the severity
// changed.
type Governor struct {
	cfg Config
	clk clock.Clock

	snapshots   *events.Broker[thermal.Snapshot]
	transitions *events.Broker[thermal.Transition]

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// wmu guards the workload context and the last applied directive
	wmu           sync.Mutex
	workload      workload
	lastDirective thermal.Directive
}

type workload struct {
	baselineThreads  int
	currentThreads   int
	active           bool
	pausedForThermal bool
}

func New(cfg Config) (*Governor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}

	return &Governor{
		cfg:         cfg,
		clk:         clk,
		snapshots:   events.NewBroker[thermal.Snapshot](),
		transitions: events.NewBroker[thermal.Transition](),
	}, nil
}

// Snapshots is the per-tick reading feed for observers
func (g *Governor) Snapshots() *events.Broker[thermal.Snapshot] {
	return g.snapshots
}

// Transitions is the severity change feed for observers
func (g *Governor) Transitions() *events.Broker[thermal.Transition] {
	return g.transitions
}

// Start launches the poll loop. Starting a running governor is a no-op; a
// stopped one cannot be restarted.
func (g *Governor) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		return errFactory.New(ErrStopped)
	}
	if g.running {
		logger.Debug().Msg("Governor already running")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.running = true

	// Registering the ticker before the goroutine runs means a caller that
	// advances a fake clock right after Start never races the first tick
	ticker := g.clk.Ticker(g.cfg.PollInterval)

	g.wg.Add(1)
	go g.run(runCtx, ticker)

	logger.Info().Dur("poll_interval", g.cfg.PollInterval).Msg("Governor started")

	return nil
}

// Stop halts the poll loop, waits for it to drain, and closes the event
// feeds. Safe to call any number of times.
func (g *Governor) Stop() {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	g.stopped = true
	running := g.running
	g.running = false
	cancel := g.cancel
	g.mu.Unlock()

	if running {
		cancel()
		g.wg.Wait()
	}

	g.snapshots.Close()
	g.transitions.Close()

	logger.Info().Msg("Governor stopped")
}

func (g *Governor) run(ctx context.Context, ticker *clock.Ticker) {
	defer g.wg.Done()
	defer ticker.Stop()

	if g.cfg.Monitor {
		logger.Info().Msg("Monitor mode activated. Logging thermal state...")
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.tick(ctx)
		}
	}
}

func (g *Governor) tick(ctx context.Context) {
	snap := g.cfg.Aggregator.Poll(ctx)
	g.cfg.History.Append(snap.Overall)
	trend, trendOK := g.cfg.History.Trend()

	g.snapshots.Publish(snap)

	transition, changed := g.cfg.Machine.Tick(snap, trend, trendOK)
	if changed {
		logger.Info().
			Str("from", transition.From.String()).
			Str("to", transition.To.String()).
			Float64("temperature", transition.Temperature).
			Float64("trend", trend).
			Msg("Thermal state changed")

		g.transitions.Publish(transition)
		g.HandleTransition(transition)
	}

	g.logTick(snap, trend, trendOK)
}

// HandleTransition applies one severity change to the governed workload.
// The poll loop calls it for every transition it emits; transitions
// arriving while no workload is active are logged and discarded. An
// emergency pause is held until a transition lands below the Critical
// boundary, and the pool is only called when the outcome differs from
// what it last confirmed.
func (g *Governor) HandleTransition(t thermal.Transition) {
	g.wmu.Lock()
	defer g.wmu.Unlock()

	if !g.workload.active {
		logger.Debug().
			Str("to", t.To.String()).
			Float64("temperature", t.Temperature).
			Msg("No active workload; transition ignored")
		return
	}

	directive := thermal.PolicyFor(t.To, g.lastDirective)

	if g.workload.pausedForThermal && t.To >= thermal.StateCritical {
		logger.Info().
			Str("state", t.To.String()).
			Float64("temperature", t.Temperature).
			Msg("Workload stays paused above the Critical boundary")
		return
	}

	if g.workload.pausedForThermal {
		if err := g.cfg.Pool.Resume(directive.Reason); err != nil {
			g.logDispatchFailure("resume", directive.Reason, err)
			return
		}
		g.workload.pausedForThermal = false
		logger.Info().Str("reason", directive.Reason).Msg("Workload resumed")
	}

	switch directive.Action {
	case thermal.ActionPause, thermal.ActionEmergencyStop:
		if err := g.cfg.Pool.Pause(directive.Reason); err != nil {
			g.logDispatchFailure("pause", directive.Reason, err)
			return
		}
		g.workload.currentThreads = 0
		g.workload.pausedForThermal = true
		logger.Warn().
			Float64("temperature", t.Temperature).
			Str("reason", directive.Reason).
			Msg("Workload paused")
	default:
		target := targetThreads(g.workload.baselineThreads, directive.PerformanceFactor)
		if target != g.workload.currentThreads {
			if err := g.cfg.Pool.SetThreadCount(target, directive.Reason); err != nil {
				g.logDispatchFailure("set_thread_count", directive.Reason, err)
				return
			}
			logger.Info().
				Int("from_threads", g.workload.currentThreads).
				Int("to_threads", target).
				Float64("performance_factor", directive.PerformanceFactor).
				Str("reason", directive.Reason).
				Msg("Worker threads adjusted")
			g.workload.currentThreads = target
		}
	}

	g.lastDirective = directive
}

// Activate captures the workload's baseline capacity and arms thermal
// steering. Activating an already active workload keeps the captured
// baseline.
func (g *Governor) Activate(baselineThreads int) error {
	if baselineThreads <= 0 {
		return errFactory.WithData(ErrInvalidBaseline, baselineThreads)
	}

	g.wmu.Lock()
	defer g.wmu.Unlock()

	if g.workload.active {
		logger.Debug().
			Int("baseline_threads", g.workload.baselineThreads).
			Msg("Workload already active; baseline kept")
		return nil
	}

	g.workload = workload{
		baselineThreads: baselineThreads,
		currentThreads:  baselineThreads,
		active:          true,
	}
	g.lastDirective = thermal.Directive{}

	logger.Info().Int("baseline_threads", baselineThreads).Msg("Workload activated")

	return nil
}

// Deactivate forgets the workload context entirely; the next activation
// captures a fresh baseline
func (g *Governor) Deactivate() {
	g.wmu.Lock()
	defer g.wmu.Unlock()

	if !g.workload.active {
		return
	}

	g.workload = workload{}
	g.lastDirective = thermal.Directive{}

	logger.Info().Msg("Workload deactivated")
}

// Status returns a copy of the current workload bookkeeping
func (g *Governor) Status() WorkloadStatus {
	g.wmu.Lock()
	defer g.wmu.Unlock()

	return WorkloadStatus{
		BaselineThreads:  g.workload.baselineThreads,
		CurrentThreads:   g.workload.currentThreads,
		Active:           g.workload.active,
		PausedForThermal: g.workload.pausedForThermal,
	}
}

func (g *Governor) logTick(snap thermal.Snapshot, trend float64, trendOK bool) {
	status := g.Status()

	var event *logger.LogEvent
	if g.cfg.Monitor {
		event = logger.Info()
	} else {
		event = logger.Debug()
	}

	e := event.
		Float64("overall", snap.Overall).
		Str("state", g.cfg.Machine.Current().String()).
		Bool("cpu_valid", snap.CPUValid).
		Bool("battery_valid", snap.BatteryValid)

	if snap.CPUValid {
		e = e.Float64("cpu", snap.CPU)
	}
	if snap.BatteryValid {
		e = e.Float64("battery", snap.Battery)
	}
	if snap.Ambient != nil {
		e = e.Float64("ambient", *snap.Ambient)
	}
	if trendOK {
		e = e.Float64("trend", trend)
	}
	if status.Active {
		e = e.Int("threads", status.CurrentThreads).
			Int("baseline_threads", status.BaselineThreads).
			Bool("paused_for_thermal", status.PausedForThermal)
	}

	e.Msg("")
}

func (g *Governor) logDispatchFailure(call, reason string, err error) {
	logger.ErrorWithCode(errFactory.Wrap(ErrDispatchFailed, err)).
		Str("call", call).
		Str("reason", reason).
		Msg("Worker pool dispatch failed; next differing directive retries")
}

// targetThreads applies the capacity rule: floored scaling of the
// baseline, never below one thread for a running workload
func targetThreads(baseline int, factor float64) int {
	target := int(math.Floor(float64(baseline) * factor))
	if target < 1 {
		return 1
	}

	return target
}
