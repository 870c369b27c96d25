package thermal

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/okkern/thermactl/internal/logger"
)

// Sane physical range for any reading; anything outside is treated as a
// sensor glitch and discarded
const (
	minSaneCelsius = 0.0
	maxSaneCelsius = 150.0
)

// ValidCelsius reports whether a reading is physically plausible
func ValidCelsius(celsius float64) bool {
	return celsius > minSaneCelsius && celsius <= maxSaneCelsius
}

// Aggregator fuses CPU, battery and ambient readings into snapshots. Poll
// runs on the governor's tick; battery and ambient updates are pushed from
// whatever goroutine delivers them. All writers serialize on one mutex.
type Aggregator struct {
	mu  sync.RWMutex
	cpu CPUSensor
	clk clock.Clock

	snap Snapshot
	// stale marks a run of ticks with no valid source, so the warning
	// fires once per run instead of every two seconds
	stale bool
}

func NewAggregator(cpu CPUSensor, clk clock.Clock) *Aggregator {
	return &Aggregator{
		cpu: cpu,
		clk: clk,
	}
}

// Poll reads the CPU sensor, recomputes the fused overall temperature and
// returns the new snapshot. A failed or implausible CPU read invalidates
// the CPU contribution for this tick only; the other sources keep the
// snapshot alive.
func (a *Aggregator) Poll(ctx context.Context) Snapshot {
	celsius, err := a.readCPU(ctx)

	a.mu.Lock()
	defer a.mu.Unlock()

	if err != nil {
		a.snap.CPUValid = false
		logger.Debug().Err(err).Msg("CPU reading excluded from this tick")
	} else {
		a.snap.CPU = celsius
		a.snap.CPUValid = true
	}

	a.recomputeLocked(a.clk.Now())

	return a.snap
}

func (a *Aggregator) readCPU(ctx context.Context) (float64, error) {
	celsius, err := a.cpu.ReadTemperature(ctx)
	if err != nil {
		return 0, errFactory.Wrap(ErrCPUReadFailed, err)
	}
	if !ValidCelsius(celsius) {
		return 0, errFactory.WithData(ErrInvalidSample, celsius)
	}

	return celsius, nil
}

// OnBatteryUpdate records a pushed battery temperature. The value takes
// part in the fused maximum from the next poll tick onward.
func (a *Aggregator) OnBatteryUpdate(celsius float64) {
	if !ValidCelsius(celsius) {
		logger.Debug().Float64("celsius", celsius).Msg("Discarding implausible battery sample")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.snap.Battery = celsius
	a.snap.BatteryValid = true
}

// OnAmbientUpdate records a pushed ambient temperature. Unlike battery, an
// ambient reading hotter than the current overall raises it immediately
// rather than waiting for the next poll.
func (a *Aggregator) OnAmbientUpdate(celsius float64) {
	if !ValidCelsius(celsius) {
		logger.Debug().Float64("celsius", celsius).Msg("Discarding implausible ambient sample")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	value := celsius
	a.snap.Ambient = &value
	if celsius > a.snap.Overall {
		a.snap.Overall = celsius
	}
}

// Current returns the latest snapshot without touching any sensor
func (a *Aggregator) Current() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.snap
}

// recomputeLocked rebuilds Overall as the max of the valid readings. With
// every source invalid the previous value is held, on the theory that a
// stale reading beats no reading; the staleness is logged once per run.
func (a *Aggregator) recomputeLocked(now time.Time) {
	overall, any := a.maxValidLocked()

	if !any {
		if !a.stale {
			staleErr := errFactory.WithData(ErrAllSourcesStale, a.snap.Overall)
			logger.Warn().
				Str("error_code", string(staleErr.Code())).
				Float64("held_overall", a.snap.Overall).
				Msg("All temperature sources unavailable; holding last overall")
			a.stale = true
		}
		a.snap.ObservedAt = now

		return
	}

	a.stale = false
	a.snap.Overall = overall
	a.snap.ObservedAt = now
}

func (a *Aggregator) maxValidLocked() (float64, bool) {
	var (
		overall float64
		found   bool
	)

	if a.snap.CPUValid {
		overall = a.snap.CPU
		found = true
	}
	if a.snap.BatteryValid && (!found || a.snap.Battery > overall) {
		overall = a.snap.Battery
		found = true
	}
	if a.snap.Ambient != nil && (!found || *a.snap.Ambient > overall) {
		overall = *a.snap.Ambient
		found = true
	}

	return overall, found
}
