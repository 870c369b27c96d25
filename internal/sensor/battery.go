package sensor

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/okkern/thermactl/internal/logger"
)

// DefaultBatteryGlob matches the power supply temperature files exposed by
// the kernel. The values are tenths of a degree Celsius.
const DefaultBatteryGlob = "/sys/class/power_supply/*/temp"

// BatteryBridge polls the battery temperature on its own interval and
// pushes readings into the sink, emulating the asynchronous battery
// broadcasts of mobile platforms
type BatteryBridge struct {
	sink     BatterySink
	pattern  string
	interval time.Duration
	clk      clock.Clock

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewBatteryBridge creates a bridge reading the first file matching
// pattern. An empty pattern selects the default power supply glob.
func NewBatteryBridge(sink BatterySink, pattern string, interval time.Duration, clk clock.Clock) *BatteryBridge {
	if pattern == "" {
		pattern = DefaultBatteryGlob
	}
	if clk == nil {
		clk = clock.New()
	}

	return &BatteryBridge{
		sink:     sink,
		pattern:  pattern,
		interval: interval,
		clk:      clk,
	}
}

// Start begins polling. It fails when no battery temperature file exists,
// which callers on battery-less systems should treat as advisory.
func (b *BatteryBridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}

	matches, err := filepath.Glob(b.pattern)
	if err != nil || len(matches) == 0 {
		return errFactory.WithData(ErrNoBatterySupply, b.pattern)
	}
	path := matches[0]

	runCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.running = true

	ticker := b.clk.Ticker(b.interval)

	b.wg.Add(1)
	go b.run(runCtx, ticker, path)

	logger.Info().
		Str("path", path).
		Dur("interval", b.interval).
		Msg("Battery temperature bridge started")

	return nil
}

// Stop halts polling. Safe to call more than once.
func (b *BatteryBridge) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	cancel := b.cancel
	b.mu.Unlock()

	cancel()
	b.wg.Wait()
}

func (b *BatteryBridge) run(ctx context.Context, ticker *clock.Ticker, path string) {
	defer b.wg.Done()
	defer ticker.Stop()

	// Prime the sink so the first governor tick already sees battery data
	b.push(path)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.push(path)
		}
	}
}

func (b *BatteryBridge) push(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("Battery temperature read failed")
		return
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(string(raw)), 64)
	if err != nil {
		logger.Debug().Err(err).Str("path", path).Msg("Battery temperature unparseable")
		return
	}

	// The kernel reports tenths of a degree
	b.sink.OnBatteryUpdate(value / 10.0)
}
