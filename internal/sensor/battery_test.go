package sensor_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/okkern/thermactl/internal/errors"
	"github.com/okkern/thermactl/internal/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	values []float64
}

func (s *recordingSink) OnBatteryUpdate(celsius float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, celsius)
}

func (s *recordingSink) snapshot() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]float64, len(s.values))
	copy(out, s.values)

	return out
}

func writeSupplyFile(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	supplyDir := filepath.Join(dir, "BAT0")
	require.NoError(t, os.Mkdir(supplyDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(supplyDir, "temp"), []byte(content), 0o600))

	return filepath.Join(dir, "*", "temp")
}

func TestBatteryBridgeConvertsTenths(t *testing.T) {
	pattern := writeSupplyFile(t, "325\n")

	sink := &recordingSink{}
	bridge := sensor.NewBatteryBridge(sink, pattern, 5*time.Millisecond, nil)

	require.NoError(t, bridge.Start(context.Background()))
	defer bridge.Stop()

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) >= 1
	}, time.Second, time.Millisecond)

	assert.InDelta(t, 32.5, sink.snapshot()[0], 0.0001, "the kernel reports tenths of a degree")
}

func TestBatteryBridgeWithoutSupply(t *testing.T) {
	dir := t.TempDir()

	sink := &recordingSink{}
	bridge := sensor.NewBatteryBridge(sink, filepath.Join(dir, "*", "temp"), time.Second, nil)

	err := bridge.Start(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, sensor.ErrNoBatterySupply))
}

func TestBatteryBridgeIgnoresUnparseableValues(t *testing.T) {
	pattern := writeSupplyFile(t, "not a temperature")

	sink := &recordingSink{}
	bridge := sensor.NewBatteryBridge(sink, pattern, 5*time.Millisecond, nil)

	require.NoError(t, bridge.Start(context.Background()))
	defer bridge.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sink.snapshot(), "unparseable readings are never pushed")
}

func TestBatteryBridgeStartStopIdempotent(t *testing.T) {
	pattern := writeSupplyFile(t, "300")

	sink := &recordingSink{}
	bridge := sensor.NewBatteryBridge(sink, pattern, time.Hour, nil)

	require.NoError(t, bridge.Start(context.Background()))
	require.NoError(t, bridge.Start(context.Background()))
	bridge.Stop()
	bridge.Stop()
}
