package telemetry_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/okkern/thermactl/internal/events"
	"github.com/okkern/thermactl/internal/telemetry"
	"github.com/okkern/thermactl/internal/thermal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) telemetry.Config {
	t.Helper()

	return telemetry.Config{
		DBPath:        filepath.Join(t.TempDir(), "telemetry.db"),
		BatchSize:     2,
		FlushInterval: time.Hour,
		Enabled:       true,
	}
}

func openRaw(t *testing.T, path string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&count))

	return count
}

func snapshotAt(ts time.Time, overall float64) thermal.Snapshot {
	return thermal.Snapshot{
		Overall:    overall,
		CPU:        overall,
		CPUValid:   true,
		ObservedAt: ts,
	}
}

func TestRepositoryFlushesWhenBatchFull(t *testing.T) {
	cfg := testConfig(t)
	repo, err := telemetry.NewRepository(cfg)
	require.NoError(t, err)
	defer repo.Close()

	base := time.Now()
	ambient := 22.5

	first := thermal.Snapshot{
		Overall:    45.5,
		CPU:        45.5,
		CPUValid:   true,
		Ambient:    &ambient,
		ObservedAt: base,
	}
	require.NoError(t, repo.RecordSnapshot(first))
	require.NoError(t, repo.RecordSnapshot(snapshotAt(base.Add(time.Second), 46.0)))

	db := openRaw(t, cfg.DBPath)
	assert.Equal(t, 2, countRows(t, db, "snapshots"), "a full batch flushes synchronously")

	var overall float64
	var cpu, battery, amb sql.NullFloat64
	err = db.QueryRow(`
        SELECT overall, cpu, battery, ambient FROM snapshots
        WHERE timestamp = ?`, base.UnixMilli()).
		Scan(&overall, &cpu, &battery, &amb)
	require.NoError(t, err)

	assert.InDelta(t, 45.5, overall, 0.0001)
	require.True(t, cpu.Valid)
	assert.InDelta(t, 45.5, cpu.Float64, 0.0001)
	assert.False(t, battery.Valid, "an invalid source is stored as NULL")
	require.True(t, amb.Valid)
	assert.InDelta(t, 22.5, amb.Float64, 0.0001)
}

func TestRepositoryCloseFlushesRemaining(t *testing.T) {
	cfg := testConfig(t)
	cfg.BatchSize = 10

	repo, err := telemetry.NewRepository(cfg)
	require.NoError(t, err)

	require.NoError(t, repo.RecordSnapshot(snapshotAt(time.Now(), 40.0)))
	require.NoError(t, repo.Close())

	db := openRaw(t, cfg.DBPath)
	assert.Equal(t, 1, countRows(t, db, "snapshots"), "closing must not drop buffered snapshots")
}

func TestRepositoryRecordsTransitionsImmediately(t *testing.T) {
	cfg := testConfig(t)
	repo, err := telemetry.NewRepository(cfg)
	require.NoError(t, err)
	defer repo.Close()

	transition := thermal.Transition{
		From:        thermal.StateNormal,
		To:          thermal.StateHot,
		Temperature: 41.2,
		At:          time.Now(),
	}
	require.NoError(t, repo.RecordTransition(transition))

	db := openRaw(t, cfg.DBPath)

	var from, to string
	var temperature float64
	err = db.QueryRow("SELECT from_state, to_state, temperature FROM transitions").
		Scan(&from, &to, &temperature)
	require.NoError(t, err)

	assert.Equal(t, "Normal", from)
	assert.Equal(t, "Hot", to)
	assert.InDelta(t, 41.2, temperature, 0.0001)
}

func TestSchemaVersionRecorded(t *testing.T) {
	cfg := testConfig(t)
	repo, err := telemetry.NewRepository(cfg)
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	db := openRaw(t, cfg.DBPath)
	version, err := telemetry.GetSchemaVersion(db)
	require.NoError(t, err)
	assert.Equal(t, telemetry.SchemaVersion, version)
}

func TestDisabledSinkIsNoop(t *testing.T) {
	sink, err := telemetry.NewSink(telemetry.Config{Enabled: false})
	require.NoError(t, err)

	ctx := context.Background()
	assert.NoError(t, sink.RecordSnapshot(ctx, snapshotAt(time.Now(), 40.0)))
	assert.NoError(t, sink.RecordTransition(ctx, thermal.Transition{}))
	assert.NoError(t, sink.Close())
}

func TestSinkValidatesConfig(t *testing.T) {
	_, err := telemetry.NewSink(telemetry.Config{Enabled: true, DBPath: "", BatchSize: 2})
	assert.Error(t, err, "an enabled sink needs a database path")
}

type recordingSink struct {
	mu          sync.Mutex
	snapshots   []thermal.Snapshot
	transitions []thermal.Transition
}

func (s *recordingSink) RecordSnapshot(_ context.Context, snap thermal.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)

	return nil
}

func (s *recordingSink) RecordTransition(_ context.Context, transition thermal.Transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, transition)

	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.snapshots), len(s.transitions)
}

func TestConsumerDrainsEventFeeds(t *testing.T) {
	snapshots := events.NewBroker[thermal.Snapshot]()
	transitions := events.NewBroker[thermal.Transition]()
	defer snapshots.Close()
	defer transitions.Close()

	sink := &recordingSink{}
	consumer := telemetry.NewConsumer(sink, snapshots.Subscribe(8), transitions.Subscribe(8))

	require.NoError(t, consumer.Start(context.Background()))
	defer consumer.Stop()

	snapshots.Publish(snapshotAt(time.Now(), 40.0))
	transitions.Publish(thermal.Transition{From: thermal.StateNormal, To: thermal.StateWarm})

	require.Eventually(t, func() bool {
		snapCount, transitionCount := sink.counts()
		return snapCount == 1 && transitionCount == 1
	}, time.Second, time.Millisecond, "both feeds reach the sink")
}
