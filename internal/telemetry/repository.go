package telemetry

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/okkern/thermactl/internal/logger"
	"github.com/okkern/thermactl/internal/thermal"
)

type repository struct {
	db            *sql.DB
	cfg           Config
	mu            sync.Mutex
	buffer        []thermal.Snapshot
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

func NewRepository(cfg Config) (Repository, error) {
	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_directory",
			Path:  cfg.DBPath,
			Error: err.Error(),
		})
	}

	// Open database with specific pragmas for better performance and safety
	dsn := cfg.DBPath + "?_journal=WAL&_auto_vacuum=2"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "open_database",
			Error: err.Error(),
		})
	}

	// Validate if schema is current, with backup if needed
	if err := ValidateAndUpdateSchema(db); err != nil {
		db.Close()
		return nil, errFactory.WithData(ErrStorageInit, struct {
			Phase string
			Error string
		}{
			Phase: "schema_version",
			Error: err.Error(),
		})
	}

	logger.Info().
		Str("path", cfg.DBPath).
		Int("schema_version", SchemaVersion).
		Int("batch_size", cfg.BatchSize).
		Dur("flush_interval", cfg.FlushInterval).
		Msg("Telemetry repository initialized")

	repo := &repository{
		db:            db,
		cfg:           cfg,
		buffer:        make([]thermal.Snapshot, 0, cfg.BatchSize),
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}

	// Start background goroutine for periodic flushing if batching is enabled
	if cfg.BatchSize > 0 && cfg.FlushInterval > 0 {
		repo.flushTicker = time.NewTicker(cfg.FlushInterval)
		go repo.flusher()
	}

	return repo, nil
}

// RecordSnapshot buffers the snapshot and flushes when the batch is full
func (r *repository) RecordSnapshot(snap thermal.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buffer = append(r.buffer, snap)

	if len(r.buffer) >= r.cfg.BatchSize {
		return r.flush()
	}

	return nil
}

// RecordTransition writes immediately. Transitions are rare and are the
// rows an operator looks for first.
func (r *repository) RecordTransition(transition thermal.Transition) error {
	_, err := r.db.Exec(insertTransitionSQL,
		transition.At.UnixMilli(),
		transition.From.String(),
		transition.To.String(),
		transition.Temperature,
	)
	if err != nil {
		return errFactory.Wrap(ErrRecordFailed, err)
	}

	return nil
}

func (r *repository) Close() error {
	if r.flushTicker != nil {
		// Signal the flusher goroutine to stop and wait for its final flush
		close(r.shutdownChan)
		r.flushTicker.Stop()
		<-r.flushDoneChan
	} else {
		r.mu.Lock()
		r.flush()
		r.mu.Unlock()
	}

	// Checkpoint WAL and cleanup on close
	if _, err := r.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "checkpoint_wal",
			Error: err.Error(),
		})
	}

	if err := r.db.Close(); err != nil {
		return errFactory.WithData(ErrStorageClose, struct {
			Phase string
			Error string
		}{
			Phase: "close_database",
			Error: err.Error(),
		})
	}

	logger.Info().Msg("Telemetry repository closed gracefully")

	return nil
}

func (r *repository) flusher() {
	defer close(r.flushDoneChan)

	for {
		select {
		case <-r.flushTicker.C:
			r.mu.Lock()
			r.flush()
			r.mu.Unlock()
		case <-r.shutdownChan:
			r.mu.Lock()
			r.flush()
			r.mu.Unlock()
			return
		}
	}
}

// flush writes the buffered snapshots in one transaction. Callers hold r.mu.
func (r *repository) flush() error {
	if len(r.buffer) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to begin transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	stmt, err := tx.Prepare(insertSnapshotSQL)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to prepare statement")
		if err := tx.Rollback(); err != nil {
			logger.Error().Err(err).Msg("Failed to roll back transaction")
		}
		return errFactory.Wrap(ErrTransactionFailed, err)
	}
	defer stmt.Close()

	for i := range r.buffer {
		if _, err := stmt.Exec(snapshotValues(&r.buffer[i])...); err != nil {
			logger.Error().Err(err).Msg("Failed to execute insert")
			if err := tx.Rollback(); err != nil {
				logger.Error().Err(err).Msg("Failed to roll back transaction")
			}
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		logger.Error().Err(err).Msg("Failed to commit transaction")
		return errFactory.Wrap(ErrTransactionFailed, err)
	}

	logger.Debug().Int("records", len(r.buffer)).Msg("Flushed snapshots to database")
	r.buffer = r.buffer[:0]

	return nil
}

// snapshotValues maps a snapshot onto the insert columns, with NULLs for
// sources that were invalid or absent
func snapshotValues(snap *thermal.Snapshot) []interface{} {
	var cpu, battery interface{}
	if snap.CPUValid {
		cpu = snap.CPU
	}
	if snap.BatteryValid {
		battery = snap.Battery
	}

	var ambient interface{}
	if snap.Ambient != nil {
		ambient = *snap.Ambient
	}

	return []interface{}{
		snap.ObservedAt.UnixMilli(),
		snap.Overall,
		cpu,
		battery,
		ambient,
		int64(boolToInt(snap.CPUValid)),
		int64(boolToInt(snap.BatteryValid)),
	}
}
