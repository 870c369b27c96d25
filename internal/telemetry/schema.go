package telemetry

import (
	"database/sql"

	"github.com/okkern/thermactl/internal/errors"
	"github.com/okkern/thermactl/internal/logger"
)

const (
	SchemaVersion = 1

	// SQL statements derived from schema. Snapshot source columns are NULL
	// when the source was invalid or absent at poll time.
	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS snapshots (
	       timestamp     INTEGER PRIMARY KEY,
	       overall       REAL NOT NULL,
	       cpu           REAL,
	       battery       REAL,
	       ambient       REAL,
	       cpu_valid     INTEGER NOT NULL CHECK (cpu_valid IN (0, 1)),
	       battery_valid INTEGER NOT NULL CHECK (battery_valid IN (0, 1))
	   );
	   CREATE TABLE IF NOT EXISTS transitions (
	       timestamp   INTEGER PRIMARY KEY,
	       from_state  TEXT NOT NULL,
	       to_state    TEXT NOT NULL,
	       temperature REAL NOT NULL
	   );`

	insertSnapshotSQL = `
    INSERT INTO snapshots (
        timestamp,
        overall, cpu, battery, ambient,
        cpu_valid, battery_valid
    ) VALUES (?, ?, ?, ?, ?, ?, ?)`

	insertTransitionSQL = `
    INSERT INTO transitions (
        timestamp, from_state, to_state, temperature
    ) VALUES (?, ?, ?, ?)`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB) error {
	logger.Debug().Msg("Creating telemetry schema...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	// Track transaction state
	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				if !errors.Is(err, sql.ErrTxDone) {
					logger.Debug().Err(err).Msg("Failed to rollback transaction")
				}
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			SQL   string
		}{
			Error: err.Error(),
			SQL:   createTablesSQL,
		})
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return errFactory.WithData(ErrSchemaInitFailed, struct {
			Error string
			Phase string
		}{
			Error: err.Error(),
			Phase: "record_version",
		})
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	logger.Info().
		Int("version", SchemaVersion).
		Msg("Telemetry schema initialized")

	return nil
}

// GetSchemaVersion returns the current schema version
func GetSchemaVersion(db *sql.DB) (int, error) {
	exists, err := TableExists(db, "schema_versions")
	if err != nil {
		return 0, errFactory.Wrap(ErrSchemaValidationFailed, err)
	}
	if !exists {
		return 0, nil
	}

	var version int
	err = db.QueryRow(`
        SELECT version
        FROM schema_versions
        ORDER BY version DESC
        LIMIT 1
    `).Scan(&version)

	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "get_version",
			Error: err.Error(),
		})
	}

	return version, nil
}

// TableExists checks if a table exists
func TableExists(db *sql.DB, tableName string) (bool, error) {
	var exists bool
	err := db.QueryRow(`
        SELECT EXISTS (
            SELECT 1 FROM sqlite_master
            WHERE type='table' AND name=?
        )
    `, tableName).Scan(&exists)
	if err != nil {
		return false, errFactory.WithData(ErrSchemaValidationFailed, struct {
			Phase string
			Table string
			Error string
		}{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}

	return exists, nil
}
