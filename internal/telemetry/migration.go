package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okkern/thermactl/internal/errors"
	"github.com/okkern/thermactl/internal/logger"
)

const backupDir = "/var/lib/thermactl/backups"

func backupDatabase(db *sql.DB, version int) (string, error) {
	if err := os.MkdirAll(backupDir, defaultDirPerm); err != nil {
		return "", errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_backup_dir",
			Path:  backupDir,
			Error: err.Error(),
		})
	}

	timestamp := time.Now().UTC().Format("20060102T150405Z")
	backupPath := filepath.Join(backupDir,
		fmt.Sprintf("telemetry_v%d_%s.db", version, timestamp))

	// VACUUM INTO requires no active transaction
	if _, err := db.Exec(fmt.Sprintf("VACUUM INTO '%s'", backupPath)); err != nil {
		return "", errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Path  string
			Error string
		}{
			Phase: "create_backup",
			Path:  backupPath,
			Error: err.Error(),
		})
	}

	logger.Info().
		Str("path", backupPath).
		Int("version", version).
		Msg("Telemetry database backup created")

	return backupPath, nil
}

// ValidateAndUpdateSchema checks the schema version and recreates it if
// needed. An existing schema with a stale version is backed up before the
// tables are rebuilt.
func ValidateAndUpdateSchema(db *sql.DB) error {
	version, err := GetSchemaVersion(db)
	if err != nil {
		return errFactory.Wrap(ErrSchemaValidationFailed, err)
	}

	logger.Debug().
		Int("version", version).
		Bool("init_db", version == 0).
		Msg("Current telemetry schema version")

	if version == 0 || version != SchemaVersion {
		if version != 0 {
			if _, err := backupDatabase(db, version); err != nil {
				return err
			}
		}

		if err := dropTables(db); err != nil {
			return err
		}

		return InitSchema(db)
	}

	return nil
}

func dropTables(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaMigrationFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil {
				if !errors.Is(err, sql.ErrTxDone) {
					logger.Debug().Err(err).Msg("Failed to rollback drop tables")
				}
			}
		}
	}()

	tables := []string{"snapshots", "transitions", "schema_versions"}
	for _, table := range tables {
		if _, err := tx.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return errFactory.WithData(ErrSchemaMigrationFailed, struct {
				Phase string
				Table string
				Error string
			}{
				Phase: "drop_table",
				Table: table,
				Error: err.Error(),
			})
		}
	}

	if err := tx.Commit(); err != nil {
		return errFactory.WithData(ErrSchemaMigrationFailed, struct {
			Phase string
			Error string
		}{
			Phase: "commit_changes",
			Error: err.Error(),
		})
	}
	committed = true

	return nil
}
