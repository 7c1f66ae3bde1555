package metrics

import (
	"database/sql"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
)

const (
	SchemaVersion = 1

	createTablesSQL = `
	   CREATE TABLE IF NOT EXISTS schema_versions (
	       version     INTEGER PRIMARY KEY,
	       applied_at  TEXT NOT NULL
	   );
	   CREATE TABLE IF NOT EXISTS decisions (
	       id            INTEGER PRIMARY KEY AUTOINCREMENT,
	       timestamp     INTEGER NOT NULL,
	       temp_inlet    INTEGER NOT NULL CHECK (typeof(temp_inlet) = 'integer'),
	       temp_exhaust  INTEGER NOT NULL CHECK (typeof(temp_exhaust) = 'integer'),
	       temp_cpu_max  INTEGER NOT NULL CHECK (typeof(temp_cpu_max) = 'integer'),
	       temp_max      INTEGER NOT NULL CHECK (typeof(temp_max) = 'integer'),
	       temp_delta    INTEGER NOT NULL CHECK (typeof(temp_delta) = 'integer'),
	       usage_max     REAL    NOT NULL CHECK (usage_max BETWEEN 0 AND 100),
	       usage_spike   INTEGER NOT NULL CHECK (usage_spike IN (0, 1)),
	       fan_previous  INTEGER NOT NULL CHECK (fan_previous IN (25, 40, 60, 80, 100)),
	       fan_target    INTEGER NOT NULL CHECK (fan_target IN (0, 25, 40, 60, 80, 100)),
	       reason        TEXT    NOT NULL,
	       success       INTEGER NOT NULL CHECK (success IN (0, 1))
	   );
	   CREATE INDEX IF NOT EXISTS decisions_timestamp ON decisions (timestamp);`

	insertDecisionSQL = `
    INSERT INTO decisions (
        timestamp,
        temp_inlet, temp_exhaust, temp_cpu_max, temp_max, temp_delta,
        usage_max, usage_spike,
        fan_previous, fan_target,
        reason, success
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

// InitSchema creates a new database schema with the current version
func InitSchema(db *sql.DB, log logger.Logger) error {
	errFactory := errors.New()

	log.Debug().Msg("Creating database...")

	tx, err := db.Begin()
	if err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}

	committed := false
	defer func() {
		if !committed {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				log.Debug().Err(err).Msg("Failed to rollback transaction")
			}
		}
	}()

	if _, err := tx.Exec(createTablesSQL); err != nil {
		return phaseError(ErrSchemaInitFailed, "create_tables", err)
	}

	if _, err := tx.Exec(`
        INSERT INTO schema_versions (version, applied_at)
        VALUES (?, datetime('now'))
    `, SchemaVersion); err != nil {
		return phaseError(ErrSchemaInitFailed, "record_version", err)
	}

	if err := tx.Commit(); err != nil {
		return errFactory.Wrap(ErrSchemaInitFailed, err)
	}
	committed = true

	log.Info().
		Int("version", SchemaVersion).
		Msg("Schema initialized successfully")

	return nil
}

// GetSchemaVersion returns the current schema version, 0 for an empty database.
func GetSchemaVersion(db *sql.DB) (int, error) {
	errFactory := errors.New()

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
		return 0, phaseError(ErrSchemaValidationFailed, "get_version", err)
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
		return false, errors.New().WithData(ErrSchemaValidationFailed, phaseData{
			Phase: "check_table_exists",
			Table: tableName,
			Error: err.Error(),
		})
	}

	return exists, nil
}
