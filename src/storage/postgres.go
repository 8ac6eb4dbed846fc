package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"

	"feed-observer/src/helpers"
	"feed-observer/src/logger"
	"feed-observer/src/models"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config models.MStorageConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg models.MStorageConfig, log *logger.Logger) (*PostgresDB, error) {
	if cfg.DBConnectionString == "" {
		return nil, helpers.NewConfigurationError("storage.db_connection_string is required for postgres")
	}

	// The schema is named after the executable
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable name: %w", err)
	}
	name := filepath.Base(exe)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &PostgresDB{
		Config: cfg,
		Schema: name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize() error {
	db, err := sql.Open("postgres", d.Config.DBConnectionString)
	if err != nil {
		return helpers.NewDatabaseError("open postgres", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping postgres", err)
	}

	d.DB = db

	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return helpers.NewDatabaseError("create schema "+d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table(name string) string {
	return fmt.Sprintf(`"%s"."%s"`, d.Schema, name)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			epic TEXT PRIMARY KEY,
			name TEXT,
			decimal_places INTEGER,
			calendar TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`, d.table("instruments"))
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("create instruments", err)
	}

	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			epic TEXT,
			timestamp BIGINT,
			close BIGINT,
			decimal_places INTEGER,
			direction TEXT,
			sequence BIGINT,
			PRIMARY KEY (epic, timestamp, sequence)
		);
	`, d.table("ticks"))
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("create ticks", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) SaveSnapshotsBulk(snapshots []models.MPriceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (epic, timestamp, close, decimal_places, direction, sequence)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT DO NOTHING
	`, d.table("ticks"))
	stmt, err := tx.Prepare(query)
	if err != nil {
		return helpers.NewDatabaseError("prepare ticks", err)
	}
	defer stmt.Close()

	for _, s := range snapshots {
		if _, err := stmt.Exec(s.Epic, s.Timestamp, s.Close, s.DecimalPlaces, string(s.Direction), s.Sequence); err != nil {
			return helpers.NewDatabaseError("insert tick", err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) LoadRecent(epic string, limit int) ([]models.MPriceSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT epic, timestamp, close, decimal_places, direction, sequence
		FROM %s
		WHERE epic = $1
		ORDER BY timestamp DESC, sequence DESC
		LIMIT $2
	`, d.table("ticks"))

	rows, err := d.DB.Query(query, epic, limit)
	if err != nil {
		return nil, helpers.NewDatabaseError("load ticks", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) CleanupOldData() error {
	cutoff := retentionCutoff(d.Config.DataRetentionDays)

	res, err := d.DB.Exec(fmt.Sprintf(`DELETE FROM %s WHERE timestamp < $1`, d.table("ticks")), cutoff)
	if err != nil {
		return helpers.NewDatabaseError("cleanup ticks", err)
	}

	n, _ := res.RowsAffected()
	d.Logger.Info("Cleanup removed %d ticks older than %d days", n, d.Config.DataRetentionDays)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
