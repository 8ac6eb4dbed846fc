package storage

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"feed-observer/src/helpers"
	"feed-observer/src/logger"
	"feed-observer/src/models"
)

// -----------------------------------------------------------------------------

type AsyncSQLiteDB struct {
	Config models.MStorageConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewAsyncSQLiteDB(cfg models.MStorageConfig, log *logger.Logger) (*AsyncSQLiteDB, error) {
	if cfg.DBPath == "" {
		return nil, helpers.NewConfigurationError("storage.db_path is required for sqlite")
	}
	return &AsyncSQLiteDB{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Initialize() error {
	dsn := d.Config.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return helpers.NewDatabaseError("open sqlite", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return helpers.NewDatabaseError("ping sqlite", err)
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		d.Logger.Warning("Failed to set busy timeout: %v", err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("SQLite store ready at %s", dsn)
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) createTables() error {
	// SQLite types: INTEGER for int64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS instruments (
			epic TEXT PRIMARY KEY,
			name TEXT,
			decimal_places INTEGER,
			calendar TEXT,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("create instruments", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS ticks (
			epic TEXT,
			timestamp INTEGER,
			close INTEGER,
			decimal_places INTEGER,
			direction TEXT,
			sequence INTEGER,
			PRIMARY KEY (epic, timestamp, sequence)
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return helpers.NewDatabaseError("create ticks", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) RegisterInstruments(instruments []models.MInstrument) error {
	if len(instruments) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO instruments (epic, name, decimal_places, calendar, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (epic) DO UPDATE SET
			name = excluded.name,
			decimal_places = excluded.decimal_places,
			calendar = excluded.calendar,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return helpers.NewDatabaseError("prepare instruments", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, inst := range instruments {
		if _, err := stmt.Exec(inst.Epic, inst.Name, inst.Precision, inst.Calendar, now); err != nil {
			return helpers.NewDatabaseError("register "+inst.Epic, err)
		}
	}

	return tx.Commit()
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) SaveSnapshotsBulk(snapshots []models.MPriceSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO ticks (epic, timestamp, close, decimal_places, direction, sequence)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
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

func (d *AsyncSQLiteDB) LoadRecent(epic string, limit int) ([]models.MPriceSnapshot, error) {
	rows, err := d.DB.Query(`
		SELECT epic, timestamp, close, decimal_places, direction, sequence
		FROM ticks
		WHERE epic = ?
		ORDER BY timestamp DESC, sequence DESC
		LIMIT ?
	`, epic, limit)
	if err != nil {
		return nil, helpers.NewDatabaseError("load ticks", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) CleanupOldData() error {
	cutoff := retentionCutoff(d.Config.DataRetentionDays)

	res, err := d.DB.Exec("DELETE FROM ticks WHERE timestamp < ?", cutoff)
	if err != nil {
		return helpers.NewDatabaseError("cleanup ticks", err)
	}

	n, _ := res.RowsAffected()
	d.Logger.Info("Cleanup removed %d ticks older than %d days", n, d.Config.DataRetentionDays)
	return nil
}

// -----------------------------------------------------------------------------

func (d *AsyncSQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Shared helpers
// -----------------------------------------------------------------------------

// retentionCutoff returns the epoch millis before which ticks are expired
func retentionCutoff(days int) int64 {
	return time.Now().UTC().AddDate(0, 0, -days).UnixMilli()
}

// -----------------------------------------------------------------------------

// scanSnapshots reads rows ordered newest first and returns them oldest first
func scanSnapshots(rows *sql.Rows) ([]models.MPriceSnapshot, error) {
	var out []models.MPriceSnapshot
	for rows.Next() {
		var s models.MPriceSnapshot
		var direction string
		if err := rows.Scan(&s.Epic, &s.Timestamp, &s.Close, &s.DecimalPlaces, &direction, &s.Sequence); err != nil {
			return nil, helpers.NewDatabaseError("scan tick", err)
		}
		s.Direction = models.MDirection(direction)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, helpers.NewDatabaseError("iterate ticks", err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
