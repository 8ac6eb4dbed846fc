package storage

import (
	"fmt"
	"time"

	"feed-observer/src/helpers"
	"feed-observer/src/models"
)

// Instrument registration kept apart from the tick path

// RegisterInstruments upserts the configured instruments
func (d *PostgresDB) RegisterInstruments(instruments []models.MInstrument) error {
	if len(instruments) == 0 {
		return nil
	}

	tx, err := d.DB.Begin()
	if err != nil {
		return helpers.NewDatabaseError("begin", err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (epic, name, decimal_places, calendar, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (epic) DO UPDATE SET
			name = EXCLUDED.name,
			decimal_places = EXCLUDED.decimal_places,
			calendar = EXCLUDED.calendar,
			updated_at = EXCLUDED.updated_at
	`, d.table("instruments"))

	stmt, err := tx.Prepare(query)
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
