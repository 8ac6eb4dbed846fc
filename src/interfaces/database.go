package interfaces

import "feed-observer/src/models"

// -----------------------------------------------------------------------------
// IDatabase defines the contract for the tick store.
// -----------------------------------------------------------------------------

type IDatabase interface {

	// -----------------------------------------------------------------------------

	// Initialize opens the connection and creates missing tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// RegisterInstruments upserts the configured instruments.
	RegisterInstruments(instruments []models.MInstrument) error

	// -----------------------------------------------------------------------------

	// SaveSnapshotsBulk inserts a batch of snapshots; duplicates are ignored.
	SaveSnapshotsBulk(snapshots []models.MPriceSnapshot) error

	// -----------------------------------------------------------------------------

	// LoadRecent returns up to limit of the newest snapshots of an epic, oldest first.
	LoadRecent(epic string, limit int) ([]models.MPriceSnapshot, error)

	// -----------------------------------------------------------------------------

	// CleanupOldData removes data older than the retention policy.
	CleanupOldData() error

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
