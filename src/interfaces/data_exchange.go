package interfaces

import "feed-observer/src/models"

// -----------------------------------------------------------------------------
// IDataExchanger defines the interface for sharing data with external systems (Server/Push).
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// -----------------------------------------------------------------------------
	// Broadcast pushes an update to every connected client and keeps it as the latest state.
	Broadcast(update *models.MFeedUpdate)

	// -----------------------------------------------------------------------------
	// Start the server
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
