package interfaces

import "feed-observer/src/models"

// -----------------------------------------------------------------------------
// IHealthMonitor exposes the last liveness probe and the recovery switch.
// -----------------------------------------------------------------------------

type IHealthMonitor interface {
	// Health returns the result of the last probe pass.
	Health() []models.MStreamHealth

	// CancelRecovery stops automatic re-login until the next successful login.
	CancelRecovery()
}
