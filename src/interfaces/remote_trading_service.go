package interfaces

import (
	"context"

	"feed-observer/src/models"
)

// -----------------------------------------------------------------------------
// IRemoteTradingService is the broker REST API consumed by the connection manager.
// -----------------------------------------------------------------------------

type IRemoteTradingService interface {

	// Login authenticates the session and returns the login details.
	Login(ctx context.Context) (*models.MLoginDetails, error)

	// -----------------------------------------------------------------------------

	// Logout ends the remote session (best-effort).
	Logout(ctx context.Context) error

	// -----------------------------------------------------------------------------

	GetAccountList(ctx context.Context) ([]models.MAccount, error)

	// -----------------------------------------------------------------------------

	GetPositionList(ctx context.Context) ([]models.MMarketPosition, error)

	// -----------------------------------------------------------------------------

	// GetMarkets returns the market of an epic; includeDetail=false asks for the snapshot only.
	GetMarkets(ctx context.Context, epic string, includeDetail bool) (*models.MMarkets, error)

	// -----------------------------------------------------------------------------

	// GetMarketNavigation returns a navigation node; latest=true bypasses any cache.
	GetMarketNavigation(ctx context.Context, nodeID string, latest bool) (*models.MMarketNavigation, error)
}
