package interfaces

import (
	"context"

	"feed-observer/src/models"
)

// -----------------------------------------------------------------------------
// IConnectionManager is the management surface of the session lifecycle.
// REST and gRPC both wrap it.
// -----------------------------------------------------------------------------

type IConnectionManager interface {
	Login(ctx context.Context) bool
	Logout(ctx context.Context) bool
	Relogin(ctx context.Context, generation uint64) bool
	LogoutGeneration() uint64
	IsLoggedIn() bool
	Status() models.MSessionStatus
	GetLoginDetails() (models.MLoginDetails, error)

	// -----------------------------------------------------------------------------
	// Pass-through queries

	ListAccounts(ctx context.Context) ([]models.MAccount, error)
	ListPositions(ctx context.Context) ([]models.MMarketPosition, error)
	GetMarkets(ctx context.Context, epic string) (*models.MMarkets, error)
	ListMarkets(ctx context.Context, nodeID string, latest bool) (*models.MMarketNavigation, error)
}
