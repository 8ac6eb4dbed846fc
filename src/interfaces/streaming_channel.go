package interfaces

import (
	"context"
	"time"

	"feed-observer/src/models"
)

// TickHandler receives every price tick delivered by a streaming channel.
type TickHandler func(tick models.MPriceTick) error

// -----------------------------------------------------------------------------
// IStreamingChannel is the broker streaming connection.
// -----------------------------------------------------------------------------

type IStreamingChannel interface {

	// Connect opens the channel with the given login details. Connecting an open channel is a no-op.
	Connect(ctx context.Context, details models.MLoginDetails) error

	// -----------------------------------------------------------------------------

	// Disconnect closes the channel. Subscriptions are kept and replayed on the next Connect.
	Disconnect() error

	// -----------------------------------------------------------------------------

	IsConnected() bool

	// -----------------------------------------------------------------------------

	// LastMessageAt is the local receive time of the last message, heartbeats included.
	LastMessageAt() time.Time

	// -----------------------------------------------------------------------------

	// Subscribe adds an epic to the subscription set. Subscribing twice is a no-op.
	Subscribe(ctx context.Context, epic string) error

	// -----------------------------------------------------------------------------

	Unsubscribe(ctx context.Context, epic string) error

	// -----------------------------------------------------------------------------

	// Resubscribe re-sends the subscription of an epic already in the set.
	Resubscribe(ctx context.Context, epic string) error

	// -----------------------------------------------------------------------------

	// SetTickHandler installs the delivery callback.
	SetTickHandler(handler TickHandler)
}
