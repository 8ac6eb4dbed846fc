package interfaces

import (
	"context"
	"time"

	"feed-observer/src/models"
)

// -----------------------------------------------------------------------------
// IPriceListener receives each accepted snapshot. Implementations must not block.
// -----------------------------------------------------------------------------

type IPriceListener interface {
	OnSnapshot(instrument models.MInstrument, snapshot models.MPriceSnapshot)
}

// -----------------------------------------------------------------------------
// IPriceView is the read side of an instrument price stream.
// -----------------------------------------------------------------------------

type IPriceView interface {
	Instrument() models.MInstrument
	Latest() (models.MPriceSnapshot, bool)
	History() []models.MPriceSnapshot
	UpdateCount() int64
	LastUpdateAt() time.Time
	SubscribedAt() time.Time
}

// -----------------------------------------------------------------------------
// IPriceStreams is the read and repair side of the stream registry.
// -----------------------------------------------------------------------------

type IPriceStreams interface {

	// Views returns every subscribed stream ordered by instrument name.
	Views() []IPriceView

	// -----------------------------------------------------------------------------

	// View returns the stream of epic, nil when not subscribed.
	View(epic string) IPriceView

	// -----------------------------------------------------------------------------

	// Resubscribe re-sends the wire subscription of a subscribed epic.
	Resubscribe(ctx context.Context, epic string) error
}
