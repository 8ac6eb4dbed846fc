package models

import "github.com/shopspring/decimal"

// -----------------------------------------------------------------------------
// Direction of the last price move
// -----------------------------------------------------------------------------

type MDirection string

const (
	DirectionBuy   MDirection = "BUY"
	DirectionSell  MDirection = "SELL"
	DirectionStale MDirection = "STALE"
)

// -----------------------------------------------------------------------------

// MPriceTick is a single price update as delivered by the streaming channel.
// Direction may be empty, in which case it is derived from the previous close.
type MPriceTick struct {
	Epic      string          `json:"epic"`
	Timestamp int64           `json:"timestamp"` // epoch millis
	Price     decimal.Decimal `json:"price"`
	Direction MDirection      `json:"direction,omitempty"`
}

// -----------------------------------------------------------------------------

// MPriceSnapshot is an immutable point-in-time observation.
// Close is fixed-point: the displayed price is Close * 10^-DecimalPlaces.
type MPriceSnapshot struct {
	Epic          string     `json:"epic"`
	Timestamp     int64      `json:"timestamp"`
	Close         int64      `json:"close"`
	DecimalPlaces int32      `json:"decimal_places"`
	Direction     MDirection `json:"direction"`
	Sequence      int64      `json:"sequence"`
}

// Price returns the snapshot close as a decimal.
func (s MPriceSnapshot) Price() decimal.Decimal {
	return decimal.New(s.Close, -s.DecimalPlaces)
}
