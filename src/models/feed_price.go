package models

// -----------------------------------------------------------------------------
// Display structures
// -----------------------------------------------------------------------------

// MClassification is the classified view of the latest snapshot of a stream.
type MClassification struct {
	HasData     bool       `json:"has_data"`
	Direction   MDirection `json:"direction"`
	Price       string     `json:"price"`
	LastUpdated string     `json:"last_updated"`
	UpdateCount int64      `json:"update_count"`
	Color       string     `json:"direction_color"`
}

// MFeedPrice is one row of the prices page.
type MFeedPrice struct {
	ID          string     `json:"id"`
	Epic        string     `json:"epic"`
	Instrument  string     `json:"instrument"`
	HasData     bool       `json:"has_data"`
	Price       string     `json:"price"`
	Direction   MDirection `json:"direction"`
	LastUpdated string     `json:"last_updated"`
	UpdateCount int64      `json:"update_count"`
	Color       string     `json:"direction_color"`
	TickVolume  int        `json:"tick_volume"`
}

// MFeed is a feed price enriched with its broker market snapshot.
type MFeed struct {
	MFeedPrice
	Market *MMarkets `json:"market,omitempty"`
}

// MFeedUpdate is pushed to websocket clients.
type MFeedUpdate struct {
	Type      string       `json:"type"` // "INITIAL" or "UPDATE"
	Timestamp int64        `json:"timestamp"`
	LoggedIn  bool         `json:"logged_in"`
	Prices    []MFeedPrice `json:"prices"`
}

// MStreamHealth is the result of one liveness probe.
type MStreamHealth struct {
	Epic         string `json:"epic"`
	Alive        bool   `json:"alive"`
	MarketOpen   bool   `json:"market_open"`
	SilentMs     int64  `json:"silent_ms"`
	LastUpdateAt int64  `json:"last_update_at"`
	Resubscribed bool   `json:"resubscribed"`
}
