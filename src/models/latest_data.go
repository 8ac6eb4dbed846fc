package models

// -----------------------------------------------------------------------------
// Dashboard pages and client commands
// -----------------------------------------------------------------------------

// MFeedsPage is the feeds page: session identity plus every feed.
type MFeedsPage struct {
	Environment MEnvironment `json:"environment"`
	Username    string       `json:"username"`
	LoggedIn    bool         `json:"logged_in"`
	Timestamp   int64        `json:"timestamp"`
	Feeds       []MFeed      `json:"feeds"`
}

// MHistoryPage is the in-memory history of one stream.
type MHistoryPage struct {
	Instrument  MInstrument      `json:"instrument"`
	UpdateCount int64            `json:"update_count"`
	History     []MPriceSnapshot `json:"history"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

// MSubscribeCommand narrows the websocket pushes of one client to some epics.
// An empty list restores every epic.
type MSubscribeCommand struct {
	Command string   `json:"command"` // "subscribe"
	Epics   []string `json:"epics"`
}
