package models

import "time"

// -----------------------------------------------------------------------------
// Session state
// -----------------------------------------------------------------------------

type MSessionStatus string

const (
	StatusLoggedOut MSessionStatus = "LOGGED_OUT"
	StatusLoggingIn MSessionStatus = "LOGGING_IN"
	StatusLoggedIn  MSessionStatus = "LOGGED_IN"
)

// -----------------------------------------------------------------------------

type MEnvironment string

const (
	EnvironmentDemo MEnvironment = "DEMO"
	EnvironmentLive MEnvironment = "LIVE"
)

// -----------------------------------------------------------------------------

// MCredentials identify the broker account owner.
type MCredentials struct {
	APIKey   string
	Username string
	Password string
}

// -----------------------------------------------------------------------------

// MLoginDetails are returned by a successful broker login.
type MLoginDetails struct {
	AccountID         string    `json:"account_id"`
	ClientID          string    `json:"client_id"`
	StreamingEndpoint string    `json:"streaming_endpoint"`
	CST               string    `json:"-"`
	SecurityToken     string    `json:"-"`
	LoggedInAt        time.Time `json:"logged_in_at"`
}

// MConnectionStatus is the management view of the connection.
type MConnectionStatus struct {
	Status           MSessionStatus  `json:"status"`
	LoggedIn         bool            `json:"logged_in"`
	ChannelConnected bool            `json:"channel_connected"`
	Details          *MLoginDetails  `json:"details,omitempty"`
	Streams          []MStreamHealth `json:"streams"`
}

// MSessionInfo is the displayable part of the session.
type MSessionInfo struct {
	Environment MEnvironment `json:"environment"`
	Username    string       `json:"username"`
	APIKey      string       `json:"api_key"`
}
