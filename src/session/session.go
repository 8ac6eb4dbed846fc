package session

import (
	"strings"

	"feed-observer/src/models"
)

// -----------------------------------------------------------------------------

// Session is the immutable broker identity and target environment.
// One Session is created per process.
type Session struct {
	credentials models.MCredentials
	environment models.MEnvironment
}

// -----------------------------------------------------------------------------

func NewSession(credentials models.MCredentials, environment models.MEnvironment) *Session {
	return &Session{credentials: credentials, environment: environment}
}

// -----------------------------------------------------------------------------

func (s *Session) Credentials() models.MCredentials {
	return s.credentials
}

func (s *Session) Environment() models.MEnvironment {
	return s.environment
}

func (s *Session) Username() string {
	return s.credentials.Username
}

func (s *Session) APIKey() string {
	return s.credentials.APIKey
}

// -----------------------------------------------------------------------------

// Info returns the displayable session with the API key masked
func (s *Session) Info() models.MSessionInfo {
	return models.MSessionInfo{
		Environment: s.environment,
		Username:    s.credentials.Username,
		APIKey:      MaskSecret(s.credentials.APIKey),
	}
}

// -----------------------------------------------------------------------------

// MaskSecret keeps the last 4 characters of a secret
func MaskSecret(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return strings.Repeat("*", len(secret)-4) + secret[len(secret)-4:]
}
