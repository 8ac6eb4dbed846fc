package session

import (
	"testing"

	"feed-observer/src/models"
)

func TestSessionAccessors(t *testing.T) {
	s := NewSession(models.MCredentials{APIKey: "abcdef123456", Username: "alice", Password: "secret"}, models.EnvironmentDemo)

	if s.Username() != "alice" || s.Environment() != models.EnvironmentDemo {
		t.Fatalf("unexpected session %+v", s)
	}
	if s.Credentials().Password != "secret" {
		t.Fatalf("credentials not kept")
	}

	info := s.Info()
	if info.APIKey != "********3456" {
		t.Fatalf("api key not masked: %q", info.APIKey)
	}
	if info.Username != "alice" || info.Environment != models.EnvironmentDemo {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestMaskSecretShort(t *testing.T) {
	if got := MaskSecret("abc"); got != "***" {
		t.Fatalf("got %q", got)
	}
	if got := MaskSecret(""); got != "" {
		t.Fatalf("got %q", got)
	}
}
