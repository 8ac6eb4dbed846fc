package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"DEBUG":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"WARNING": zerolog.WarnLevel,
		"warn":    zerolog.WarnLevel,
		"ERROR":   zerolog.ErrorLevel,
		"":        zerolog.InfoLevel,
		"bogus":   zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestLoggerWritesComponentAndMessage(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter(&buf, "INFO", "ConnectionManager")

	log.Info("logged in as %s", "alice")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if line["component"] != "ConnectionManager" {
		t.Fatalf("unexpected component: %v", line["component"])
	}
	if line["message"] != "logged in as alice" {
		t.Fatalf("unexpected message: %v", line["message"])
	}
	if line["level"] != "info" {
		t.Fatalf("unexpected level: %v", line["level"])
	}
}

func TestLoggerFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewLoggerWithWriter(&buf, "WARNING", "x")

	log.Debug("hidden")
	log.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}

	log.Warning("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Fatalf("expected warning line, got %q", buf.String())
	}
}

func TestNamedKeepsLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithWriter(&buf, "ERROR", "app")
	child := parent.Named("Monitor")

	if child.Name() != "Monitor" {
		t.Fatalf("unexpected name %q", child.Name())
	}
	if child.Level() != zerolog.ErrorLevel {
		t.Fatalf("expected error level, got %s", child.Level())
	}
	child.Error("boom")
	if !strings.Contains(buf.String(), `"component":"Monitor"`) {
		t.Fatalf("expected child component in %q", buf.String())
	}
}
