package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/MrEthical07/identityauth/internal/appconfig"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONLoggerCarriesDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := newWithWriter(appconfig.LoggingConfig{Level: "info", Format: "json"}, "1.2.3", &buf)

	logger.Debug("hidden")
	logger.Info("started", "addr", ":8080")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %s", out)
	}
	for _, want := range []string{`"service":"identityauth"`, `"version":"1.2.3"`, `"addr":":8080"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q missing %s", out, want)
		}
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	newWithWriter(appconfig.LoggingConfig{Format: "text"}, "dev", &buf).Warn("careful")
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Fatalf("unexpected text output %q", buf.String())
	}
}
