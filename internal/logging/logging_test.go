package logging

import (
	"context"
	"log/slog"
	"testing"

	"vigil-siem/internal/config"
)

func TestSetup(t *testing.T) {
	ctx := context.Background()

	logger := Setup(config.LoggingConfig{Level: "debug", Format: "json"})
	if logger == nil {
		t.Fatal("Setup() returned nil logger")
	}
	if !logger.Enabled(ctx, slog.LevelDebug) {
		t.Error("debug level not enabled")
	}

	logger = Setup(config.LoggingConfig{Level: "warn", Format: "text"})
	if logger.Enabled(ctx, slog.LevelInfo) {
		t.Error("info enabled at warn level")
	}
}

func TestIsSensitiveField(t *testing.T) {
	tests := []struct {
		field string
		want  bool
	}{
		{"password", true},
		{"redis_password", true},
		{"API_KEY", true},
		{"Authorization", true},
		{"client_secret", true},
		{"vendor", false},
		{"address", false},
		{"topic", false},
	}
	for _, tt := range tests {
		if got := IsSensitiveField(tt.field); got != tt.want {
			t.Errorf("IsSensitiveField(%q) = %v, want %v", tt.field, got, tt.want)
		}
	}
}

func TestSafeValue(t *testing.T) {
	if got := SafeValue("password", "hunter2"); got != MaskedValue {
		t.Errorf("SafeValue() = %q, want masked", got)
	}
	if got := SafeValue("password", ""); got != "" {
		t.Errorf("SafeValue() on empty = %q, want empty", got)
	}
	if got := SafeValue("vendor", "acme"); got != "acme" {
		t.Errorf("SafeValue() = %q, want passthrough", got)
	}
}

func TestMaskTail(t *testing.T) {
	if got := MaskTail("sk_live_abcdef123456", 4); got != "sk_l****" {
		t.Errorf("MaskTail() = %q", got)
	}
	if got := MaskTail("short", 4); got != MaskedValue {
		t.Errorf("MaskTail() on short value = %q, want fully masked", got)
	}
	if got := MaskTail("", 4); got != "" {
		t.Errorf("MaskTail() on empty = %q", got)
	}
}
