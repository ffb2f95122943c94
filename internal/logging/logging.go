// Package logging configures structured logging and keeps secrets out
// of log output.
package logging

import (
	"log/slog"
	"os"
	"strings"

	"vigil-siem/internal/config"
)

// Setup installs the process-wide slog default from configuration and
// returns it.
func Setup(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// sensitiveFields are configuration key names whose values must never
// reach the logs. Matching is by substring on the lowercased name.
var sensitiveFields = []string{
	"password",
	"secret",
	"token",
	"api_key",
	"apikey",
	"authorization",
	"credential",
	"cookie",
}

// MaskedValue replaces sensitive values in log output.
const MaskedValue = "[REDACTED]"

// IsSensitiveField reports whether a field name looks like it carries a
// secret.
func IsSensitiveField(name string) bool {
	lower := strings.ToLower(name)
	for _, s := range sensitiveFields {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// SafeValue returns the value, or the mask when the field is sensitive
// and the value is non-empty.
func SafeValue(name, value string) string {
	if value == "" || !IsSensitiveField(name) {
		return value
	}
	return MaskedValue
}

// MaskTail keeps the first n characters of a secret for identification
// and masks the rest. Short values are masked completely.
func MaskTail(s string, n int) string {
	if s == "" {
		return s
	}
	if len(s) <= n*2 {
		return MaskedValue
	}
	return s[:n] + "****"
}
