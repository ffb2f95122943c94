// Package errors sanitizes error text that crosses the process
// boundary, so internal paths, addresses, and credentials never reach
// subscribers or API callers.
package errors

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
)

var (
	filePathPattern = regexp.MustCompile(`(/[a-zA-Z0-9_\-./]+)`)
	ipPattern       = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	credentialHint  = regexp.MustCompile(`(?i)(password=|secret=|token=|api[_-]?key=|sasl|broker)`)
)

// production gates sanitization. In development the original error text
// passes through for debugging.
var production atomic.Bool

// SetProductionMode enables outbound error sanitization. Called once
// during startup.
func SetProductionMode(on bool) {
	production.Store(on)
}

// Sanitize strips sensitive detail from an error before it leaves the
// process. Returns the error unchanged in development mode.
func Sanitize(err error) error {
	if err == nil {
		return nil
	}
	if !production.Load() {
		return err
	}
	return errors.New(SanitizeString(err.Error()))
}

// SanitizeString strips sensitive detail from a string.
func SanitizeString(s string) string {
	if !production.Load() {
		return s
	}

	s = filePathPattern.ReplaceAllStringFunc(s, func(match string) string {
		return filepath.Base(match)
	})

	// Keep two octets so operators can still identify the network.
	s = ipPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := strings.Split(match, ".")
		return fmt.Sprintf("%s.%s.x.x", parts[0], parts[1])
	})

	if credentialHint.MatchString(s) {
		return "upstream operation failed"
	}

	if strings.Contains(s, "goroutine") || strings.Count(s, "\n") > 3 {
		return "internal error"
	}

	return s
}

// SafeMessage returns a caller-safe message for an error. A small set
// of intentionally user-facing messages passes through unchanged.
func SafeMessage(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	lower := strings.ToLower(msg)
	for _, safe := range []string{
		"unknown topic",
		"min_score must be",
		"min_severity must be",
		"unauthorized",
		"forbidden",
		"not found",
	} {
		if strings.Contains(lower, safe) {
			return msg
		}
	}

	return SanitizeString(msg)
}
