package errors

import (
	"fmt"
	"strings"
	"testing"
)

func TestSanitize_DevelopmentPassthrough(t *testing.T) {
	SetProductionMode(false)
	defer SetProductionMode(false)

	err := fmt.Errorf("open /etc/vigil/config.yaml: permission denied")
	if got := Sanitize(err); got.Error() != err.Error() {
		t.Errorf("Sanitize() changed error in development mode: %q", got)
	}
}

func TestSanitizeString_Production(t *testing.T) {
	SetProductionMode(true)
	defer SetProductionMode(false)

	t.Run("file paths reduced to base name", func(t *testing.T) {
		got := SanitizeString("open /etc/vigil/config.yaml: permission denied")
		if strings.Contains(got, "/etc/vigil") {
			t.Errorf("path leaked: %q", got)
		}
		if !strings.Contains(got, "config.yaml") {
			t.Errorf("base name lost: %q", got)
		}
	})

	t.Run("ip addresses partially masked", func(t *testing.T) {
		got := SanitizeString("dial tcp 192.168.14.22:9092: connection refused")
		if strings.Contains(got, "192.168.14.22") {
			t.Errorf("full address leaked: %q", got)
		}
		if !strings.Contains(got, "192.168.x.x") {
			t.Errorf("network octets lost: %q", got)
		}
	})

	t.Run("credential hints collapse entirely", func(t *testing.T) {
		got := SanitizeString("redis auth failed: password=hunter2")
		if strings.Contains(got, "hunter2") {
			t.Errorf("credential leaked: %q", got)
		}
	})

	t.Run("stack traces collapse", func(t *testing.T) {
		got := SanitizeString("panic: boom\ngoroutine 1 [running]:\nmain.main()\n\t/app/main.go:10")
		if got != "internal error" {
			t.Errorf("SanitizeString() = %q, want generic message", got)
		}
	})
}

func TestSafeMessage(t *testing.T) {
	SetProductionMode(true)
	defer SetProductionMode(false)

	t.Run("user-facing messages pass through", func(t *testing.T) {
		err := fmt.Errorf("unknown topic: %q", "made-up")
		if got := SafeMessage(err); !strings.Contains(got, "unknown topic") {
			t.Errorf("SafeMessage() = %q, want passthrough", got)
		}
	})

	t.Run("internal detail sanitized", func(t *testing.T) {
		err := fmt.Errorf("read /var/lib/vigil/state.db: input/output error")
		if got := SafeMessage(err); strings.Contains(got, "/var/lib") {
			t.Errorf("SafeMessage() leaked path: %q", got)
		}
	})

	t.Run("nil error yields empty", func(t *testing.T) {
		if got := SafeMessage(nil); got != "" {
			t.Errorf("SafeMessage(nil) = %q", got)
		}
	})
}
