package alerting

import (
	"log/slog"
	"strings"

	"vigil-siem/internal/schema"
)

var malwareMarkers = []string{"malware", "ransomware", "trojan", "worm", "virus", "rootkit"}

// recommendActions derives response steps from the triggering event. A
// panic inside the heuristics degrades to an empty list; the alert is
// still emitted.
func recommendActions(e *schema.Event) (actions []string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("action recommendation panicked", "event_id", e.EventID, "panic", r)
			actions = nil
		}
	}()

	name := strings.ToLower(e.Name)
	for _, marker := range malwareMarkers {
		if strings.Contains(name, marker) {
			actions = append(actions,
				"isolate affected host",
				"run full antimalware scan",
				"collect malware samples for analysis",
			)
			break
		}
	}

	if e.Origin.Address != "" && e.Severity == schema.SeverityCritical {
		actions = append(actions,
			"block source address "+e.Origin.Address,
			"investigate traffic from source address",
		)
	}

	if e.Origin.ActorID != "" {
		actions = append(actions,
			"review account activity for "+e.Origin.ActorID,
			"consider account suspension",
		)
	}

	return actions
}
