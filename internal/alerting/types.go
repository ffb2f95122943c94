// Package alerting turns critical events and correlation results into
// deduplicated, actionable alerts.
package alerting

import (
	"time"

	"github.com/google/uuid"

	"vigil-siem/internal/correlation"
	"vigil-siem/internal/schema"
)

// Alert is the terminal output of the alert processor. Severity is
// always critical; anything below the critical threshold never becomes
// an Alert.
type Alert struct {
	ID                 uuid.UUID           `json:"id"`
	AlertKey           string              `json:"alert_key"`
	Severity           schema.Severity     `json:"severity"`
	Score              float64             `json:"score"`
	Reasoning          string              `json:"reasoning"`
	RecommendedActions []string            `json:"recommended_actions"`
	EscalationRequired bool                `json:"escalation_required"`
	Timestamp          time.Time           `json:"timestamp"`
	Event              *schema.Event       `json:"event,omitempty"`
	Result             *correlation.Result `json:"result,omitempty"`
}

// Escalation is the separate notification emitted alongside an alert
// that requires escalation.
type Escalation struct {
	AlertID   uuid.UUID `json:"alert_id"`
	AlertKey  string    `json:"alert_key"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertRecord tracks suppression history for one (origin, signature)
// pair. OccurrenceCount counts every candidate seen, suppressed or not;
// LastAlertTime advances only when a candidate is accepted.
type AlertRecord struct {
	AlertKey        string    `json:"alert_key"`
	FirstSeen       time.Time `json:"first_seen"`
	LastAlertTime   time.Time `json:"last_alert_time"`
	OccurrenceCount int       `json:"occurrence_count"`
}
