// Package schema defines the canonical event schema for Vigil-SIEM.
// All ingested observations are normalized to this structure before
// correlation. Events are immutable once constructed; pipeline stages
// read them, never mutate them.
package schema

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a single atomic security observation.
type Event struct {
	// Required fields
	EventID   uuid.UUID `json:"event_id" validate:"required"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
	Name      string    `json:"name" validate:"required,action_format"`
	Category  string    `json:"category,omitempty" validate:"max=128"`
	Severity  Severity  `json:"severity" validate:"required,oneof=info low medium high critical"`
	Origin    Origin    `json:"origin" validate:"required"`

	// Optional fields
	RiskScore  float64        `json:"risk_score,omitempty" validate:"min=0,max=1"`
	Phase      string         `json:"phase,omitempty" validate:"max=64"`
	Techniques []string       `json:"techniques,omitempty" validate:"max=64,dive,max=32"`
	Attributes map[string]any `json:"attributes,omitempty"`

	// Internal fields (set by the ingestor)
	SchemaVersion string    `json:"schema_version"`
	ReceivedAt    time.Time `json:"received_at"`
	Channel       string    `json:"channel,omitempty"`
}

// Origin identifies where the event came from. The correlation engine
// derives bucketing keys from these attributes.
type Origin struct {
	Vendor     string `json:"vendor" validate:"required,max=256"`
	Product    string `json:"product,omitempty" validate:"max=256"`
	Address    string `json:"address,omitempty" validate:"max=64"`
	ActorID    string `json:"actor_id,omitempty" validate:"max=256"`
	ResourceID string `json:"resource_id,omitempty" validate:"max=256"`
	Location   string `json:"location,omitempty" validate:"max=128"`
}

// Severity represents the severity of an event or alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid checks if the severity is a valid value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rank returns the numeric rank of the severity, higher is worse.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityLow:
		return 2
	case SeverityMedium:
		return 3
	case SeverityHigh:
		return 4
	case SeverityCritical:
		return 5
	}
	return 0
}

// SchemaVersionCurrent is the current version of the event schema.
const SchemaVersionCurrent = "1.0.0"
