package correlation

import (
	"time"

	"github.com/google/uuid"

	"vigil-siem/internal/schema"
)

// Result is one correlation detection: a rule matched around a
// triggering event. At most one Result is produced per rule per trigger;
// independent rules may each produce one for the same event.
type Result struct {
	ID         uuid.UUID       `json:"id"`
	RuleID     string          `json:"rule_id"`
	Kind       RuleKind        `json:"kind"`
	Score      float64         `json:"score"`
	Primary    *schema.Event   `json:"primary"`
	Related    []*schema.Event `json:"related"`
	DetectedAt time.Time       `json:"detected_at"`
	Summary    string          `json:"summary"`
}
