package distribution

import (
	"vigil-siem/internal/alerting"
	"vigil-siem/internal/correlation"
	"vigil-siem/internal/schema"
)

// Filter holds the optional per-subscription filter variables. Zero
// fields are unconstrained; set fields are conjunctive. AnalystID is
// the caller's identity, used by the assignment and approval topics.
type Filter struct {
	Severities  []string        `json:"severities,omitempty"`
	MinSeverity schema.Severity `json:"min_severity,omitempty"`
	MinScore    float64         `json:"min_score,omitempty"`
	Vendors     []string        `json:"vendors,omitempty"`
	Addresses   []string        `json:"addresses,omitempty"`
	Techniques  []string        `json:"techniques,omitempty"`
	CaseID      string          `json:"case_id,omitempty"`
	AnalystID   string          `json:"analyst_id,omitempty"`
}

// Match evaluates the filter against one item on the given topic.
// Payload types the filter has no rules for pass unfiltered.
func (f Filter) Match(topic Topic, payload any) bool {
	switch topic {
	case TopicRawEvents:
		e, ok := payload.(*schema.Event)
		return ok && e.RiskScore >= f.MinScore && f.matchEvent(e)

	case TopicCriticalAlerts:
		// Escalation notifications ride the critical-alerts topic and
		// bypass the alert-shaped filter variables.
		if _, ok := payload.(*alerting.Escalation); ok {
			return true
		}
		a, ok := payload.(*alerting.Alert)
		if !ok {
			return false
		}
		if a.Score < f.MinScore {
			return false
		}
		if a.Event != nil {
			return f.matchEvent(a.Event)
		}
		return true

	case TopicCorrelations:
		r, ok := payload.(*correlation.Result)
		return ok && r.Score >= f.MinScore

	case TopicCaseUpdates:
		c, ok := payload.(*schema.CaseUpdate)
		if !ok {
			return false
		}
		return f.CaseID == "" || c.CaseID == f.CaseID

	case TopicCaseAssignments:
		c, ok := payload.(*schema.CaseUpdate)
		if !ok {
			return false
		}
		return f.AnalystID != "" && c.Assignee == f.AnalystID

	case TopicPlaybookUpdates:
		p, ok := payload.(*schema.PlaybookExecution)
		if !ok {
			return false
		}
		return f.CaseID == "" || p.CaseID == f.CaseID

	case TopicApprovalRequests:
		p, ok := payload.(*schema.PlaybookExecution)
		if !ok {
			return false
		}
		if p.StepStatus != schema.StepAwaitingApproval {
			return false
		}
		return f.AnalystID != "" && contains(p.Approvers, f.AnalystID)
	}

	return true
}

// matchEvent applies the event-shaped constraints. The score threshold
// is applied by the caller against whichever score the topic carries.
func (f Filter) matchEvent(e *schema.Event) bool {
	if len(f.Severities) > 0 && !contains(f.Severities, string(e.Severity)) {
		return false
	}
	if f.MinSeverity != "" && e.Severity.Rank() < f.MinSeverity.Rank() {
		return false
	}
	if len(f.Vendors) > 0 && !contains(f.Vendors, e.Origin.Vendor) {
		return false
	}
	if len(f.Addresses) > 0 && !contains(f.Addresses, e.Origin.Address) {
		return false
	}
	if len(f.Techniques) > 0 && !intersects(f.Techniques, e.Techniques) {
		return false
	}
	return true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func intersects(set, values []string) bool {
	for _, v := range values {
		if contains(set, v) {
			return true
		}
	}
	return false
}
