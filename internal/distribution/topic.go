// Package distribution fans outgoing pipeline items out to live
// subscribers. Every subscriber declares a permission scope and a
// filter; an item is delivered only when both accept it. Delivery is
// push-only with no replay: items published before a subscription
// opened are never seen by it.
package distribution

// Topic identifies one outbound stream.
type Topic string

const (
	TopicRawEvents        Topic = "raw-events"
	TopicCriticalAlerts   Topic = "critical-alerts"
	TopicCaseUpdates      Topic = "case-updates"
	TopicCaseAssignments  Topic = "case-assignments"
	TopicPlaybookUpdates  Topic = "playbook-updates"
	TopicApprovalRequests Topic = "approval-requests"
	TopicThreatIntel      Topic = "threat-intel"
	TopicIOCUpdates       Topic = "ioc-updates"
	TopicAttackPatterns   Topic = "attack-patterns"
	TopicCorrelations     Topic = "correlations"
	TopicSystemHealth     Topic = "system-health"
)

// Topics lists every outbound topic.
var Topics = []Topic{
	TopicRawEvents,
	TopicCriticalAlerts,
	TopicCaseUpdates,
	TopicCaseAssignments,
	TopicPlaybookUpdates,
	TopicApprovalRequests,
	TopicThreatIntel,
	TopicIOCUpdates,
	TopicAttackPatterns,
	TopicCorrelations,
	TopicSystemHealth,
}

// Capability is an opaque, pre-validated permission flag supplied at
// subscribe time by an already-authenticated caller. Issuance and
// authentication happen outside this process.
type Capability string

const (
	CapReadSecurityEvents Capability = "read:security-events"
	CapReadCriticalAlerts Capability = "read:critical-alerts"
	CapReadCases          Capability = "read:cases"
	CapReadPlaybooks      Capability = "read:playbooks"
	CapApprovePlaybooks   Capability = "approve:playbooks"
	CapReadThreatIntel    Capability = "read:threat-intel"
	CapReadCorrelations   Capability = "read:correlations"
	CapReadSystemHealth   Capability = "read:system-health"
)

// topicCapability maps each topic to the capability it requires.
var topicCapability = map[Topic]Capability{
	TopicRawEvents:        CapReadSecurityEvents,
	TopicCriticalAlerts:   CapReadCriticalAlerts,
	TopicCaseUpdates:      CapReadCases,
	TopicCaseAssignments:  CapReadCases,
	TopicPlaybookUpdates:  CapReadPlaybooks,
	TopicApprovalRequests: CapApprovePlaybooks,
	TopicThreatIntel:      CapReadThreatIntel,
	TopicIOCUpdates:       CapReadThreatIntel,
	TopicAttackPatterns:   CapReadThreatIntel,
	TopicCorrelations:     CapReadCorrelations,
	TopicSystemHealth:     CapReadSystemHealth,
}

// ValidTopic reports whether the topic is one of the outbound streams.
func ValidTopic(t Topic) bool {
	_, ok := topicCapability[t]
	return ok
}

// Scope is the set of capabilities a subscriber holds.
type Scope map[Capability]bool

// NewScope builds a scope from capability flags.
func NewScope(caps ...Capability) Scope {
	s := make(Scope, len(caps))
	for _, c := range caps {
		s[c] = true
	}
	return s
}

// Allows reports whether the scope covers the topic's capability.
// Unknown topics are never allowed.
func (s Scope) Allows(t Topic) bool {
	cap, ok := topicCapability[t]
	if !ok {
		return false
	}
	return s[cap]
}
