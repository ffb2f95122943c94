// Package correlation provides stateful event correlation over bounded
// per-key sliding windows.
package correlation

import (
	"fmt"
	"time"

	"vigil-siem/internal/config"
)

// RuleKind defines the kind of correlation rule.
type RuleKind string

const (
	// KindTemporal counts event pairs inside a time window that share an
	// action category and origin.
	KindTemporal RuleKind = "temporal"
	// KindSpatial counts event pairs sharing an address, subnet, or
	// coarse location, regardless of time proximity.
	KindSpatial RuleKind = "spatial"
	// KindBehavioral scores a per-actor window on off-hours activity,
	// action diversity, and location diversity.
	KindBehavioral RuleKind = "behavioral"
	// KindChain detects kill-chain phase progressions ending at the
	// triggering event.
	KindChain RuleKind = "chain"
)

// Default minimum event counts per rule kind, applied when the
// configuration leaves min_events unset.
const (
	defaultTemporalMin   = 2
	defaultSpatialMin    = 2
	defaultBehavioralMin = 5
	defaultChainMin      = 3
)

// Rule is a static correlation rule, immutable after startup.
type Rule struct {
	ID        string
	Kind      RuleKind
	Enabled   bool
	Window    time.Duration
	MinEvents int
}

// RuleFromConfig builds a Rule from its configuration entry, applying
// kind-specific defaults.
func RuleFromConfig(rc config.RuleConfig) (*Rule, error) {
	kind := RuleKind(rc.Kind)

	min := rc.MinEvents
	if min == 0 {
		switch kind {
		case KindTemporal:
			min = defaultTemporalMin
		case KindSpatial:
			min = defaultSpatialMin
		case KindBehavioral:
			min = defaultBehavioralMin
		case KindChain:
			min = defaultChainMin
		default:
			return nil, fmt.Errorf("unknown rule kind: %q", rc.Kind)
		}
	}

	switch kind {
	case KindTemporal, KindSpatial, KindBehavioral, KindChain:
	default:
		return nil, fmt.Errorf("unknown rule kind: %q", rc.Kind)
	}

	if rc.Window <= 0 {
		return nil, fmt.Errorf("rule %s: window must be positive", rc.ID)
	}

	return &Rule{
		ID:        rc.ID,
		Kind:      kind,
		Enabled:   rc.Enabled,
		Window:    rc.Window,
		MinEvents: min,
	}, nil
}

// RulesFromConfig builds the full rule set from configuration.
func RulesFromConfig(rcs []config.RuleConfig) ([]*Rule, error) {
	rules := make([]*Rule, 0, len(rcs))
	for i, rc := range rcs {
		rule, err := RuleFromConfig(rc)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
