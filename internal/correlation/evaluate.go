package correlation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"vigil-siem/internal/schema"
)

var resultNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("vigil-siem/correlation/result"))

// resultID derives a stable ID from the rule and trigger. At most one
// result fires per rule per trigger, so the pair is unique, and a
// replay of the same input yields the same ID.
func resultID(rule *Rule, trigger *schema.Event) uuid.UUID {
	return uuid.NewSHA1(resultNamespace, []byte(rule.ID+"|"+trigger.EventID.String()))
}

// evaluateTemporal counts event pairs within the rule window around the
// trigger that share an action category and origin address. Fires when
// both the pair count and the number of involved events reach the rule
// minimum. Score = min(pairs/10, 1.0).
func evaluateTemporal(rule *Rule, buf *Buffer, trigger *schema.Event) *Result {
	cutoff := trigger.Timestamp.Add(-rule.Window)

	var windowed []*schema.Event
	for _, e := range buf.Events() {
		if !e.Timestamp.Before(cutoff) && !e.Timestamp.After(trigger.Timestamp) {
			windowed = append(windowed, e)
		}
	}

	pairs := 0
	involved := make(map[uuid.UUID]*schema.Event)
	for i := 0; i < len(windowed); i++ {
		for j := i + 1; j < len(windowed); j++ {
			if temporalPair(windowed[i], windowed[j]) {
				pairs++
				involved[windowed[i].EventID] = windowed[i]
				involved[windowed[j].EventID] = windowed[j]
			}
		}
	}

	if pairs < rule.MinEvents || len(involved) < rule.MinEvents {
		return nil
	}

	related := orderedEvents(windowed, involved)
	return &Result{
		ID:         resultID(rule, trigger),
		RuleID:     rule.ID,
		Kind:       KindTemporal,
		Score:      capScore(float64(pairs) / 10),
		Primary:    trigger,
		Related:    related,
		DetectedAt: time.Now().UTC(),
		Summary: fmt.Sprintf("%d related %q events from %s within %s",
			len(related), trigger.Category, originLabel(trigger), rule.Window),
	}
}

// temporalPair reports whether two events are temporally correlated:
// same action category and same origin.
func temporalPair(a, b *schema.Event) bool {
	if a.Category == "" || a.Category != b.Category {
		return false
	}
	return a.Origin.Vendor == b.Origin.Vendor && a.Origin.Address == b.Origin.Address
}

// evaluateSpatial counts event pairs sharing an address, /24 subnet, or
// coarse location, without a time-proximity requirement.
// Score = min(pairs/5, 1.0).
func evaluateSpatial(rule *Rule, buf *Buffer, trigger *schema.Event) *Result {
	events := buf.Events()

	pairs := 0
	involved := make(map[uuid.UUID]*schema.Event)
	for i := 0; i < len(events); i++ {
		for j := i + 1; j < len(events); j++ {
			if spatialPair(events[i], events[j]) {
				pairs++
				involved[events[i].EventID] = events[i]
				involved[events[j].EventID] = events[j]
			}
		}
	}

	if pairs < rule.MinEvents || len(involved) < rule.MinEvents {
		return nil
	}

	related := orderedEvents(events, involved)
	return &Result{
		ID:         resultID(rule, trigger),
		RuleID:     rule.ID,
		Kind:       KindSpatial,
		Score:      capScore(float64(pairs) / 5),
		Primary:    trigger,
		Related:    related,
		DetectedAt: time.Now().UTC(),
		Summary: fmt.Sprintf("%d events sharing network or location proximity with %s",
			len(related), originLabel(trigger)),
	}
}

// spatialPair reports whether two events are spatially correlated: same
// address, same /24 subnet, or same coarse location.
func spatialPair(a, b *schema.Event) bool {
	if a.Origin.Address != "" && a.Origin.Address == b.Origin.Address {
		return true
	}
	if sa, sb := subnet24(a.Origin.Address), subnet24(b.Origin.Address); sa != "" && sa == sb {
		return true
	}
	return a.Origin.Location != "" && a.Origin.Location == b.Origin.Location
}

// subnet24 returns the /24 prefix of a dotted-quad IPv4 address, or ""
// when the address does not look like one.
func subnet24(addr string) string {
	parts := strings.Split(addr, ".")
	if len(parts) != 4 {
		return ""
	}
	return strings.Join(parts[:3], ".")
}

// evaluateBehavioral scores a per-actor window as the average of three
// signals: off-hours ratio, action diversity, and location diversity
// (unique locations capped at 5, over 5).
func evaluateBehavioral(rule *Rule, buf *Buffer, trigger *schema.Event) *Result {
	events := buf.Events()
	if len(events) < rule.MinEvents {
		return nil
	}

	offHours := 0
	actions := make(map[string]bool)
	locations := make(map[string]bool)
	for _, e := range events {
		hour := e.Timestamp.UTC().Hour()
		if hour < 8 || hour >= 18 {
			offHours++
		}
		actions[e.Name] = true
		if e.Origin.Location != "" {
			locations[e.Origin.Location] = true
		}
	}

	total := float64(len(events))
	offHoursRatio := float64(offHours) / total
	actionDiversity := float64(len(actions)) / total
	locCount := len(locations)
	if locCount > 5 {
		locCount = 5
	}
	locationDiversity := float64(locCount) / 5

	score := (offHoursRatio + actionDiversity + locationDiversity) / 3

	related := make([]*schema.Event, len(events))
	copy(related, events)

	return &Result{
		ID:         resultID(rule, trigger),
		RuleID:     rule.ID,
		Kind:       KindBehavioral,
		Score:      capScore(score),
		Primary:    trigger,
		Related:    related,
		DetectedAt: time.Now().UTC(),
		Summary: fmt.Sprintf("actor %s: off-hours %.2f, action diversity %.2f, location diversity %.2f",
			trigger.Origin.ActorID, offHoursRatio, actionDiversity, locationDiversity),
	}
}

// evaluateChain walks backward from the trigger, collecting a kill-chain
// progression where each forward step advances the phase index by 1 or 2.
// Fires when the chain reaches the rule minimum. Score = min(len/10, 1.0).
func evaluateChain(rule *Rule, buf *Buffer, trigger *schema.Event, phases map[string]int) *Result {
	triggerIdx, ok := phases[trigger.Phase]
	if !ok {
		return nil
	}

	events := buf.Events()
	pos := -1
	for i := len(events) - 1; i >= 0; i-- {
		if events[i] == trigger {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil
	}

	chain := []*schema.Event{trigger}
	currentIdx := triggerIdx
	for i := pos - 1; i >= 0; i-- {
		candIdx, ok := phases[events[i].Phase]
		if !ok {
			continue
		}
		if candIdx < currentIdx && currentIdx-candIdx <= 2 {
			chain = append(chain, events[i])
			currentIdx = candIdx
		}
	}

	if len(chain) < rule.MinEvents {
		return nil
	}

	// Reverse into progression order, oldest phase first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}

	phaseNames := make([]string, len(chain))
	for i, e := range chain {
		phaseNames[i] = e.Phase
	}

	return &Result{
		ID:         resultID(rule, trigger),
		RuleID:     rule.ID,
		Kind:       KindChain,
		Score:      capScore(float64(len(chain)) / 10),
		Primary:    trigger,
		Related:    chain,
		DetectedAt: time.Now().UTC(),
		Summary:    fmt.Sprintf("kill-chain progression: %s", strings.Join(phaseNames, " -> ")),
	}
}

// orderedEvents returns the involved events in buffer (timestamp) order.
func orderedEvents(ordered []*schema.Event, involved map[uuid.UUID]*schema.Event) []*schema.Event {
	out := make([]*schema.Event, 0, len(involved))
	for _, e := range ordered {
		if _, ok := involved[e.EventID]; ok {
			out = append(out, e)
		}
	}
	return out
}

func capScore(s float64) float64 {
	if s > 1 {
		return 1
	}
	return s
}

func originLabel(e *schema.Event) string {
	if e.Origin.Address != "" {
		return e.Origin.Vendor + "/" + e.Origin.Address
	}
	return e.Origin.Vendor
}
