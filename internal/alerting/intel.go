package alerting

import (
	"strings"
	"sync"

	"vigil-siem/internal/schema"
)

// IntelIndex holds the current threat-intelligence picture: known-bad
// addresses, actors, and techniques. It is fed by the intake layer and
// consulted by the alert processor on every candidate.
type IntelIndex struct {
	mu         sync.RWMutex
	addresses  map[string]string // indicator -> source
	actors     map[string]string
	techniques map[string]string
}

// NewIntelIndex creates an empty index.
func NewIntelIndex() *IntelIndex {
	return &IntelIndex{
		addresses:  make(map[string]string),
		actors:     make(map[string]string),
		techniques: make(map[string]string),
	}
}

// AddItem merges one threat-intelligence item into the index. Indicator
// kinds with no event-side counterpart (domain, hash) are ignored.
func (x *IntelIndex) AddItem(item schema.ThreatIntelItem) {
	x.mu.Lock()
	defer x.mu.Unlock()

	switch item.Kind {
	case "address":
		x.addresses[item.Indicator] = item.Source
	case "actor":
		x.actors[item.Indicator] = item.Source
	case "technique":
		x.techniques[strings.ToUpper(item.Indicator)] = item.Source
	}
	for _, tech := range item.Techniques {
		x.techniques[strings.ToUpper(tech)] = item.Source
	}
}

// ApplyIOC adds or removes a single address indicator. Other IOC kinds
// do not map onto event fields and are ignored.
func (x *IntelIndex) ApplyIOC(upd schema.IOCUpdate) {
	if upd.Kind != "address" {
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if upd.Op == "remove" {
		delete(x.addresses, upd.Value)
		return
	}
	x.addresses[upd.Value] = "ioc-update"
}

// Match reports whether the event touches any indexed indicator.
func (x *IntelIndex) Match(e *schema.Event) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if e.Origin.Address != "" {
		if _, ok := x.addresses[e.Origin.Address]; ok {
			return true
		}
	}
	if e.Origin.ActorID != "" {
		if _, ok := x.actors[e.Origin.ActorID]; ok {
			return true
		}
	}
	for _, tech := range e.Techniques {
		if _, ok := x.techniques[strings.ToUpper(tech)]; ok {
			return true
		}
	}
	return false
}

// Size returns indicator counts per class.
func (x *IntelIndex) Size() (addresses, actors, techniques int) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.addresses), len(x.actors), len(x.techniques)
}
