package correlation

import (
	"vigil-siem/internal/schema"
)

// Key buckets events for one correlation scope. Distinct keys are
// evaluated independently and concurrently.
type Key string

// OriginKey derives the bucket for temporal, spatial, and chain rules
// from the event's origin: vendor plus source address, falling back to
// the resource when no address is present.
func OriginKey(e *schema.Event) Key {
	if e.Origin.Address != "" {
		return Key("origin:" + e.Origin.Vendor + "|" + e.Origin.Address)
	}
	if e.Origin.ResourceID != "" {
		return Key("origin:" + e.Origin.Vendor + "|" + e.Origin.ResourceID)
	}
	return Key("origin:" + e.Origin.Vendor)
}

// ActorKey derives the per-actor bucket used by behavioral rules.
// Events without an actor identity return the empty key and are not
// tracked behaviorally.
func ActorKey(e *schema.Event) Key {
	if e.Origin.ActorID == "" {
		return ""
	}
	return Key("actor:" + e.Origin.ActorID)
}
