package correlation

import (
	"time"

	"vigil-siem/internal/schema"
)

// Buffer is a bounded, timestamp-ordered window of recent events sharing
// one correlation key. It is bounded both by count and by the engine's
// maximum lookback; eviction is FIFO. Not safe for concurrent use; the
// owning key state serializes access.
type Buffer struct {
	events   []*schema.Event
	maxCount int
	lookback time.Duration
}

// NewBuffer creates a buffer bounded to maxCount events and a lookback
// window relative to the newest event.
func NewBuffer(maxCount int, lookback time.Duration) *Buffer {
	if maxCount <= 0 {
		maxCount = 1000
	}
	return &Buffer{
		events:   make([]*schema.Event, 0, 16),
		maxCount: maxCount,
		lookback: lookback,
	}
}

// Append inserts an event in timestamp order and evicts entries that
// fall outside the count or lookback bound. Concurrent workers can hand
// over same-key events slightly out of arrival order; the ordered
// insert keeps the window timestamp-monotonic regardless. Eviction is
// relative to the newest timestamp, not the wall clock, so replaying an
// identical sequence yields identical state.
func (b *Buffer) Append(e *schema.Event) {
	i := len(b.events)
	for i > 0 && e.Timestamp.Before(b.events[i-1].Timestamp) {
		i--
	}
	b.events = append(b.events, nil)
	copy(b.events[i+1:], b.events[i:])
	b.events[i] = e

	if b.lookback > 0 {
		cutoff := b.Newest().Timestamp.Add(-b.lookback)
		firstKept := 0
		for firstKept < len(b.events)-1 && b.events[firstKept].Timestamp.Before(cutoff) {
			firstKept++
		}
		if firstKept > 0 {
			b.events = append(b.events[:0], b.events[firstKept:]...)
		}
	}

	if overflow := len(b.events) - b.maxCount; overflow > 0 {
		b.events = append(b.events[:0], b.events[overflow:]...)
	}
}

// Events returns the buffered events, oldest first. The returned slice
// is owned by the buffer and must not be retained across Append calls.
func (b *Buffer) Events() []*schema.Event {
	return b.events
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	return len(b.events)
}

// Newest returns the event with the latest timestamp, or nil when empty.
func (b *Buffer) Newest() *schema.Event {
	if len(b.events) == 0 {
		return nil
	}
	return b.events[len(b.events)-1]
}
