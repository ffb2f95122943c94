package alerting

import (
	"context"
	"strings"
	"sync"
	"time"

	"vigil-siem/internal/config"
)

// SuppressionRule suppresses repeat alerts whose key matches a pattern
// inside a time window.
type SuppressionRule struct {
	ID      string
	Pattern string // substring match against the alert key
	Window  time.Duration
	Enabled bool
}

// SuppressionRulesFromConfig builds the rule set from configuration.
func SuppressionRulesFromConfig(rcs []config.SuppressionRuleConfig) []SuppressionRule {
	rules := make([]SuppressionRule, 0, len(rcs))
	for _, rc := range rcs {
		rules = append(rules, SuppressionRule{
			ID:      rc.ID,
			Pattern: rc.Pattern,
			Window:  time.Duration(rc.WindowSeconds) * time.Second,
			Enabled: rc.Enabled,
		})
	}
	return rules
}

// matchWindow returns the suppression window of the first enabled rule
// whose pattern occurs in the alert key, or zero when none matches.
func matchWindow(rules []SuppressionRule, alertKey string) time.Duration {
	for _, r := range rules {
		if r.Enabled && strings.Contains(alertKey, r.Pattern) {
			return r.Window
		}
	}
	return 0
}

// SuppressionStore decides, atomically per alert key, whether a
// candidate alert is admitted or suppressed as a duplicate.
type SuppressionStore interface {
	// Admit performs the check-then-update for one candidate in a single
	// critical section per key. A suppressed candidate increments the
	// occurrence count only; an accepted one also advances LastAlertTime.
	Admit(ctx context.Context, alertKey string, now time.Time, window time.Duration) (accepted bool, err error)

	// Record returns the suppression history for a key, if any.
	Record(ctx context.Context, alertKey string) (AlertRecord, bool, error)
}

// MemoryStore is the in-process suppression store. History is bounded:
// when full, the record with the oldest LastAlertTime is evicted to make
// room for a new key.
type MemoryStore struct {
	mu         sync.Mutex
	records    map[string]*AlertRecord
	maxRecords int
}

// NewMemoryStore creates a bounded in-memory suppression store.
func NewMemoryStore(maxRecords int) *MemoryStore {
	if maxRecords <= 0 {
		maxRecords = 10000
	}
	return &MemoryStore{
		records:    make(map[string]*AlertRecord),
		maxRecords: maxRecords,
	}
}

// Admit implements SuppressionStore.
func (s *MemoryStore) Admit(ctx context.Context, alertKey string, now time.Time, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[alertKey]
	if ok && window > 0 && now.Sub(rec.LastAlertTime) < window {
		rec.OccurrenceCount++
		return false, nil
	}

	if !ok {
		if len(s.records) >= s.maxRecords {
			s.evictOldest()
		}
		rec = &AlertRecord{
			AlertKey:  alertKey,
			FirstSeen: now,
		}
		s.records[alertKey] = rec
	}

	rec.OccurrenceCount++
	rec.LastAlertTime = now
	return true, nil
}

// evictOldest removes the record with the oldest LastAlertTime. Caller
// holds the lock.
func (s *MemoryStore) evictOldest() {
	var oldestKey string
	var oldest time.Time
	first := true
	for key, rec := range s.records {
		if first || rec.LastAlertTime.Before(oldest) {
			oldestKey = key
			oldest = rec.LastAlertTime
			first = false
		}
	}
	if oldestKey != "" {
		delete(s.records, oldestKey)
	}
}

// Record implements SuppressionStore.
func (s *MemoryStore) Record(ctx context.Context, alertKey string) (AlertRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[alertKey]
	if !ok {
		return AlertRecord{}, false, nil
	}
	return *rec, true, nil
}

// Len returns the number of tracked records.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
