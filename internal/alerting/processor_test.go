package alerting

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"vigil-siem/internal/correlation"
	"vigil-siem/internal/schema"
)

func criticalEvent(mutate func(*schema.Event)) *schema.Event {
	e := &schema.Event{
		EventID:   uuid.New(),
		Timestamp: time.Now().UTC(),
		Name:      "ransomware-detected",
		Category:  "malware",
		Severity:  schema.SeverityCritical,
		RiskScore: 0.95,
		Origin: schema.Origin{
			Vendor:  "acme",
			Product: "edr",
			Address: "10.0.0.5",
		},
	}
	if mutate != nil {
		mutate(e)
	}
	return e
}

func newTestProcessor(rules []SuppressionRule, store SuppressionStore) (*Processor, *[]*Alert, *[]*Escalation) {
	if store == nil {
		store = NewMemoryStore(100)
	}
	p := NewProcessor(rules, store, NewIntelIndex())

	var alerts []*Alert
	var escalations []*Escalation
	p.AddHandler(func(ctx context.Context, a *Alert) { alerts = append(alerts, a) })
	p.AddEscalationHandler(func(ctx context.Context, e *Escalation) { escalations = append(escalations, e) })
	return p, &alerts, &escalations
}

func TestProcessor_CriticalRansomwareEvent(t *testing.T) {
	p, alerts, _ := newTestProcessor(nil, nil)

	alert := p.HandleEvent(context.Background(), criticalEvent(nil))
	if alert == nil {
		t.Fatal("no alert for critical ransomware event")
	}
	if len(*alerts) != 1 {
		t.Fatalf("handler saw %d alerts, want 1", len(*alerts))
	}

	if alert.Severity != schema.SeverityCritical {
		t.Errorf("Severity = %v, want critical", alert.Severity)
	}
	if !alert.EscalationRequired {
		t.Error("EscalationRequired = false for critical event with score 0.95")
	}

	found := false
	for _, action := range alert.RecommendedActions {
		if action == "isolate affected host" {
			found = true
		}
	}
	if !found {
		t.Errorf("RecommendedActions = %v, want host isolation included", alert.RecommendedActions)
	}
}

func TestProcessor_BelowThresholdIgnored(t *testing.T) {
	p, alerts, _ := newTestProcessor(nil, nil)

	e := criticalEvent(func(e *schema.Event) {
		e.Severity = schema.SeverityHigh
		e.RiskScore = 0.5
	})
	if alert := p.HandleEvent(context.Background(), e); alert != nil {
		t.Errorf("got alert for high/0.5 event, want none")
	}
	if len(*alerts) != 0 {
		t.Errorf("handler saw %d alerts, want 0", len(*alerts))
	}
}

func TestProcessor_HighRiskScoreAloneTriggers(t *testing.T) {
	p, _, _ := newTestProcessor(nil, nil)

	e := criticalEvent(func(e *schema.Event) {
		e.Severity = schema.SeverityMedium
		e.RiskScore = 0.92
	})
	if alert := p.HandleEvent(context.Background(), e); alert == nil {
		t.Error("no alert for event with risk score above threshold")
	}
}

func TestProcessor_Suppression(t *testing.T) {
	rules := []SuppressionRule{
		{ID: "sup-1", Pattern: "ransomware-detected", Window: 300 * time.Second, Enabled: true},
	}
	store := NewMemoryStore(100)
	p, alerts, _ := newTestProcessor(rules, store)
	ctx := context.Background()

	first := p.HandleEvent(ctx, criticalEvent(nil))
	if first == nil {
		t.Fatal("first candidate produced no alert")
	}
	firstRec, ok, _ := store.Record(ctx, first.AlertKey)
	if !ok {
		t.Fatal("no suppression record after first alert")
	}

	// 10 seconds later, well inside the window.
	second := p.HandleEvent(ctx, criticalEvent(nil))
	if second != nil {
		t.Error("second candidate inside suppression window produced an alert")
	}
	if len(*alerts) != 1 {
		t.Errorf("handler saw %d alerts, want exactly 1", len(*alerts))
	}

	rec, ok, _ := store.Record(ctx, first.AlertKey)
	if !ok {
		t.Fatal("suppression record disappeared")
	}
	if rec.OccurrenceCount != 2 {
		t.Errorf("OccurrenceCount = %d, want 2", rec.OccurrenceCount)
	}
	if !rec.LastAlertTime.Equal(firstRec.LastAlertTime) {
		t.Error("LastAlertTime advanced on a suppressed duplicate")
	}
}

func TestProcessor_NoMatchingSuppressionRule(t *testing.T) {
	rules := []SuppressionRule{
		{ID: "sup-1", Pattern: "something-else", Window: 300 * time.Second, Enabled: true},
	}
	p, alerts, _ := newTestProcessor(rules, nil)
	ctx := context.Background()

	p.HandleEvent(ctx, criticalEvent(nil))
	p.HandleEvent(ctx, criticalEvent(nil))

	if len(*alerts) != 2 {
		t.Errorf("got %d alerts, want 2 when no suppression rule matches", len(*alerts))
	}
}

func TestEscalationRequired(t *testing.T) {
	tests := []struct {
		name       string
		severity   schema.Severity
		score      float64
		intel      bool
		techniques []string
		want       bool
	}{
		{"critical with 0.97 score", schema.SeverityCritical, 0.97, false, nil, true},
		{"critical with 0.5 score, no intel", schema.SeverityCritical, 0.5, false, nil, false},
		{"critical with intel match", schema.SeverityCritical, 0.5, true, nil, true},
		{"critical with high-impact technique", schema.SeverityCritical, 0.5, false, []string{"T1486"}, true},
		{"critical with benign technique", schema.SeverityCritical, 0.5, false, []string{"T1059"}, false},
		{"high severity never escalates", schema.SeverityHigh, 0.99, true, []string{"T1486"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := criticalEvent(func(e *schema.Event) {
				e.Severity = tt.severity
				e.Techniques = tt.techniques
			})
			if got := escalationRequired(e, tt.score, tt.intel); got != tt.want {
				t.Errorf("escalationRequired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProcessor_EscalationNotification(t *testing.T) {
	p, _, escalations := newTestProcessor(nil, nil)

	alert := p.HandleEvent(context.Background(), criticalEvent(nil))
	if alert == nil || !alert.EscalationRequired {
		t.Fatal("expected escalating alert")
	}
	if len(*escalations) != 1 {
		t.Fatalf("got %d escalation notifications, want 1", len(*escalations))
	}
	if (*escalations)[0].AlertID != alert.ID {
		t.Error("escalation references wrong alert")
	}
}

// failingStore simulates a broken shared suppression backend.
type failingStore struct{}

func (failingStore) Admit(ctx context.Context, key string, now time.Time, window time.Duration) (bool, error) {
	return false, errors.New("store down")
}

func (failingStore) Record(ctx context.Context, key string) (AlertRecord, bool, error) {
	return AlertRecord{}, false, errors.New("store down")
}

func TestProcessor_StoreErrorFailsOpen(t *testing.T) {
	rules := []SuppressionRule{
		{ID: "sup-1", Pattern: "ransomware", Window: 300 * time.Second, Enabled: true},
	}
	p, alerts, _ := newTestProcessor(rules, failingStore{})

	degradedCalls := 0
	p.DegradedHook = func() { degradedCalls++ }

	if alert := p.HandleEvent(context.Background(), criticalEvent(nil)); alert == nil {
		t.Error("store failure suppressed the alert; must fail open")
	}
	if len(*alerts) != 1 {
		t.Errorf("handler saw %d alerts, want 1", len(*alerts))
	}
	if !p.Degraded() {
		t.Error("Degraded() = false after store error")
	}
	if degradedCalls != 1 {
		t.Errorf("degraded hook called %d times, want 1", degradedCalls)
	}
}

func TestProcessor_HandleResult(t *testing.T) {
	p, alerts, _ := newTestProcessor(nil, nil)

	result := &correlation.Result{
		ID:      uuid.New(),
		RuleID:  "temporal-1",
		Kind:    correlation.KindTemporal,
		Score:   0.6,
		Primary: criticalEvent(func(e *schema.Event) { e.Severity = schema.SeverityMedium; e.RiskScore = 0.2 }),
		Summary: "3 related events",
	}

	alert := p.HandleResult(context.Background(), result)
	if alert == nil {
		t.Fatal("correlation result produced no alert candidate")
	}
	if alert.Result == nil || alert.Result.RuleID != "temporal-1" {
		t.Error("alert does not carry its correlation result")
	}
	if alert.Severity != schema.SeverityCritical {
		t.Errorf("Severity = %v, want critical", alert.Severity)
	}
	if len(*alerts) != 1 {
		t.Errorf("handler saw %d alerts, want 1", len(*alerts))
	}
}

func TestMemoryStore_EvictsOldest(t *testing.T) {
	store := NewMemoryStore(3)
	ctx := context.Background()
	base := time.Now().UTC()

	for i := 0; i < 3; i++ {
		store.Admit(ctx, fmt.Sprintf("key-%d", i), base.Add(time.Duration(i)*time.Minute), 0)
	}
	if store.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", store.Len())
	}

	// A fourth key evicts key-0, the oldest by last alert time.
	store.Admit(ctx, "key-3", base.Add(time.Hour), 0)
	if store.Len() != 3 {
		t.Errorf("Len() = %d, want 3 after eviction", store.Len())
	}
	if _, ok, _ := store.Record(ctx, "key-0"); ok {
		t.Error("oldest record not evicted")
	}
	if _, ok, _ := store.Record(ctx, "key-3"); !ok {
		t.Error("newest record missing")
	}
}

func TestMatchWindow(t *testing.T) {
	rules := []SuppressionRule{
		{ID: "disabled", Pattern: "acme", Window: time.Hour, Enabled: false},
		{ID: "narrow", Pattern: "ransomware", Window: 5 * time.Minute, Enabled: true},
		{ID: "broad", Pattern: "acme", Window: time.Hour, Enabled: true},
	}

	if w := matchWindow(rules, "acme|edr|ransomware-detected|10.0.0.5"); w != 5*time.Minute {
		t.Errorf("matchWindow() = %v, want first enabled match (5m)", w)
	}
	if w := matchWindow(rules, "other|fw|port-scan|10.0.0.9"); w != 0 {
		t.Errorf("matchWindow() = %v, want 0 for no match", w)
	}
}

func TestIntelIndex(t *testing.T) {
	idx := NewIntelIndex()

	idx.AddItem(schema.ThreatIntelItem{
		ID:        uuid.New(),
		Indicator: "203.0.113.7",
		Kind:      "address",
		Source:    "feed-a",
		AddedAt:   time.Now().UTC(),
	})
	idx.AddItem(schema.ThreatIntelItem{
		ID:         uuid.New(),
		Indicator:  "apt-kitten",
		Kind:       "actor",
		Techniques: []string{"t1486"},
		AddedAt:    time.Now().UTC(),
	})

	t.Run("address match", func(t *testing.T) {
		e := criticalEvent(func(e *schema.Event) { e.Origin.Address = "203.0.113.7" })
		if !idx.Match(e) {
			t.Error("no match for indexed address")
		}
	})

	t.Run("technique match is case-insensitive", func(t *testing.T) {
		e := criticalEvent(func(e *schema.Event) { e.Techniques = []string{"T1486"} })
		if !idx.Match(e) {
			t.Error("no match for indexed technique")
		}
	})

	t.Run("no match for clean event", func(t *testing.T) {
		if idx.Match(criticalEvent(nil)) {
			t.Error("matched event with no indexed indicators")
		}
	})

	t.Run("ioc removal", func(t *testing.T) {
		idx.ApplyIOC(schema.IOCUpdate{ID: uuid.New(), Kind: "address", Value: "203.0.113.7", Op: "remove", UpdatedAt: time.Now().UTC()})
		e := criticalEvent(func(e *schema.Event) { e.Origin.Address = "203.0.113.7" })
		if idx.Match(e) {
			t.Error("matched revoked indicator")
		}
	})
}

func TestRecommendActions(t *testing.T) {
	t.Run("actor present", func(t *testing.T) {
		e := criticalEvent(func(e *schema.Event) {
			e.Name = "login-anomaly"
			e.Origin.ActorID = "user-42"
			e.Origin.Address = ""
		})
		actions := recommendActions(e)
		found := false
		for _, a := range actions {
			if a == "review account activity for user-42" {
				found = true
			}
		}
		if !found {
			t.Errorf("actions = %v, want account review included", actions)
		}
	})

	t.Run("nothing applicable yields empty list", func(t *testing.T) {
		e := criticalEvent(func(e *schema.Event) {
			e.Name = "policy-change"
			e.Origin.Address = ""
			e.Severity = schema.SeverityHigh
		})
		if actions := recommendActions(e); len(actions) != 0 {
			t.Errorf("actions = %v, want empty", actions)
		}
	})
}
