package ingest

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"vigil-siem/internal/alerting"
	"vigil-siem/internal/distribution"
	"vigil-siem/internal/queue"
	"vigil-siem/internal/schema"
)

func testRouter() (*Router, *queue.RingBuffer, *distribution.Hub, *alerting.IntelIndex) {
	q := queue.NewRingBuffer(100)
	hub := distribution.NewHub(distribution.HubConfig{MailboxSize: 16, SendTimeout: time.Second})
	intel := alerting.NewIntelIndex()
	r := NewRouter(schema.NewValidator(), q, time.Second, hub, intel)
	return r, q, hub, intel
}

func marshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func validEventPayload(t *testing.T) []byte {
	return marshal(t, schema.Event{
		EventID:   uuid.New(),
		Timestamp: time.Now().UTC(),
		Name:      "auth.login",
		Severity:  schema.SeverityMedium,
		Origin:    schema.Origin{Vendor: "acme", Address: "10.0.0.5"},
	})
}

func TestKindForChannel(t *testing.T) {
	known := []string{
		"security-events",
		"threat-intelligence",
		"attack-patterns",
		"ioc-updates",
		"case-updates",
		"playbook-executions",
	}
	for _, ch := range known {
		if _, ok := KindForChannel(ch); !ok {
			t.Errorf("KindForChannel(%q) not recognized", ch)
		}
	}
	if _, ok := KindForChannel("mystery-channel"); ok {
		t.Error("KindForChannel accepted an unknown channel")
	}
}

func TestRouter_SecurityEvent(t *testing.T) {
	r, q, hub, _ := testRouter()

	sub, _ := hub.Subscribe(distribution.TopicRawEvents,
		distribution.NewScope(distribution.CapReadSecurityEvents), distribution.Filter{})
	defer sub.Close()

	if err := r.Route(context.Background(), "security-events", validEventPayload(t)); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if q.Len() != 1 {
		t.Errorf("queue depth = %d, want 1", q.Len())
	}

	select {
	case env := <-sub.Items():
		e, ok := env.Payload.(*schema.Event)
		if !ok {
			t.Fatal("raw-stream payload is not an event")
		}
		if e.SchemaVersion != schema.SchemaVersionCurrent {
			t.Errorf("SchemaVersion = %q, want %q", e.SchemaVersion, schema.SchemaVersionCurrent)
		}
		if e.ReceivedAt.IsZero() {
			t.Error("ReceivedAt not stamped")
		}
		if e.Channel != "security-events" {
			t.Errorf("Channel = %q", e.Channel)
		}
	case <-time.After(time.Second):
		t.Fatal("event not published on raw stream")
	}
}

func TestRouter_MalformedRecordDropped(t *testing.T) {
	r, q, _, _ := testRouter()

	tests := []struct {
		name    string
		channel string
		payload []byte
	}{
		{"invalid json", "security-events", []byte("{not json")},
		{"missing required fields", "security-events", []byte("{}")},
		{"bad name format", "security-events", marshal(t, schema.Event{
			EventID:   uuid.New(),
			Timestamp: time.Now().UTC(),
			Name:      "NOT VALID",
			Severity:  schema.SeverityLow,
			Origin:    schema.Origin{Vendor: "acme"},
		})},
		{"stale timestamp", "security-events", marshal(t, schema.Event{
			EventID:   uuid.New(),
			Timestamp: time.Now().UTC().Add(-30 * 24 * time.Hour),
			Name:      "auth.login",
			Severity:  schema.SeverityLow,
			Origin:    schema.Origin{Vendor: "acme"},
		})},
		{"unknown channel", "mystery", []byte("{}")},
		{"malformed intel item", "threat-intelligence", []byte("{}")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Route(context.Background(), tt.channel, tt.payload); err != nil {
				t.Errorf("Route() error = %v, drops must not be fatal", err)
			}
		})
	}

	if q.Len() != 0 {
		t.Errorf("queue depth = %d, want 0 after drops", q.Len())
	}
	if stats := r.Stats(); stats["dropped"].(uint64) != uint64(len(tests)) {
		t.Errorf("dropped = %v, want %d", stats["dropped"], len(tests))
	}
}

func TestRouter_ThreatIntelFeedsIndex(t *testing.T) {
	r, _, _, intel := testRouter()

	payload := marshal(t, schema.ThreatIntelItem{
		ID:        uuid.New(),
		Indicator: "203.0.113.7",
		Kind:      "address",
		AddedAt:   time.Now().UTC(),
	})
	if err := r.Route(context.Background(), "threat-intelligence", payload); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	addrs, _, _ := intel.Size()
	if addrs != 1 {
		t.Errorf("intel addresses = %d, want 1", addrs)
	}
}

func TestRouter_ApprovalRequestRouting(t *testing.T) {
	r, _, hub, _ := testRouter()

	approvals, _ := hub.Subscribe(distribution.TopicApprovalRequests,
		distribution.NewScope(distribution.CapApprovePlaybooks),
		distribution.Filter{AnalystID: "analyst-1"})
	defer approvals.Close()

	payload := marshal(t, schema.PlaybookExecution{
		ExecutionID: uuid.New(),
		PlaybookID:  "contain-host",
		StepStatus:  schema.StepAwaitingApproval,
		Approvers:   []string{"analyst-1"},
		UpdatedAt:   time.Now().UTC(),
	})
	if err := r.Route(context.Background(), "playbook-executions", payload); err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	select {
	case env := <-approvals.Items():
		if env.Topic != distribution.TopicApprovalRequests {
			t.Errorf("Topic = %v", env.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("approval request not routed")
	}
}

func TestRouter_BackpressureWhenQueueFull(t *testing.T) {
	q := queue.NewRingBuffer(1)
	r := NewRouter(schema.NewValidator(), q, 50*time.Millisecond, nil, nil)
	ctx := context.Background()

	if err := r.Route(ctx, "security-events", validEventPayload(t)); err != nil {
		t.Fatalf("first Route() error = %v", err)
	}

	// Queue full and nobody draining: the handoff must fail so the
	// record stays uncommitted, rather than being dropped.
	if err := r.Route(ctx, "security-events", validEventPayload(t)); err == nil {
		t.Error("Route() = nil on full queue, want backpressure error")
	}
}
