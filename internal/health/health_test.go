package health

import (
	"testing"
	"time"

	"vigil-siem/internal/distribution"
)

func TestPublisher_Collect(t *testing.T) {
	hub := distribution.NewHub(distribution.DefaultHubConfig())
	pub := NewPublisher(hub, time.Minute)

	pub.Register("queue", func() map[string]any {
		return map[string]any{"depth": 3}
	})
	pub.Register("correlation", func() map[string]any {
		return map[string]any{"processed": uint64(42)}
	})

	snap := pub.Collect()
	if snap.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
	if len(snap.Stages) != 2 {
		t.Fatalf("Stages has %d entries, want 2", len(snap.Stages))
	}
	if snap.Stages["queue"]["depth"] != 3 {
		t.Errorf("queue depth = %v, want 3", snap.Stages["queue"]["depth"])
	}
}

func TestPublisher_PublishesOnTopic(t *testing.T) {
	hub := distribution.NewHub(distribution.DefaultHubConfig())
	pub := NewPublisher(hub, time.Minute)
	pub.Register("queue", func() map[string]any { return map[string]any{} })

	sub, err := hub.Subscribe(distribution.TopicSystemHealth,
		distribution.NewScope(distribution.CapReadSystemHealth), distribution.Filter{})
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	defer sub.Close()

	pub.publish()

	select {
	case env := <-sub.Items():
		if _, ok := env.Payload.(*Snapshot); !ok {
			t.Errorf("payload is %T, want *Snapshot", env.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no health snapshot delivered")
	}
}
