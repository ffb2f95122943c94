package distribution

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vigil-siem/internal/metrics"
)

// HubConfig configures subscriber fan-out.
type HubConfig struct {
	MailboxSize int           // bounded per-subscriber delivery queue
	SendTimeout time.Duration // max wait on a full mailbox before disconnect
}

// DefaultHubConfig returns default fan-out settings.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		MailboxSize: 256,
		SendTimeout: 5 * time.Second,
	}
}

// Subscription is one live subscriber attached to a topic. Items flow
// through a bounded mailbox; a subscriber that cannot drain its mailbox
// within the hub's send timeout is disconnected.
type Subscription struct {
	ID     uuid.UUID
	topic  Topic
	scope  Scope
	filter Filter

	mailbox   chan Envelope
	done      chan struct{}
	closeOnce sync.Once
	hub       *Hub
}

// Items returns the delivery channel. The channel is never closed;
// consumers must also select on Done.
func (s *Subscription) Items() <-chan Envelope {
	return s.mailbox
}

// Done is closed when the subscription ends, by either side.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Topic returns the subscribed topic.
func (s *Subscription) Topic() Topic {
	return s.topic
}

// Close detaches the subscription. Future items are no longer
// delivered; items already queued in the mailbox are abandoned.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.hub.remove(s)
	})
}

// deliver attempts to place an envelope in the mailbox. It reports
// false only on overflow past the timeout, which disconnects the
// subscriber.
func (s *Subscription) deliver(env Envelope, timeout time.Duration) bool {
	select {
	case <-s.done:
		return true
	case s.mailbox <- env:
		return true
	default:
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.done:
		return true
	case s.mailbox <- env:
		return true
	case <-t.C:
		return false
	}
}

// Hub is the subscriber registry and fan-out point. Publishing an item
// walks the topic's subscribers, checking the permission scope before
// the filter so unauthorized callers learn nothing from filter
// behavior, and delivers to every subscriber passing both.
type Hub struct {
	config HubConfig

	mu   sync.RWMutex
	subs map[Topic]map[uuid.UUID]*Subscription

	published    atomic.Uint64
	delivered    atomic.Uint64
	disconnected atomic.Uint64
}

// NewHub creates a distribution hub.
func NewHub(cfg HubConfig) *Hub {
	if cfg.MailboxSize <= 0 {
		cfg.MailboxSize = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	return &Hub{
		config: cfg,
		subs:   make(map[Topic]map[uuid.UUID]*Subscription),
	}
}

// Subscribe attaches a new subscriber to a topic. The scope is not
// checked here: a subscriber without the topic's capability simply
// never receives an item.
func (h *Hub) Subscribe(topic Topic, scope Scope, filter Filter) (*Subscription, error) {
	if !ValidTopic(topic) {
		return nil, fmt.Errorf("unknown topic: %q", topic)
	}

	sub := &Subscription{
		ID:      uuid.New(),
		topic:   topic,
		scope:   scope,
		filter:  filter,
		mailbox: make(chan Envelope, h.config.MailboxSize),
		done:    make(chan struct{}),
		hub:     h,
	}

	h.mu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[uuid.UUID]*Subscription)
	}
	h.subs[topic][sub.ID] = sub
	count := len(h.subs[topic])
	h.mu.Unlock()

	metrics.Subscribers.WithLabelValues(string(topic)).Set(float64(count))

	slog.Debug("subscription opened", "subscription_id", sub.ID, "topic", topic)
	return sub, nil
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	var count int
	if m, ok := h.subs[sub.topic]; ok {
		delete(m, sub.ID)
		count = len(m)
	}
	h.mu.Unlock()

	metrics.Subscribers.WithLabelValues(string(sub.topic)).Set(float64(count))
}

// Publish fans one item out to the topic's subscribers. A subscriber
// whose mailbox stays full past the send timeout is disconnected;
// other subscribers and the caller are unaffected.
func (h *Hub) Publish(topic Topic, payload any) {
	h.published.Add(1)

	h.mu.RLock()
	snapshot := make([]*Subscription, 0, len(h.subs[topic]))
	for _, sub := range h.subs[topic] {
		snapshot = append(snapshot, sub)
	}
	h.mu.RUnlock()

	if len(snapshot) == 0 {
		return
	}

	env := Envelope{
		Topic:       topic,
		PublishedAt: time.Now().UTC(),
		Payload:     payload,
	}

	for _, sub := range snapshot {
		// Scope before filter. A missing capability is a silent skip.
		if !sub.scope.Allows(topic) {
			continue
		}
		if !sub.filter.Match(topic, payload) {
			continue
		}
		if sub.deliver(env, h.config.SendTimeout) {
			h.delivered.Add(1)
			continue
		}
		h.disconnected.Add(1)
		metrics.SubscribersDisconnected.Inc()
		slog.Warn("subscriber too slow, disconnecting",
			"subscription_id", sub.ID,
			"topic", topic,
		)
		sub.Close()
	}
}

// CloseAll detaches every subscription, used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	var all []*Subscription
	for _, m := range h.subs {
		for _, sub := range m {
			all = append(all, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range all {
		sub.Close()
	}
}

// SubscriberCount returns the number of live subscriptions on a topic.
func (h *Hub) SubscriberCount(topic Topic) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[topic])
}

// Stats returns hub statistics.
func (h *Hub) Stats() map[string]any {
	h.mu.RLock()
	total := 0
	perTopic := make(map[string]int)
	for topic, m := range h.subs {
		if len(m) > 0 {
			perTopic[string(topic)] = len(m)
		}
		total += len(m)
	}
	h.mu.RUnlock()

	return map[string]any{
		"subscribers":  total,
		"per_topic":    perTopic,
		"published":    h.published.Load(),
		"delivered":    h.delivered.Load(),
		"disconnected": h.disconnected.Load(),
	}
}
