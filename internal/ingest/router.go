// Package ingest decodes and validates inbound records from the named
// input channels and routes them into the pipeline.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vigil-siem/internal/alerting"
	"vigil-siem/internal/distribution"
	"vigil-siem/internal/metrics"
	"vigil-siem/internal/queue"
	"vigil-siem/internal/schema"
)

// RecordKind is the closed set of inbound record types. The channel
// name is the type discriminator; every kind is matched exhaustively in
// the router.
type RecordKind int

const (
	KindSecurityEvent RecordKind = iota
	KindThreatIntel
	KindAttackPattern
	KindIOCUpdate
	KindCaseUpdate
	KindPlaybookExecution
)

// KindForChannel resolves a channel name to its record kind.
func KindForChannel(channel string) (RecordKind, bool) {
	switch channel {
	case "security-events":
		return KindSecurityEvent, true
	case "threat-intelligence":
		return KindThreatIntel, true
	case "attack-patterns":
		return KindAttackPattern, true
	case "ioc-updates":
		return KindIOCUpdate, true
	case "case-updates":
		return KindCaseUpdate, true
	case "playbook-executions":
		return KindPlaybookExecution, true
	}
	return 0, false
}

// Router is the intake stage. Malformed records are dropped and logged,
// never fatal; a full downstream queue applies backpressure instead of
// dropping.
type Router struct {
	validator   *schema.Validator
	events      *queue.RingBuffer
	pushTimeout time.Duration
	hub         *distribution.Hub
	intel       *alerting.IntelIndex

	received  atomic.Uint64
	dropped   atomic.Uint64
	malformed atomic.Uint64
}

// NewRouter creates the intake router. The hub and intel index are
// optional; a nil hub disables raw-stream publishing.
func NewRouter(v *schema.Validator, events *queue.RingBuffer, pushTimeout time.Duration, hub *distribution.Hub, intel *alerting.IntelIndex) *Router {
	if pushTimeout <= 0 {
		pushTimeout = 5 * time.Second
	}
	return &Router{
		validator:   v,
		events:      events,
		pushTimeout: pushTimeout,
		hub:         hub,
		intel:       intel,
	}
}

// Route decodes one raw record from the named channel and dispatches
// it. A decode or validation failure drops only that record and returns
// nil so the offset still commits. A panic while handling one record is
// contained to that record.
func (r *Router) Route(ctx context.Context, channel string, payload []byte) (err error) {
	r.received.Add(1)
	metrics.RecordsReceived.WithLabelValues(channel).Inc()

	defer func() {
		if rec := recover(); rec != nil {
			r.malformed.Add(1)
			slog.Error("panic handling inbound record", "channel", channel, "panic", rec)
			err = nil
		}
	}()

	kind, ok := KindForChannel(channel)
	if !ok {
		r.drop(channel, fmt.Errorf("unknown channel"))
		return nil
	}

	switch kind {
	case KindSecurityEvent:
		return r.routeEvent(ctx, payload)
	case KindThreatIntel:
		r.routeThreatIntel(channel, payload)
	case KindAttackPattern:
		r.routeAttackPattern(channel, payload)
	case KindIOCUpdate:
		r.routeIOCUpdate(channel, payload)
	case KindCaseUpdate:
		r.routeCaseUpdate(channel, payload)
	case KindPlaybookExecution:
		r.routePlaybook(channel, payload)
	}
	return nil
}

// routeEvent normalizes a security event, publishes it on the raw
// stream, and hands it to correlation through the bounded queue. Only
// the queue handoff can fail, and that failure is backpressure, not a
// drop: the record stays uncommitted and is retried.
func (r *Router) routeEvent(ctx context.Context, payload []byte) error {
	var event schema.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		r.drop("security-events", err)
		return nil
	}

	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	event.SchemaVersion = schema.SchemaVersionCurrent
	event.ReceivedAt = time.Now().UTC()
	event.Channel = "security-events"

	if err := r.validator.ValidateEvent(&event); err != nil {
		r.drop("security-events", err)
		return nil
	}

	if r.hub != nil {
		r.hub.Publish(distribution.TopicRawEvents, &event)
	}

	if err := r.events.PushWait(&event, r.pushTimeout); err != nil {
		return fmt.Errorf("event queue handoff: %w", err)
	}
	return nil
}

func (r *Router) routeThreatIntel(channel string, payload []byte) {
	var item schema.ThreatIntelItem
	if err := json.Unmarshal(payload, &item); err != nil {
		r.drop(channel, err)
		return
	}
	if err := r.validator.ValidateRecord(&item); err != nil {
		r.drop(channel, err)
		return
	}
	if r.intel != nil {
		r.intel.AddItem(item)
	}
	if r.hub != nil {
		r.hub.Publish(distribution.TopicThreatIntel, &item)
	}
}

func (r *Router) routeAttackPattern(channel string, payload []byte) {
	var pattern schema.AttackPattern
	if err := json.Unmarshal(payload, &pattern); err != nil {
		r.drop(channel, err)
		return
	}
	if err := r.validator.ValidateRecord(&pattern); err != nil {
		r.drop(channel, err)
		return
	}
	if r.hub != nil {
		r.hub.Publish(distribution.TopicAttackPatterns, &pattern)
	}
}

func (r *Router) routeIOCUpdate(channel string, payload []byte) {
	var upd schema.IOCUpdate
	if err := json.Unmarshal(payload, &upd); err != nil {
		r.drop(channel, err)
		return
	}
	if err := r.validator.ValidateRecord(&upd); err != nil {
		r.drop(channel, err)
		return
	}
	if r.intel != nil {
		r.intel.ApplyIOC(upd)
	}
	if r.hub != nil {
		r.hub.Publish(distribution.TopicIOCUpdates, &upd)
	}
}

func (r *Router) routeCaseUpdate(channel string, payload []byte) {
	var upd schema.CaseUpdate
	if err := json.Unmarshal(payload, &upd); err != nil {
		r.drop(channel, err)
		return
	}
	if err := r.validator.ValidateRecord(&upd); err != nil {
		r.drop(channel, err)
		return
	}
	if r.hub != nil {
		r.hub.Publish(distribution.TopicCaseUpdates, &upd)
		if upd.Assignee != "" {
			r.hub.Publish(distribution.TopicCaseAssignments, &upd)
		}
	}
}

func (r *Router) routePlaybook(channel string, payload []byte) {
	var exec schema.PlaybookExecution
	if err := json.Unmarshal(payload, &exec); err != nil {
		r.drop(channel, err)
		return
	}
	if err := r.validator.ValidateRecord(&exec); err != nil {
		r.drop(channel, err)
		return
	}
	if r.hub != nil {
		r.hub.Publish(distribution.TopicPlaybookUpdates, &exec)
		if exec.StepStatus == schema.StepAwaitingApproval {
			r.hub.Publish(distribution.TopicApprovalRequests, &exec)
		}
	}
}

func (r *Router) drop(channel string, err error) {
	r.dropped.Add(1)
	metrics.RecordsDropped.WithLabelValues(channel).Inc()
	slog.Warn("dropping malformed record", "channel", channel, "error", err)
}

// Stats returns intake counters.
func (r *Router) Stats() map[string]any {
	return map[string]any{
		"received": r.received.Load(),
		"dropped":  r.dropped.Load(),
		"panics":   r.malformed.Load(),
	}
}
