package alerting

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"vigil-siem/internal/correlation"
	"vigil-siem/internal/metrics"
	"vigil-siem/internal/schema"
)

const (
	// criticalScore is the risk score at which an event becomes an
	// alert candidate regardless of its severity label.
	criticalScore = 0.9

	// escalationScore is the correlation or risk score above which a
	// critical alert is escalated.
	escalationScore = 0.95
)

// highImpactTechniques are technique IDs whose presence escalates a
// critical alert: data encryption for impact, inhibit system recovery,
// service stop, data destruction, exfiltration over C2.
var highImpactTechniques = map[string]bool{
	"T1486": true,
	"T1490": true,
	"T1489": true,
	"T1485": true,
	"T1041": true,
}

// AlertHandler receives accepted alerts.
type AlertHandler func(ctx context.Context, alert *Alert)

// EscalationHandler receives escalation notifications.
type EscalationHandler func(ctx context.Context, esc *Escalation)

// Processor turns critical events and correlation results into alerts,
// applying suppression so repeated candidates with the same key inside
// a suppression window collapse into one alert.
type Processor struct {
	rules       []SuppressionRule
	store       SuppressionStore
	intel       *IntelIndex
	handlers    []AlertHandler
	escHandlers []EscalationHandler

	candidates atomic.Uint64
	emitted    atomic.Uint64
	suppressed atomic.Uint64
	escalated  atomic.Uint64
	storeErrs  atomic.Uint64
	degraded   atomic.Bool

	// DegradedHook is invoked when a suppression store error forces a
	// fail-open decision. Used to surface the condition as a metric.
	DegradedHook func()
}

// NewProcessor creates an alert processor.
func NewProcessor(rules []SuppressionRule, store SuppressionStore, intel *IntelIndex) *Processor {
	return &Processor{
		rules: rules,
		store: store,
		intel: intel,
	}
}

// AddHandler registers an alert handler. Handlers must be registered
// before the pipeline starts.
func (p *Processor) AddHandler(h AlertHandler) {
	p.handlers = append(p.handlers, h)
}

// AddEscalationHandler registers an escalation handler.
func (p *Processor) AddEscalationHandler(h EscalationHandler) {
	p.escHandlers = append(p.escHandlers, h)
}

// AlertKey builds the deduplication key for an event: origin vendor,
// product, event name, and source address.
func AlertKey(e *schema.Event) string {
	return strings.Join([]string{
		e.Origin.Vendor,
		e.Origin.Product,
		e.Name,
		e.Origin.Address,
	}, "|")
}

// HandleEvent considers one validated event for alerting. Events below
// the critical threshold are ignored.
func (p *Processor) HandleEvent(ctx context.Context, e *schema.Event) *Alert {
	if e.Severity != schema.SeverityCritical && e.RiskScore < criticalScore {
		return nil
	}
	return p.process(ctx, e, nil, e.RiskScore)
}

// HandleResult considers one correlation result for alerting. Every
// result is a candidate; suppression decides whether it surfaces.
func (p *Processor) HandleResult(ctx context.Context, r *correlation.Result) *Alert {
	if r.Primary == nil {
		return nil
	}
	score := r.Score
	if r.Primary.RiskScore > score {
		score = r.Primary.RiskScore
	}
	return p.process(ctx, r.Primary, r, score)
}

func (p *Processor) process(ctx context.Context, e *schema.Event, result *correlation.Result, score float64) *Alert {
	p.candidates.Add(1)

	key := AlertKey(e)
	now := time.Now().UTC()
	window := matchWindow(p.rules, key)

	accepted, err := p.store.Admit(ctx, key, now, window)
	if err != nil {
		// A broken store must not silence alerts. Fail open and flag
		// degraded operation.
		p.storeErrs.Add(1)
		p.degraded.Store(true)
		metrics.SuppressionDegraded.Inc()
		if p.DegradedHook != nil {
			p.DegradedHook()
		}
		slog.Error("suppression store unavailable, admitting alert", "alert_key", key, "error", err)
		accepted = true
	} else {
		p.degraded.Store(false)
	}

	if !accepted {
		p.suppressed.Add(1)
		metrics.AlertsSuppressed.Inc()
		slog.Debug("alert suppressed", "alert_key", key, "window", window)
		return nil
	}

	intelMatch := p.intel != nil && p.intel.Match(e)

	alert := &Alert{
		ID:                 uuid.New(),
		AlertKey:           key,
		Severity:           schema.SeverityCritical,
		Score:              score,
		Reasoning:          buildReasoning(e, result, score, intelMatch),
		RecommendedActions: recommendActions(e),
		Timestamp:          now,
		Event:              e,
		Result:             result,
	}
	alert.EscalationRequired = escalationRequired(e, score, intelMatch)

	p.emitted.Add(1)
	metrics.AlertsEmitted.Inc()
	for _, h := range p.handlers {
		h(ctx, alert)
	}

	if alert.EscalationRequired {
		p.escalated.Add(1)
		metrics.AlertsEscalated.Inc()
		esc := &Escalation{
			AlertID:   alert.ID,
			AlertKey:  key,
			Reason:    escalationReason(e, score, intelMatch),
			Timestamp: now,
		}
		for _, h := range p.escHandlers {
			h(ctx, esc)
		}
	}

	slog.Info("alert emitted",
		"alert_id", alert.ID,
		"alert_key", key,
		"score", score,
		"escalation", alert.EscalationRequired,
	)
	return alert
}

// buildReasoning concatenates the triggers that apply to this candidate.
func buildReasoning(e *schema.Event, result *correlation.Result, score float64, intelMatch bool) string {
	var parts []string
	if e.Severity == schema.SeverityCritical {
		parts = append(parts, "critical severity")
	}
	if score >= criticalScore {
		parts = append(parts, "high risk score")
	}
	if len(e.Techniques) > 0 {
		parts = append(parts, "matched attack technique")
	}
	if intelMatch {
		parts = append(parts, "threat-intelligence match")
	}
	if result != nil {
		parts = append(parts, result.Summary)
	}
	return strings.Join(parts, "; ")
}

// escalationRequired holds when the alert is critical and at least one
// escalation signal is present.
func escalationRequired(e *schema.Event, score float64, intelMatch bool) bool {
	if e.Severity != schema.SeverityCritical {
		return false
	}
	if score >= escalationScore || intelMatch {
		return true
	}
	for _, tech := range e.Techniques {
		if highImpactTechniques[strings.ToUpper(tech)] {
			return true
		}
	}
	return false
}

func escalationReason(e *schema.Event, score float64, intelMatch bool) string {
	switch {
	case score >= escalationScore:
		return "score exceeds escalation threshold"
	case intelMatch:
		return "threat-intelligence match on critical alert"
	default:
		return "high-impact technique on critical alert"
	}
}

// Degraded reports whether the last suppression store access failed.
func (p *Processor) Degraded() bool {
	return p.degraded.Load()
}

// Stats returns processor statistics.
func (p *Processor) Stats() map[string]any {
	return map[string]any{
		"candidates":   p.candidates.Load(),
		"emitted":      p.emitted.Load(),
		"suppressed":   p.suppressed.Load(),
		"escalated":    p.escalated.Load(),
		"store_errors": p.storeErrs.Load(),
		"degraded":     p.degraded.Load(),
	}
}
