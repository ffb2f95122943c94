package correlation

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"vigil-siem/internal/metrics"
	"vigil-siem/internal/queue"
	"vigil-siem/internal/schema"
)

// ResultHandler receives correlation results as they are detected.
type ResultHandler func(ctx context.Context, result *Result)

// EventHandler receives every event after correlation, preserving the
// pipeline handoff to the alerting stage.
type EventHandler func(ctx context.Context, event *schema.Event)

// EngineConfig configures the correlation engine.
type EngineConfig struct {
	BufferSize      int           // Maximum events per key buffer
	Workers         int           // Number of correlation workers
	StateTTL        time.Duration // Idle key state eviction
	CleanupFreq     time.Duration // How often to evict idle state
	PollInterval    time.Duration // Queue poll timeout per worker loop
	KillChainPhases []string      // Ordered phase list for chain rules
}

// DefaultEngineConfig returns default engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		BufferSize:   1000,
		Workers:      4,
		StateTTL:     30 * time.Minute,
		CleanupFreq:  30 * time.Second,
		PollInterval: 10 * time.Millisecond,
	}
}

// keyState holds the buffer for one correlation key. Its mutex makes
// buffer mutation and rule evaluation atomic per key; distinct keys
// proceed independently.
type keyState struct {
	mu       sync.Mutex
	buf      *Buffer
	lastSeen time.Time
}

// Engine evaluates the configured rules against per-key sliding windows.
type Engine struct {
	config      EngineConfig
	originRules []*Rule // temporal, spatial, chain
	actorRules  []*Rule // behavioral
	phases      map[string]int

	mu            sync.RWMutex
	states        map[Key]*keyState
	handlers      []ResultHandler
	eventHandlers []EventHandler

	input  *queue.RingBuffer
	stopCh chan struct{}
	wg     sync.WaitGroup

	processed  atomic.Uint64
	detections atomic.Uint64
	evalErrors atomic.Uint64
}

// NewEngine creates a correlation engine fed by the given handoff queue.
func NewEngine(cfg EngineConfig, rules []*Rule, input *queue.RingBuffer) *Engine {
	phases := make(map[string]int, len(cfg.KillChainPhases))
	for i, p := range cfg.KillChainPhases {
		phases[p] = i
	}

	e := &Engine{
		config: cfg,
		phases: phases,
		states: make(map[Key]*keyState),
		input:  input,
		stopCh: make(chan struct{}),
	}

	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		if r.Kind == KindBehavioral {
			e.actorRules = append(e.actorRules, r)
		} else {
			e.originRules = append(e.originRules, r)
		}
	}

	return e
}

// AddHandler registers a result handler. Handlers must be registered
// before Start.
func (e *Engine) AddHandler(h ResultHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, h)
}

// AddEventHandler registers a post-correlation event handler. Handlers
// must be registered before Start.
func (e *Engine) AddEventHandler(h EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.eventHandlers = append(e.eventHandlers, h)
}

// Start launches the correlation workers and the state cleanup loop.
func (e *Engine) Start(ctx context.Context) {
	for i := 0; i < e.config.Workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx, i)
	}

	e.wg.Add(1)
	go e.stateCleanup(ctx)

	slog.Info("correlation engine started",
		"workers", e.config.Workers,
		"origin_rules", len(e.originRules),
		"actor_rules", len(e.actorRules),
	)
}

// Stop signals the workers and waits for them to exit. Workers keep
// popping until the input queue is drained or closed, so events already
// queued at shutdown are still correlated.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.wg.Wait()
	slog.Info("correlation engine stopped")
}

func (e *Engine) worker(ctx context.Context, id int) {
	defer e.wg.Done()

	for {
		event, err := e.input.PopWithTimeout(e.config.PollInterval)
		if err == nil {
			e.Process(ctx, event)
			continue
		}
		if err == queue.ErrQueueClosed {
			return
		}
		// Empty poll. Exit only once stop is signaled, so queued
		// events are drained before the worker leaves.
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		default:
		}
	}
}

// Process appends the event to its key buffers and evaluates every
// enabled rule against them, dispatching any results. Safe for
// concurrent use; evaluation for one key is serialized.
func (e *Engine) Process(ctx context.Context, event *schema.Event) []*Result {
	e.processed.Add(1)

	var results []*Result

	if len(e.originRules) > 0 {
		results = append(results, e.processKey(OriginKey(event), e.originRules, event)...)
	}
	if len(e.actorRules) > 0 {
		if key := ActorKey(event); key != "" {
			results = append(results, e.processKey(key, e.actorRules, event)...)
		}
	}

	for _, r := range results {
		e.detections.Add(1)
		metrics.CorrelationResults.WithLabelValues(string(r.Kind)).Inc()
		e.dispatch(ctx, r)
	}

	e.mu.RLock()
	eventHandlers := e.eventHandlers
	e.mu.RUnlock()
	for _, h := range eventHandlers {
		h(ctx, event)
	}

	return results
}

// processKey runs buffer mutation plus rule evaluation under the key's
// lock, so no concurrent arrival can interleave with either.
func (e *Engine) processKey(key Key, rules []*Rule, event *schema.Event) []*Result {
	state := e.getState(key, rules)

	state.mu.Lock()
	defer state.mu.Unlock()

	state.lastSeen = time.Now()
	state.buf.Append(event)

	var results []*Result
	for _, rule := range rules {
		if r := e.safeEvaluate(rule, state.buf, event); r != nil {
			results = append(results, r)
		}
	}
	return results
}

// safeEvaluate runs one rule, converting a panic inside the evaluator
// into a skipped rule so the remaining rules still run.
func (e *Engine) safeEvaluate(rule *Rule, buf *Buffer, trigger *schema.Event) (result *Result) {
	defer func() {
		if r := recover(); r != nil {
			e.evalErrors.Add(1)
			result = nil
			slog.Error("rule evaluation panicked",
				"rule_id", rule.ID,
				"event_id", trigger.EventID,
				"panic", r,
			)
		}
	}()

	switch rule.Kind {
	case KindTemporal:
		return evaluateTemporal(rule, buf, trigger)
	case KindSpatial:
		return evaluateSpatial(rule, buf, trigger)
	case KindBehavioral:
		return evaluateBehavioral(rule, buf, trigger)
	case KindChain:
		return evaluateChain(rule, buf, trigger, e.phases)
	}
	return nil
}

func (e *Engine) getState(key Key, rules []*Rule) *keyState {
	e.mu.RLock()
	state, ok := e.states[key]
	e.mu.RUnlock()
	if ok {
		return state
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if state, ok = e.states[key]; ok {
		return state
	}

	state = &keyState{
		buf:      NewBuffer(e.config.BufferSize, maxWindow(rules)),
		lastSeen: time.Now(),
	}
	e.states[key] = state
	return state
}

// maxWindow returns the widest rule window, used as the buffer lookback.
func maxWindow(rules []*Rule) time.Duration {
	var max time.Duration
	for _, r := range rules {
		if r.Window > max {
			max = r.Window
		}
	}
	return max
}

func (e *Engine) dispatch(ctx context.Context, result *Result) {
	e.mu.RLock()
	handlers := e.handlers
	e.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, result)
	}
}

func (e *Engine) stateCleanup(ctx context.Context) {
	defer e.wg.Done()

	freq := e.config.CleanupFreq
	if freq <= 0 {
		freq = 30 * time.Second
	}

	ticker := time.NewTicker(freq)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.evictIdleState()
		}
	}
}

func (e *Engine) evictIdleState() {
	if e.config.StateTTL <= 0 {
		return
	}

	cutoff := time.Now().Add(-e.config.StateTTL)

	e.mu.Lock()
	defer e.mu.Unlock()
	for key, state := range e.states {
		if state.lastSeen.Before(cutoff) {
			delete(e.states, key)
		}
	}
}

// Stats returns engine statistics.
func (e *Engine) Stats() map[string]any {
	e.mu.RLock()
	keys := len(e.states)
	e.mu.RUnlock()

	return map[string]any{
		"processed":    e.processed.Load(),
		"detections":   e.detections.Load(),
		"eval_errors":  e.evalErrors.Load(),
		"active_keys":  keys,
		"origin_rules": len(e.originRules),
		"actor_rules":  len(e.actorRules),
	}
}
