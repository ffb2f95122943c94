// Package health publishes periodic pipeline health snapshots on the
// system-health topic.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vigil-siem/internal/distribution"
)

// StatsFunc returns a stage's current counters.
type StatsFunc func() map[string]any

// Snapshot is one published health record.
type Snapshot struct {
	Timestamp time.Time                 `json:"timestamp"`
	Uptime    time.Duration             `json:"uptime"`
	Stages    map[string]map[string]any `json:"stages"`
}

// Publisher periodically collects per-stage stats and publishes them.
type Publisher struct {
	hub      *distribution.Hub
	interval time.Duration
	started  time.Time

	mu      sync.Mutex
	sources map[string]StatsFunc

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewPublisher creates a health publisher.
func NewPublisher(hub *distribution.Hub, interval time.Duration) *Publisher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Publisher{
		hub:      hub,
		interval: interval,
		started:  time.Now(),
		sources:  make(map[string]StatsFunc),
		stopCh:   make(chan struct{}),
	}
}

// Register attaches a named stage's stats source.
func (p *Publisher) Register(stage string, fn StatsFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources[stage] = fn
}

// Start begins periodic publishing.
func (p *Publisher) Start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.publish()
			}
		}
	}()
	slog.Info("health publisher started", "interval", p.interval)
}

// Stop halts publishing.
func (p *Publisher) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

// Collect builds a snapshot from all registered sources.
func (p *Publisher) Collect() *Snapshot {
	p.mu.Lock()
	sources := make(map[string]StatsFunc, len(p.sources))
	for name, fn := range p.sources {
		sources[name] = fn
	}
	p.mu.Unlock()

	stages := make(map[string]map[string]any, len(sources))
	for name, fn := range sources {
		stages[name] = fn()
	}

	return &Snapshot{
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(p.started).Round(time.Second),
		Stages:    stages,
	}
}

func (p *Publisher) publish() {
	p.hub.Publish(distribution.TopicSystemHealth, p.Collect())
}
