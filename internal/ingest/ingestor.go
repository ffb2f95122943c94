package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"vigil-siem/internal/config"
	"vigil-siem/internal/kafka"
)

// Ingestor runs one consumer per named input channel, all feeding the
// router. Channel topics share a consumer group so replicas split
// partitions.
type Ingestor struct {
	consumers map[string]*kafka.Consumer
	router    *Router
	logger    *slog.Logger
}

// NewIngestor builds consumers for every input channel.
func NewIngestor(cfg *kafka.Config, router *Router, logger *slog.Logger) (*Ingestor, error) {
	ing := &Ingestor{
		consumers: make(map[string]*kafka.Consumer, len(config.ChannelTopics)),
		router:    router,
		logger:    logger,
	}

	for _, topic := range config.ChannelTopics {
		channel := topic
		handler := func(ctx context.Context, msg kafka.Message) error {
			return router.Route(ctx, channel, msg.Value)
		}
		consumer, err := kafka.NewConsumer(cfg, topic, handler, logger)
		if err != nil {
			return nil, fmt.Errorf("consumer for %s: %w", topic, err)
		}
		ing.consumers[topic] = consumer
	}

	return ing, nil
}

// Start begins consuming on every channel.
func (i *Ingestor) Start() error {
	for topic, c := range i.consumers {
		if err := c.Start(); err != nil {
			return fmt.Errorf("start consumer %s: %w", topic, err)
		}
	}
	i.logger.Info("ingestor started", "channels", len(i.consumers))
	return nil
}

// Stop halts all consumers, returning the first error encountered.
func (i *Ingestor) Stop() error {
	var firstErr error
	for topic, c := range i.consumers {
		if err := c.Stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop consumer %s: %w", topic, err)
		}
	}
	i.logger.Info("ingestor stopped")
	return firstErr
}

// Stats returns per-channel consumption counters plus router counters.
func (i *Ingestor) Stats() map[string]any {
	stats := i.router.Stats()
	channels := make(map[string]any, len(i.consumers))
	for topic, c := range i.consumers {
		consumed, errs := c.Stats()
		channels[topic] = map[string]any{"consumed": consumed, "errors": errs}
	}
	stats["channels"] = channels
	return stats
}
