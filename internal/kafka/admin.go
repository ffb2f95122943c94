package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/segmentio/kafka-go"
)

// EnsureTopics verifies the given topics exist, creating any that are
// missing with a single partition. Used at startup so intake readers do
// not spin on missing-topic errors in fresh environments.
func EnsureTopics(ctx context.Context, cfg *Config, topics []string, logger *slog.Logger) error {
	conn, err := cfg.dialer().DialContext(ctx, "tcp", cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka: failed to connect to broker: %w", err)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		return fmt.Errorf("kafka: failed to read partitions: %w", err)
	}

	existing := make(map[string]bool, len(partitions))
	for _, p := range partitions {
		existing[p.Topic] = true
	}

	var missing []string
	for _, t := range topics {
		if !existing[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka: failed to get controller: %w", err)
	}

	controllerConn, err := cfg.dialer().DialContext(ctx, "tcp",
		net.JoinHostPort(controller.Host, fmt.Sprintf("%d", controller.Port)))
	if err != nil {
		return fmt.Errorf("kafka: failed to connect to controller: %w", err)
	}
	defer controllerConn.Close()

	for _, topic := range missing {
		err := controllerConn.CreateTopics(kafka.TopicConfig{
			Topic:             topic,
			NumPartitions:     1,
			ReplicationFactor: 1,
		})
		if err != nil {
			return fmt.Errorf("kafka: failed to create topic %s: %w", topic, err)
		}
		logger.Info("created missing topic", "topic", topic)
	}

	return nil
}
