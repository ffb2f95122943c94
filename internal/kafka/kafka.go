// Package kafka wraps the segmentio/kafka-go client for the intake and
// response transports of the pipeline.
package kafka

import (
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	// ErrProducerClosed is returned when producing on a closed producer.
	ErrProducerClosed = errors.New("kafka: producer is closed")
)

// Config holds Kafka connection settings shared by readers and writers.
type Config struct {
	Brokers       []string      `yaml:"brokers"`
	ConsumerGroup string        `yaml:"consumer_group"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	MinBytes      int           `yaml:"min_bytes"`
	MaxBytes      int           `yaml:"max_bytes"`
	MaxWait       time.Duration `yaml:"max_wait"`
	CommitInterval time.Duration `yaml:"commit_interval"`
	StartOffset   int64         `yaml:"start_offset"` // -1=latest, -2=earliest
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Brokers:        []string{"localhost:9092"},
		ConsumerGroup:  "vigil-siem",
		DialTimeout:    10 * time.Second,
		MinBytes:       1,
		MaxBytes:       10 << 20,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errors.New("kafka: at least one broker is required")
	}
	if c.ConsumerGroup == "" {
		return errors.New("kafka: consumer group is required")
	}
	return nil
}

// dialer returns a configured kafka.Dialer.
func (c *Config) dialer() *kafka.Dialer {
	return &kafka.Dialer{
		Timeout:   c.DialTimeout,
		DualStack: true,
	}
}
