// Package config handles configuration loading for Vigil-SIEM.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the complete application configuration.
type Config struct {
	Logging      LoggingConfig      `yaml:"logging"`
	Kafka        KafkaConfig        `yaml:"kafka"`
	Queue        QueueConfig        `yaml:"queue"`
	Validation   ValidationConfig   `yaml:"validation"`
	Correlation  CorrelationConfig  `yaml:"correlation"`
	Suppression  SuppressionConfig  `yaml:"suppression"`
	Redis        RedisConfig        `yaml:"redis"`
	Distribution DistributionConfig `yaml:"distribution"`
	Metrics      MetricsConfig      `yaml:"metrics"`
	Health       HealthConfig       `yaml:"health"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
	// Production enables sanitization of error text that leaves the
	// process.
	Production bool `yaml:"production"`
}

// KafkaConfig holds intake transport settings.
type KafkaConfig struct {
	Brokers       []string      `yaml:"brokers"`
	ConsumerGroup string        `yaml:"consumer_group"`
	DialTimeout   time.Duration `yaml:"dial_timeout"`
	MinBytes      int           `yaml:"min_bytes"`
	MaxBytes      int           `yaml:"max_bytes"`
	MaxWait       time.Duration `yaml:"max_wait"`
	// ResponseTopic, when set, receives accepted alerts for downstream
	// automated response tooling. Empty disables forwarding.
	ResponseTopic string `yaml:"response_topic"`
	EnsureTopics  bool   `yaml:"ensure_topics"`
}

// QueueConfig holds handoff queue settings.
type QueueConfig struct {
	Size        int           `yaml:"size"`
	PushTimeout time.Duration `yaml:"push_timeout"`
}

// ValidationConfig holds event validation settings.
type ValidationConfig struct {
	MaxEventAge time.Duration `yaml:"max_event_age"`
	MaxFuture   time.Duration `yaml:"max_future"`
}

// CorrelationConfig holds correlation engine settings.
type CorrelationConfig struct {
	BufferSize      int           `yaml:"buffer_size"` // max events per key buffer
	Workers         int           `yaml:"workers"`
	StateTTL        time.Duration `yaml:"state_ttl"` // idle key state eviction
	KillChainPhases []string      `yaml:"kill_chain_phases"`
	Rules           []RuleConfig  `yaml:"rules"`
	RulesFile       string        `yaml:"rules_file"`
}

// RuleConfig is the static configuration for one correlation rule.
type RuleConfig struct {
	ID        string        `yaml:"id"`
	Kind      string        `yaml:"kind"` // temporal, spatial, behavioral, chain
	Enabled   bool          `yaml:"enabled"`
	Window    time.Duration `yaml:"window"`
	MinEvents int           `yaml:"min_events"`
}

// SuppressionConfig holds alert suppression settings.
type SuppressionConfig struct {
	MaxRecords int                     `yaml:"max_records"`
	UseRedis   bool                    `yaml:"use_redis"`
	Rules      []SuppressionRuleConfig `yaml:"rules"`
	RulesFile  string                  `yaml:"rules_file"`
}

// SuppressionRuleConfig is the static configuration for one suppression rule.
type SuppressionRuleConfig struct {
	ID            string `yaml:"id"`
	Pattern       string `yaml:"pattern"` // substring match on the alert signature
	WindowSeconds int    `yaml:"window_seconds"`
	Enabled       bool   `yaml:"enabled"`
}

// RedisConfig holds Redis connection settings for the shared suppression store.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	PoolSize     int           `yaml:"pool_size"`
	TLSEnabled   bool          `yaml:"tls_enabled"`
}

// DistributionConfig holds subscriber fan-out settings.
type DistributionConfig struct {
	MailboxSize   int           `yaml:"mailbox_size"`
	SendTimeout   time.Duration `yaml:"send_timeout"`
	WebSocketAddr string        `yaml:"websocket_addr"` // empty disables the WS listener
}

// MetricsConfig holds the Prometheus listener settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// HealthConfig holds system-health publishing settings.
type HealthConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// ChannelTopics maps the named input channels to their Kafka topics.
// The channel name is the effective type discriminator for decoding.
var ChannelTopics = []string{
	"security-events",
	"threat-intelligence",
	"attack-patterns",
	"ioc-updates",
	"case-updates",
	"playbook-executions",
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "vigil-siem",
			DialTimeout:   10 * time.Second,
			MinBytes:      1,
			MaxBytes:      10 << 20,
			MaxWait:       500 * time.Millisecond,
		},
		Queue: QueueConfig{
			Size:        10000,
			PushTimeout: 5 * time.Second,
		},
		Validation: ValidationConfig{
			MaxEventAge: 7 * 24 * time.Hour,
			MaxFuture:   5 * time.Minute,
		},
		Correlation: CorrelationConfig{
			BufferSize: 1000,
			Workers:    4,
			StateTTL:   30 * time.Minute,
			KillChainPhases: []string{
				"reconnaissance",
				"initial-access",
				"execution",
				"persistence",
				"privilege-escalation",
				"lateral-movement",
				"collection",
				"exfiltration",
				"impact",
			},
		},
		Suppression: SuppressionConfig{
			MaxRecords: 10000,
		},
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
		},
		Distribution: DistributionConfig{
			MailboxSize: 256,
			SendTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Health: HealthConfig{
			Interval: 30 * time.Second,
		},
	}
}

// Load reads configuration from the given path, applying defaults for
// unset fields. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("VIGIL_CONFIG")
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level: %q", c.Logging.Level)
	}

	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka: at least one broker is required")
	}
	if c.Queue.Size <= 0 {
		return fmt.Errorf("queue: size must be positive")
	}
	if c.Correlation.BufferSize <= 0 {
		return fmt.Errorf("correlation: buffer_size must be positive")
	}
	if c.Correlation.Workers <= 0 {
		return fmt.Errorf("correlation: workers must be positive")
	}
	if len(c.Correlation.KillChainPhases) < 2 {
		return fmt.Errorf("correlation: kill_chain_phases requires at least 2 phases")
	}
	if c.Suppression.MaxRecords <= 0 {
		return fmt.Errorf("suppression: max_records must be positive")
	}
	if c.Distribution.MailboxSize <= 0 {
		return fmt.Errorf("distribution: mailbox_size must be positive")
	}
	if c.Distribution.SendTimeout <= 0 {
		return fmt.Errorf("distribution: send_timeout must be positive")
	}

	for i, r := range c.Correlation.Rules {
		if err := validateRule(r); err != nil {
			return fmt.Errorf("correlation rule %d (%s): %w", i, r.ID, err)
		}
	}
	for i, r := range c.Suppression.Rules {
		if err := validateSuppressionRule(r); err != nil {
			return fmt.Errorf("suppression rule %d (%s): %w", i, r.ID, err)
		}
	}

	return nil
}

func validateRule(r RuleConfig) error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	switch r.Kind {
	case "temporal", "spatial", "behavioral", "chain":
	default:
		return fmt.Errorf("unknown rule kind: %q", r.Kind)
	}
	if r.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}
	if r.MinEvents < 0 {
		return fmt.Errorf("min_events must not be negative")
	}
	return nil
}

func validateSuppressionRule(r SuppressionRuleConfig) error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required")
	}
	if r.Pattern == "" {
		return fmt.Errorf("pattern is required")
	}
	if r.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive")
	}
	return nil
}

// LoadRuleFile reads correlation rules from a standalone YAML file.
func LoadRuleFile(path string) ([]RuleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	var rules []RuleConfig
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	for i, r := range rules {
		if err := validateRule(r); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.ID, err)
		}
	}
	return rules, nil
}

// LoadSuppressionFile reads suppression rules from a standalone YAML file.
func LoadSuppressionFile(path string) ([]SuppressionRuleConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suppression file: %w", err)
	}
	var rules []SuppressionRuleConfig
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse suppression file: %w", err)
	}
	for i, r := range rules {
		if err := validateSuppressionRule(r); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.ID, err)
		}
	}
	return rules, nil
}
