// Package main is the entry point for the Vigil-SIEM pipeline service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vigil-siem/internal/alerting"
	"vigil-siem/internal/config"
	"vigil-siem/internal/correlation"
	"vigil-siem/internal/distribution"
	errs "vigil-siem/internal/errors"
	"vigil-siem/internal/health"
	"vigil-siem/internal/ingest"
	"vigil-siem/internal/kafka"
	"vigil-siem/internal/logging"
	"vigil-siem/internal/metrics"
	"vigil-siem/internal/queue"
	"vigil-siem/internal/schema"
)

var version = "dev"

func main() {
	var (
		configPath  string
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("vigil-siem %s\n", version)
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging)
	errs.SetProductionMode(cfg.Logging.Production)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// External rule files extend the inline rule lists.
	if cfg.Correlation.RulesFile != "" {
		rules, err := config.LoadRuleFile(cfg.Correlation.RulesFile)
		if err != nil {
			return fmt.Errorf("correlation rules: %w", err)
		}
		cfg.Correlation.Rules = append(cfg.Correlation.Rules, rules...)
	}
	if cfg.Suppression.RulesFile != "" {
		rules, err := config.LoadSuppressionFile(cfg.Suppression.RulesFile)
		if err != nil {
			return fmt.Errorf("suppression rules: %w", err)
		}
		cfg.Suppression.Rules = append(cfg.Suppression.Rules, rules...)
	}

	slog.Info("configuration loaded",
		"version", version,
		"brokers", len(cfg.Kafka.Brokers),
		"correlation_rules", len(cfg.Correlation.Rules),
		"suppression_rules", len(cfg.Suppression.Rules),
		"redis_suppression", cfg.Suppression.UseRedis,
		"redis_password", logging.SafeValue("redis_password", cfg.Redis.Password),
	)

	kafkaCfg := kafka.DefaultConfig()
	kafkaCfg.Brokers = cfg.Kafka.Brokers
	kafkaCfg.ConsumerGroup = cfg.Kafka.ConsumerGroup
	kafkaCfg.DialTimeout = cfg.Kafka.DialTimeout
	kafkaCfg.MinBytes = cfg.Kafka.MinBytes
	kafkaCfg.MaxBytes = cfg.Kafka.MaxBytes
	kafkaCfg.MaxWait = cfg.Kafka.MaxWait

	if cfg.Kafka.EnsureTopics {
		topics := append([]string{}, config.ChannelTopics...)
		if cfg.Kafka.ResponseTopic != "" {
			topics = append(topics, cfg.Kafka.ResponseTopic)
		}
		if err := kafka.EnsureTopics(ctx, kafkaCfg, topics, slog.Default()); err != nil {
			return fmt.Errorf("ensure topics: %w", err)
		}
	}

	// Pipeline stages, upstream to downstream.
	validator := schema.NewValidatorWithConfig(schema.ValidatorConfig{
		MaxAge:    cfg.Validation.MaxEventAge,
		MaxFuture: cfg.Validation.MaxFuture,
	})
	eventQueue := queue.NewRingBuffer(cfg.Queue.Size)
	hub := distribution.NewHub(distribution.HubConfig{
		MailboxSize: cfg.Distribution.MailboxSize,
		SendTimeout: cfg.Distribution.SendTimeout,
	})
	intel := alerting.NewIntelIndex()

	var store alerting.SuppressionStore
	if cfg.Suppression.UseRedis {
		redisStore, err := alerting.NewRedisStore(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("redis suppression store: %w", err)
		}
		defer redisStore.Close()
		store = redisStore
		slog.Info("using redis suppression store", "addr", cfg.Redis.Addr)
	} else {
		store = alerting.NewMemoryStore(cfg.Suppression.MaxRecords)
	}

	processor := alerting.NewProcessor(
		alerting.SuppressionRulesFromConfig(cfg.Suppression.Rules),
		store,
		intel,
	)
	processor.AddHandler(func(ctx context.Context, alert *alerting.Alert) {
		hub.Publish(distribution.TopicCriticalAlerts, alert)
	})
	processor.AddEscalationHandler(func(ctx context.Context, esc *alerting.Escalation) {
		hub.Publish(distribution.TopicCriticalAlerts, esc)
	})

	if cfg.Kafka.ResponseTopic != "" {
		producer, err := kafka.NewProducer(kafkaCfg, cfg.Kafka.ResponseTopic, slog.Default())
		if err != nil {
			return fmt.Errorf("response producer: %w", err)
		}
		defer producer.Close()
		processor.AddHandler(func(ctx context.Context, alert *alerting.Alert) {
			if err := producer.ProduceJSON(ctx, alert.AlertKey, alert); err != nil {
				slog.Error("failed to forward alert to response topic", "alert_id", alert.ID, "error", err)
			}
		})
	}

	rules, err := correlation.RulesFromConfig(cfg.Correlation.Rules)
	if err != nil {
		return fmt.Errorf("correlation rules: %w", err)
	}
	engine := correlation.NewEngine(correlation.EngineConfig{
		BufferSize:      cfg.Correlation.BufferSize,
		Workers:         cfg.Correlation.Workers,
		StateTTL:        cfg.Correlation.StateTTL,
		CleanupFreq:     30 * time.Second,
		PollInterval:    10 * time.Millisecond,
		KillChainPhases: cfg.Correlation.KillChainPhases,
	}, rules, eventQueue)
	engine.AddHandler(func(ctx context.Context, result *correlation.Result) {
		hub.Publish(distribution.TopicCorrelations, result)
		processor.HandleResult(ctx, result)
	})
	engine.AddEventHandler(func(ctx context.Context, event *schema.Event) {
		processor.HandleEvent(ctx, event)
	})

	router := ingest.NewRouter(validator, eventQueue, cfg.Queue.PushTimeout, hub, intel)
	ingestor, err := ingest.NewIngestor(kafkaCfg, router, slog.Default())
	if err != nil {
		return fmt.Errorf("ingestor: %w", err)
	}

	healthPub := health.NewPublisher(hub, cfg.Health.Interval)
	healthPub.Register("ingest", ingestor.Stats)
	healthPub.Register("correlation", engine.Stats)
	healthPub.Register("alerting", processor.Stats)
	healthPub.Register("distribution", hub.Stats)
	healthPub.Register("queue", func() map[string]any {
		m := eventQueue.Metrics()
		metrics.QueueDepth.Set(float64(m.Depth))
		return map[string]any{
			"pushed":   m.Pushed,
			"popped":   m.Popped,
			"dropped":  m.Dropped,
			"depth":    m.Depth,
			"capacity": m.Capacity,
		}
	})

	// Start order: downstream first so nothing is lost at the handoffs.
	engine.Start(ctx)
	healthPub.Start(ctx)

	var metricsSrv *metrics.Server
	if cfg.Metrics.Enabled {
		metricsSrv = metrics.NewServer(cfg.Metrics.Addr)
		metricsSrv.Start()
	}

	var wsSrv *http.Server
	if cfg.Distribution.WebSocketAddr != "" {
		wsSrv = &http.Server{
			Addr:              cfg.Distribution.WebSocketAddr,
			Handler:           distribution.NewServer(hub).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("websocket listener started", "addr", wsSrv.Addr)
			if err := wsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("websocket listener failed", "error", err)
			}
		}()
	}

	if err := ingestor.Start(); err != nil {
		return fmt.Errorf("start ingestor: %w", err)
	}

	slog.Info("vigil-siem started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down", "signal", sig.String())

	// Shutdown order mirrors the pipeline: stop intake, drain the
	// queue into the engine, then tear down the outbound surfaces.
	if err := ingestor.Stop(); err != nil {
		slog.Error("ingestor stop failed", "error", err)
	}
	eventQueue.Close()
	engine.Stop()
	healthPub.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if wsSrv != nil {
		if err := wsSrv.Shutdown(shutdownCtx); err != nil {
			slog.Error("websocket listener shutdown failed", "error", err)
		}
	}
	hub.CloseAll()
	if metricsSrv != nil {
		if err := metricsSrv.Stop(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown failed", "error", err)
		}
	}

	slog.Info("vigil-siem stopped")
	return nil
}
