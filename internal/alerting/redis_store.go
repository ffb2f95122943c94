package alerting

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"vigil-siem/internal/config"
)

const (
	gateKeyPrefix   = "vigil:suppress:gate:"
	recordKeyPrefix = "vigil:suppress:rec:"

	// Record hashes expire on their own so abandoned keys do not
	// accumulate in Redis forever.
	recordTTL = 7 * 24 * time.Hour
)

// RedisStore is a suppression store shared across processor replicas.
// Atomicity of the per-key check-then-update comes from SET NX on a
// gate key whose TTL is the suppression window.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Admit implements SuppressionStore.
func (s *RedisStore) Admit(ctx context.Context, alertKey string, now time.Time, window time.Duration) (bool, error) {
	recKey := recordKeyPrefix + alertKey

	accepted := true
	if window > 0 {
		ok, err := s.client.SetNX(ctx, gateKeyPrefix+alertKey, now.UTC().Format(time.RFC3339Nano), window).Result()
		if err != nil {
			return false, fmt.Errorf("suppression gate: %w", err)
		}
		accepted = ok
	}

	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, recKey, "occurrence_count", 1)
	pipe.HSetNX(ctx, recKey, "first_seen", now.UTC().Format(time.RFC3339Nano))
	if accepted {
		pipe.HSet(ctx, recKey, "last_alert_time", now.UTC().Format(time.RFC3339Nano))
	}
	pipe.Expire(ctx, recKey, recordTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return accepted, fmt.Errorf("suppression record update: %w", err)
	}

	return accepted, nil
}

// Record implements SuppressionStore.
func (s *RedisStore) Record(ctx context.Context, alertKey string) (AlertRecord, bool, error) {
	fields, err := s.client.HGetAll(ctx, recordKeyPrefix+alertKey).Result()
	if err != nil {
		return AlertRecord{}, false, fmt.Errorf("suppression record read: %w", err)
	}
	if len(fields) == 0 {
		return AlertRecord{}, false, nil
	}

	rec := AlertRecord{AlertKey: alertKey}
	if v, ok := fields["occurrence_count"]; ok {
		rec.OccurrenceCount, _ = strconv.Atoi(v)
	}
	if v, ok := fields["first_seen"]; ok {
		rec.FirstSeen, _ = time.Parse(time.RFC3339Nano, v)
	}
	if v, ok := fields["last_alert_time"]; ok {
		rec.LastAlertTime, _ = time.Parse(time.RFC3339Nano, v)
	}
	return rec, true, nil
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
