package notify

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"thermal-worker-go/internal/config"
	"thermal-worker-go/internal/models"
)

// RedisSink keeps a bounded recent-events index in Redis:
// <prefix>:last_event holds the newest summary and <prefix>:events the
// newest maxEvents summaries, newest first.
type RedisSink struct {
	client    *redis.Client
	prefix    string
	maxEvents int64
}

func NewRedisSink(cfg *config.Config) *RedisSink {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return newRedisSink(client, cfg.RedisKeyPrefix, cfg.RedisMaxEvents)
}

func newRedisSink(client *redis.Client, prefix string, maxEvents int) *RedisSink {
	if maxEvents <= 0 {
		maxEvents = 100
	}
	return &RedisSink{client: client, prefix: prefix, maxEvents: int64(maxEvents)}
}

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) LastEventKey() string { return s.prefix + ":last_event" }

func (s *RedisSink) EventsKey() string { return s.prefix + ":events" }

// Ping checks connectivity with the server.
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisSink) Notify(ctx context.Context, summary models.EventSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.LastEventKey(), payload, 0)
	pipe.LPush(ctx, s.EventsKey(), payload)
	pipe.LTrim(ctx, s.EventsKey(), 0, s.maxEvents-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("index event %s: %w", summary.EventID, err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	return s.client.Close()
}
