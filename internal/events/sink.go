package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// LogSink writes every event to structured logs. It is the default sink
// when no external stream is configured.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging at info level.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, ev Event) error {
	s.logger.InfoContext(ctx, "market event",
		"type", ev.EventType(),
		"market_id", ev.Market(),
		"payload", ev,
	)
	return nil
}

// envelope is the wire format published to Redis.
type envelope struct {
	Type    string `json:"type"`
	Payload Event  `json:"payload"`
}

// RedisSink publishes events as JSON envelopes on a Redis Pub/Sub channel
// for external indexers.
type RedisSink struct {
	rdb     *redis.Client
	channel string
}

// NewRedisSink creates a sink publishing to the given channel.
func NewRedisSink(rdb *redis.Client, channel string) *RedisSink {
	return &RedisSink{rdb: rdb, channel: channel}
}

func (s *RedisSink) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(envelope{Type: ev.EventType(), Payload: ev})
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", ev.EventType(), err)
	}
	if err := s.rdb.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("events: publish %s: %w", s.channel, err)
	}
	return nil
}

// MultiSink fans out to several sinks; the first error is returned but all
// sinks are attempted.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, ev Event) error {
	var first error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}
