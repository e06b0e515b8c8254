package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannel is the pub/sub channel carrying school invalidations.
const DefaultChannel = "schoolspace:tenant-invalidate"

// Bus fans school invalidations out to every process holding a resolution cache.
type Bus interface {
	Publish(ctx context.Context, schoolID int64) error
	// Subscribe blocks, calling fn for each invalidation, until ctx is done.
	Subscribe(ctx context.Context, fn func(schoolID int64)) error
}

// NopBus is used by single-instance deployments and tests.
type NopBus struct{}

func (NopBus) Publish(context.Context, int64) error { return nil }

func (NopBus) Subscribe(ctx context.Context, _ func(int64)) error {
	<-ctx.Done()
	return ctx.Err()
}

// RedisBus publishes invalidations over Redis pub/sub.
type RedisBus struct {
	client  redis.UniversalClient
	channel string
	logger  *zap.Logger
}

// NewRedisBus constructs a RedisBus; an empty channel uses DefaultChannel.
func NewRedisBus(client redis.UniversalClient, channel string, logger *zap.Logger) *RedisBus {
	if client == nil {
		panic("redis bus requires client")
	}
	if channel == "" {
		channel = DefaultChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBus{client: client, channel: channel, logger: logger}
}

// Publish announces that schoolID changed.
func (b *RedisBus) Publish(ctx context.Context, schoolID int64) error {
	if err := b.client.Publish(ctx, b.channel, strconv.FormatInt(schoolID, 10)).Err(); err != nil {
		return fmt.Errorf("publish invalidation for school %d: %w", schoolID, err)
	}
	return nil
}

// Subscribe listens on the channel until ctx is cancelled. Malformed payloads are
// logged and skipped.
func (b *RedisBus) Subscribe(ctx context.Context, fn func(schoolID int64)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close() // nolint:errcheck

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("subscription %s closed", b.channel)
			}
			handleMessage(msg.Payload, fn, b.logger)
		}
	}
}

func handleMessage(payload string, fn func(int64), logger *zap.Logger) {
	id, err := parseSchoolID(payload)
	if err != nil {
		logger.Warn("ignoring malformed tenant invalidation", zap.String("payload", payload), zap.Error(err))
		return
	}
	fn(id)
}

// DialRedis parses url, then pings until the server answers, ctx is done or
// attempts run out.
func DialRedis(ctx context.Context, url string, attempts int, interval time.Duration) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		client := redis.NewClient(opts)
		if lastErr = client.Ping(ctx).Err(); lastErr == nil {
			return client, nil
		}
		_ = client.Close()

		select {
		case <-ctx.Done():
			return nil, errors.Join(lastErr, ctx.Err())
		case <-time.After(interval):
		}
	}
	return nil, fmt.Errorf("redis not ready after %d attempts: %w", attempts, lastErr)
}
