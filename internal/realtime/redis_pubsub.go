package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "events:"

// RedisPubSub fans broadcasts out across instances over Redis pub/sub.
type RedisPubSub struct {
	client     *redis.Client
	logger     *slog.Logger
	subscribed atomic.Bool
}

func NewRedisPubSub(client *redis.Client, logger *slog.Logger) *RedisPubSub {
	return &RedisPubSub{client: client, logger: logger}
}

// Publish sends msg to the Redis channel mirroring channel ("events:global", "events:room:<id>").
func (r *RedisPubSub) Publish(ctx context.Context, channel string, msg WSMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, channelPrefix+channel, body).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// Run subscribes to every events channel and hands each message to deliver until ctx
// is cancelled.
func (r *RedisPubSub) Run(ctx context.Context, deliver func(channel string, msg WSMessage)) error {
	pubsub := r.client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	r.subscribed.Store(true)
	defer r.subscribed.Store(false)
	r.logger.Info("Subscribed to broadcast fan-out", "pattern", channelPrefix+"*")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return errors.New("subscription closed")
			}
			var msg WSMessage
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
				r.logger.Warn("Dropping malformed fan-out message", "channel", m.Channel, "error", err)
				continue
			}
			deliver(strings.TrimPrefix(m.Channel, channelPrefix), msg)
		}
	}
}

// Subscribed reports whether Run currently holds the pattern subscription.
func (r *RedisPubSub) Subscribed() bool {
	return r.subscribed.Load()
}

// RunWithRetry keeps Run alive until ctx is cancelled, waiting delay between attempts.
func (r *RedisPubSub) RunWithRetry(ctx context.Context, deliver func(channel string, msg WSMessage), delay time.Duration) {
	for {
		err := r.Run(ctx, deliver)
		if ctx.Err() != nil {
			return
		}
		r.logger.Warn("Broadcast fan-out stopped, retrying", "error", err, "delay", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}
