package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"

	"feedsync/internal/observability"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "changes:"

// Channel derives the Redis channel name for a table's change events.
func Channel(table string) string {
	return channelPrefix + table
}

// RedisBroker publishes change events to Redis so that every API instance
// sees every change, and fans received events out to local subscribers.
// Without a Redis client it degrades to a LocalBroker.
type RedisBroker struct {
	rdb   *redis.Client
	local *LocalBroker
}

// NewRedisBroker creates a broker over rdb, which may be nil.
func NewRedisBroker(rdb *redis.Client) *RedisBroker {
	return &RedisBroker{rdb: rdb, local: NewLocalBroker()}
}

// Publish sends ev to the table channel.
func (b *RedisBroker) Publish(ctx context.Context, ev ChangeEvent) error {
	if b.rdb == nil {
		return b.local.Publish(ctx, ev)
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := b.rdb.Publish(ctx, Channel(ev.Table), payload).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("publish").Inc()
		return fmt.Errorf("publish change event: %w", err)
	}
	return nil
}

// Subscribe registers h with the local fan-out.
func (b *RedisBroker) Subscribe(ctx context.Context, topic Topic, h Handler) (Subscription, error) {
	return b.local.Subscribe(ctx, topic, h)
}

// Start subscribes to every table channel and forwards events to local
// subscribers until ctx is done. It returns once the Redis subscription is live.
func (b *RedisBroker) Start(ctx context.Context) error {
	if b.rdb == nil {
		return nil
	}
	sub := b.rdb.PSubscribe(ctx, channelPrefix+"*")
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe to change channels: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in change subscriber: %v\n%s", r, debug.Stack())
						}
					}()
					var ev ChangeEvent
					if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
						log.Printf("stream: discarding malformed event on %s: %v", msg.Channel, err)
						return
					}
					_ = b.local.Publish(ctx, ev)
				}()
			}
		}
	}()

	return nil
}

// Close ends all local subscriptions.
func (b *RedisBroker) Close() {
	b.local.Close()
}
