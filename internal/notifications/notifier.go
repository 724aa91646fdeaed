// Package notifications publishes notification payloads to per-user Redis
// channels for the push delivery workers.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"feedsync/internal/models"

	"github.com/redis/go-redis/v9"
)

// UserChannel is the Redis channel carrying userID's notifications.
func UserChannel(userID models.ID) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID models.ID, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishNotification publishes the persisted notification to its receiver.
func (n *Notifier) PublishNotification(ctx context.Context, notification *models.Notification) error {
	b, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return n.PublishUser(ctx, notification.ReceiverID, string(b))
}
