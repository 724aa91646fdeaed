package remote

import (
	"context"
	"fmt"

	"feedsync/internal/feed"
	"feedsync/internal/models"
)

// Dispatcher enqueues notifications through POST /api/notifications.
type Dispatcher struct {
	client *Client
}

func NewDispatcher(client *Client) *Dispatcher {
	return &Dispatcher{client: client}
}

var _ feed.Dispatcher = (*Dispatcher)(nil)

func (d *Dispatcher) Enqueue(ctx context.Context, p models.NotificationPayload) error {
	if err := d.client.post(ctx, "/api/notifications", p, nil); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
