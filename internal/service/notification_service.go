package service

import (
	"context"
	"log/slog"
	"strings"

	"feedsync/internal/middleware"
	"feedsync/internal/models"
	"feedsync/internal/repository"
)

// NotificationPublisher pushes a stored notification to its receiver.
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, n *models.Notification) error
}

type NotificationService struct {
	repo      repository.NotificationRepository
	publisher NotificationPublisher
}

func NewNotificationService(repo repository.NotificationRepository, publisher NotificationPublisher) *NotificationService {
	return &NotificationService{repo: repo, publisher: publisher}
}

// Enqueue stores p in the receiver's inbox and publishes it. Publishing is
// best effort once the row is stored.
func (s *NotificationService) Enqueue(ctx context.Context, p models.NotificationPayload) (*models.Notification, error) {
	if p.SenderID == 0 || p.ReceiverID == 0 {
		return nil, models.NewValidationError("sender_id and receiver_id are required")
	}
	if strings.TrimSpace(p.Title) == "" {
		return nil, models.NewValidationError("Title is required")
	}

	n, err := models.NewNotification(p)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishNotification(ctx, n); err != nil {
			middleware.Logger.WarnContext(ctx, "notification publish failed",
				slog.Uint64("notification_id", uint64(n.ID)),
				slog.String("error", err.Error()),
			)
		}
	}
	return n, nil
}

func (s *NotificationService) Inbox(ctx context.Context, receiverID models.ID, limit int) ([]*models.Notification, error) {
	return s.repo.ListByReceiver(ctx, receiverID, ClampLimit(limit))
}
