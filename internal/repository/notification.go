package repository

import (
	"context"

	"feedsync/internal/models"
	"feedsync/internal/stream"

	"gorm.io/gorm"
)

// NotificationRepository stores notification inbox entries.
type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByReceiver(ctx context.Context, receiverID models.ID, limit int) ([]*models.Notification, error)
}

type notificationRepository struct {
	db     *gorm.DB
	events changeEmitter
}

// NewNotificationRepository creates a NotificationRepository.
func NewNotificationRepository(db *gorm.DB, pub stream.Publisher) NotificationRepository {
	return &notificationRepository{db: db, events: newChangeEmitter(stream.TableNotifications, pub)}
}

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	if err := r.db.WithContext(ctx).Create(n).Error; err != nil {
		r.events.logger.LogError(ctx, "create", err)
		return err
	}
	r.events.logger.LogCreate(ctx, map[string]interface{}{"id": n.ID, "receiver_id": n.ReceiverID})
	r.events.emit(ctx, stream.Insert, n, nil)
	return nil
}

func (r *notificationRepository) ListByReceiver(ctx context.Context, receiverID models.ID, limit int) ([]*models.Notification, error) {
	var out []*models.Notification
	err := r.db.WithContext(ctx).
		Where("receiver_id = ?", receiverID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
