package models

import (
	"encoding/json"
	"time"
)

// CommentNotificationTitle is the title used when someone comments on a post.
const CommentNotificationTitle = "commented on your post"

// NotificationData is the structured body attached to a notification.
type NotificationData struct {
	PostID    ID `json:"post_id"`
	CommentID ID `json:"comment_id,omitempty"`
}

// NotificationPayload is what callers enqueue for delivery.
type NotificationPayload struct {
	SenderID   ID               `json:"sender_id"`
	ReceiverID ID               `json:"receiver_id"`
	Title      string           `json:"title"`
	Data       NotificationData `json:"data"`
}

// Notification is a persisted payload in a receiver's inbox. Data holds the
// JSON encoded NotificationData.
type Notification struct {
	ID         ID        `gorm:"primaryKey" json:"id"`
	SenderID   ID        `gorm:"not null" json:"sender_id"`
	ReceiverID ID        `gorm:"not null;index" json:"receiver_id"`
	Title      string    `gorm:"not null" json:"title"`
	Data       string    `json:"data"`
	IsRead     bool      `gorm:"default:false" json:"is_read"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewNotification converts a payload into its persisted form.
func NewNotification(p NotificationPayload) (*Notification, error) {
	data, err := json.Marshal(p.Data)
	if err != nil {
		return nil, err
	}
	return &Notification{
		SenderID:   p.SenderID,
		ReceiverID: p.ReceiverID,
		Title:      p.Title,
		Data:       string(data),
	}, nil
}

// CommentNotification builds the payload sent to a post author when
// commenterID comments on their post.
func CommentNotification(commenterID, postAuthorID, postID, commentID ID) NotificationPayload {
	return NotificationPayload{
		SenderID:   commenterID,
		ReceiverID: postAuthorID,
		Title:      CommentNotificationTitle,
		Data: NotificationData{
			PostID:    postID,
			CommentID: commentID,
		},
	}
}
