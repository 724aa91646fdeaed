// Package feed keeps a paginated list of posts or comments consistent with
// the live change stream for the same collection.
//
// A view owns one Reconciler and one Cursor. All state transitions run on the
// view's actor goroutine, remote calls run on the caller's goroutine, and live
// events pass through a single pump goroutine, so page loads and stream
// inserts interleave only at task boundaries.
package feed

import (
	"context"

	"feedsync/internal/models"
	"feedsync/internal/stream"
)

// NewPost is the payload for creating a post.
type NewPost struct {
	Body string `json:"body"`
	File string `json:"file"`
}

// NewComment is the payload for creating a comment.
type NewComment struct {
	PostID models.ID `json:"post_id"`
	Text   string    `json:"text"`
}

// Store is the remote store the views page through and mutate. Mutations act
// on behalf of the authenticated viewer.
type Store interface {
	FetchPosts(ctx context.Context, limit int) ([]models.Post, error)
	FetchUserPosts(ctx context.Context, userID models.ID, limit int) ([]models.Post, error)
	FetchPostDetails(ctx context.Context, postID models.ID, commentLimit int) (*models.Post, error)

	CreatePost(ctx context.Context, p NewPost) (*models.Post, error)
	UpdatePost(ctx context.Context, id models.ID, p NewPost) (*models.Post, error)
	DeletePost(ctx context.Context, id models.ID) error
	LikePost(ctx context.Context, postID models.ID) error
	UnlikePost(ctx context.Context, postID models.ID) error

	CreateComment(ctx context.Context, c NewComment) (*models.Comment, error)
	DeleteComment(ctx context.Context, id models.ID) error
}

// Stream delivers live change events. stream.LocalBroker, stream.RedisBroker
// and the websocket client in internal/remote all satisfy it.
type Stream = stream.Subscriber

// UserLookup resolves the author summary for a user id.
type UserLookup interface {
	LookupUser(ctx context.Context, id models.ID) (*models.Author, error)
}

// Dispatcher enqueues notifications. Callers never wait on the outcome.
type Dispatcher interface {
	Enqueue(ctx context.Context, p models.NotificationPayload) error
}
