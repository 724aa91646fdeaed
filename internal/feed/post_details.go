package feed

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"feedsync/internal/models"
	"feedsync/internal/observability"
	"feedsync/internal/stream"
)

// PostDetailsView is a post plus its live, paginated comment list.
type PostDetailsView struct {
	*View[models.Comment]
	store      Store
	dispatcher Dispatcher
	postID     models.ID

	// post is owned by the actor.
	post models.Post
}

// NewPostDetailsView returns an unmounted view of postID's comments, newest
// first. dispatcher may be nil, in which case no notifications are sent.
func NewPostDetailsView(store Store, st Stream, users UserLookup, dispatcher Dispatcher, postID models.ID, opts Options) *PostDetailsView {
	v := &PostDetailsView{store: store, dispatcher: dispatcher, postID: postID}
	fetch := func(ctx context.Context, limit int) ([]models.Comment, func(), error) {
		post, err := store.FetchPostDetails(ctx, postID, limit)
		if err != nil {
			return nil, nil, err
		}
		if post == nil {
			return nil, nil, errors.New("empty post details")
		}
		comments := post.Comments
		meta := *post
		meta.Comments = nil
		return comments, func() { v.post = meta }, nil
	}
	topic := stream.Topic{Table: stream.TableComments, Filter: stream.Eq("post_id", postID)}
	v.View = newView[models.Comment](ViewPostDetails, topic, st, users, fetch, MsgFetchPostDetails, opts)
	return v
}

// Post returns the post as of the last page load, without comments.
func (v *PostDetailsView) Post() models.Post {
	var p models.Post
	v.actor.call(func() { p = v.post })
	return p
}

// CreateComment posts text as the viewer. The comment list is not touched:
// the comment shows up when its insert event arrives. When the commenter is
// not the post's author, a notification is enqueued in the background.
func (v *PostDetailsView) CreateComment(ctx context.Context, text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return fail(MsgEmptyComment)
	}

	comment, err := v.store.CreateComment(ctx, NewComment{PostID: v.postID, Text: text})
	if err != nil {
		observability.RecordFeedOperation(v.name, "create_comment", false)
		v.logger.ErrorContext(ctx, "create comment failed", slog.String("error", err.Error()))
		return fail(MsgPostComment)
	}
	observability.RecordFeedOperation(v.name, "create_comment", true)

	v.notifyPostAuthor(ctx, comment)
	return succeeded()
}

func (v *PostDetailsView) notifyPostAuthor(ctx context.Context, comment *models.Comment) {
	if v.dispatcher == nil || comment == nil {
		return
	}

	commenter := comment.UserID
	if commenter == 0 {
		commenter = v.opts.ViewerID
	}
	author := v.Post().UserID
	if author == 0 {
		// No page has landed yet; ask the store for the post alone.
		post, err := v.store.FetchPostDetails(ctx, v.postID, 0)
		if err != nil || post == nil {
			attrs := []any{slog.Uint64("comment_id", uint64(comment.ID))}
			if err != nil {
				attrs = append(attrs, slog.String("error", err.Error()))
			}
			v.logger.WarnContext(ctx, "post author unknown, skipping comment notification", attrs...)
			observability.FeedOperations.WithLabelValues(v.name, "notify", observability.OutcomeSkipped).Inc()
			return
		}
		author = post.UserID
	}
	if commenter == author {
		return
	}

	payload := models.CommentNotification(commenter, author, v.postID, comment.ID)
	bg := context.WithoutCancel(ctx)
	go func() {
		if err := v.dispatcher.Enqueue(bg, payload); err != nil {
			observability.NotificationEnqueueFailures.Inc()
			v.logger.WarnContext(bg, "notification enqueue failed",
				slog.Uint64("receiver_id", uint64(payload.ReceiverID)),
				slog.String("error", err.Error()),
			)
		}
	}()
}

// DeleteComment deletes the comment remotely, then drops it from the list.
func (v *PostDetailsView) DeleteComment(ctx context.Context, id models.ID) Result {
	return v.remove(ctx, "delete_comment", id, v.store.DeleteComment, MsgRemoveComment)
}
