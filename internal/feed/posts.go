package feed

import (
	"context"
	"log/slog"

	"feedsync/internal/models"
	"feedsync/internal/observability"
	"feedsync/internal/stream"
)

// View names used in logs and metrics.
const (
	ViewProfile     = "profile"
	ViewHome        = "home"
	ViewPostDetails = "post_details"
)

// PostFeed is a live list of posts: one user's profile or the home feed.
type PostFeed struct {
	*View[models.Post]
	store Store
}

// NewProfileView returns an unmounted feed of userID's posts, newest first,
// that prepends the user's new posts as they are created.
func NewProfileView(store Store, st Stream, users UserLookup, userID models.ID, opts Options) *PostFeed {
	fetch := func(ctx context.Context, limit int) ([]models.Post, func(), error) {
		posts, err := store.FetchUserPosts(ctx, userID, limit)
		return posts, nil, err
	}
	topic := stream.Topic{Table: stream.TablePosts, Filter: stream.Eq("user_id", userID)}
	return &PostFeed{
		View:  newView[models.Post](ViewProfile, topic, st, users, fetch, MsgFetchUserPosts, opts),
		store: store,
	}
}

// NewHomeView returns an unmounted feed of every user's posts.
func NewHomeView(store Store, st Stream, users UserLookup, opts Options) *PostFeed {
	fetch := func(ctx context.Context, limit int) ([]models.Post, func(), error) {
		posts, err := store.FetchPosts(ctx, limit)
		return posts, nil, err
	}
	topic := stream.Topic{Table: stream.TablePosts}
	return &PostFeed{
		View:  newView[models.Post](ViewHome, topic, st, users, fetch, MsgFetchPosts, opts),
		store: store,
	}
}

// CreatePost asks the store to create a post. The feed is not touched: the
// post shows up when its insert event arrives.
func (f *PostFeed) CreatePost(ctx context.Context, p NewPost) Result {
	if _, err := f.store.CreatePost(ctx, p); err != nil {
		observability.RecordFeedOperation(f.name, "create_post", false)
		f.logger.ErrorContext(ctx, "create post failed", slog.String("error", err.Error()))
		return fail(MsgCreatePost)
	}
	observability.RecordFeedOperation(f.name, "create_post", true)
	return succeeded()
}

// EditPost replaces the body and file of one of the viewer's posts and
// mirrors the store's answer on the local copy. Edits are not streamed.
func (f *PostFeed) EditPost(ctx context.Context, id models.ID, p NewPost) Result {
	updated, err := f.store.UpdatePost(ctx, id, p)
	if err != nil {
		observability.RecordFeedOperation(f.name, "edit_post", false)
		f.logger.ErrorContext(ctx, "edit post failed", slog.Uint64("post_id", uint64(id)), slog.String("error", err.Error()))
		return fail(MsgUpdatePost)
	}
	if !f.mutate(id, func(cur models.Post) models.Post {
		cur.Body = updated.Body
		cur.File = updated.File
		cur.UpdatedAt = updated.UpdatedAt
		return cur
	}) {
		return fail(MsgClosed)
	}
	observability.RecordFeedOperation(f.name, "edit_post", true)
	return succeeded()
}

// DeletePost deletes the post remotely, then drops it from the feed.
func (f *PostFeed) DeletePost(ctx context.Context, id models.ID) Result {
	return f.remove(ctx, "delete_post", id, f.store.DeletePost, MsgRemovePost)
}

// Like records the viewer's like and mirrors it on the local copy.
func (f *PostFeed) Like(ctx context.Context, postID models.ID) Result {
	if err := f.store.LikePost(ctx, postID); err != nil {
		observability.RecordFeedOperation(f.name, "like", false)
		f.logger.ErrorContext(ctx, "like failed", slog.Uint64("post_id", uint64(postID)), slog.String("error", err.Error()))
		return fail(MsgLikePost)
	}
	viewer := f.opts.ViewerID
	if !f.mutate(postID, func(p models.Post) models.Post {
		if p.LikedBy(viewer) {
			return p
		}
		likes := make([]models.Like, 0, len(p.Likes)+1)
		likes = append(likes, p.Likes...)
		p.Likes = append(likes, models.Like{UserID: viewer, PostID: postID})
		p.LikesCount++
		return p
	}) {
		return fail(MsgClosed)
	}
	observability.RecordFeedOperation(f.name, "like", true)
	return succeeded()
}

// Unlike removes the viewer's like and mirrors it on the local copy.
func (f *PostFeed) Unlike(ctx context.Context, postID models.ID) Result {
	if err := f.store.UnlikePost(ctx, postID); err != nil {
		observability.RecordFeedOperation(f.name, "unlike", false)
		f.logger.ErrorContext(ctx, "unlike failed", slog.Uint64("post_id", uint64(postID)), slog.String("error", err.Error()))
		return fail(MsgUnlikePost)
	}
	viewer := f.opts.ViewerID
	if !f.mutate(postID, func(p models.Post) models.Post {
		if !p.LikedBy(viewer) {
			return p
		}
		likes := make([]models.Like, 0, len(p.Likes))
		for _, l := range p.Likes {
			if l.UserID != viewer {
				likes = append(likes, l)
			}
		}
		p.Likes = likes
		if p.LikesCount > 0 {
			p.LikesCount--
		}
		return p
	}) {
		return fail(MsgClosed)
	}
	observability.RecordFeedOperation(f.name, "unlike", true)
	return succeeded()
}

// mutate applies fn to the local copy of id. It reports false once the view
// is closed.
func (f *PostFeed) mutate(id models.ID, fn func(models.Post) models.Post) bool {
	return f.actor.call(func() {
		if f.rec.Update(id, fn) {
			f.publish()
		}
	})
}
