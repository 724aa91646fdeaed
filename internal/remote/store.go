package remote

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"feedsync/internal/feed"
	"feedsync/internal/models"
)

// Store is the REST implementation of feed.Store.
type Store struct {
	client *Client
}

// NewStore returns a Store backed by client.
func NewStore(client *Client) *Store {
	return &Store{client: client}
}

var _ feed.Store = (*Store)(nil)

func limitQuery(name string, n int) url.Values {
	q := url.Values{}
	q.Set(name, strconv.Itoa(n))
	return q
}

// collect reads up to limit items of a newest-first list starting at offset.
// The server answers at most models.MaxPageSize items per request, so wider
// windows take several requests. A short answer ends the list.
func collect[T any](ctx context.Context, c *Client, path string, offset, limit int) ([]T, error) {
	var out []T
	for len(out) < limit {
		chunk := min(limit-len(out), models.MaxPageSize)
		q := limitQuery("limit", chunk)
		if at := offset + len(out); at > 0 {
			q.Set("offset", strconv.Itoa(at))
		}
		var page []T
		if err := c.get(ctx, path, q, &page); err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < chunk {
			break
		}
	}
	return out, nil
}

// FetchPosts returns the first limit posts of the home feed.
func (s *Store) FetchPosts(ctx context.Context, limit int) ([]models.Post, error) {
	posts, err := collect[models.Post](ctx, s.client, "/api/posts", 0, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch posts: %w", err)
	}
	return posts, nil
}

// FetchUserPosts returns userID's first limit posts, newest first.
func (s *Store) FetchUserPosts(ctx context.Context, userID models.ID, limit int) ([]models.Post, error) {
	path := fmt.Sprintf("/api/users/%d/posts", userID)
	posts, err := collect[models.Post](ctx, s.client, path, 0, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch user posts: %w", err)
	}
	return posts, nil
}

// FetchPostDetails returns the post with its first commentLimit comments.
// Comments past the server's page cap are read from the comments endpoint.
func (s *Store) FetchPostDetails(ctx context.Context, postID models.ID, commentLimit int) (*models.Post, error) {
	var post models.Post
	path := fmt.Sprintf("/api/posts/%d", postID)
	first := min(commentLimit, models.MaxPageSize)
	if err := s.client.get(ctx, path, limitQuery("comment_limit", first), &post); err != nil {
		return nil, fmt.Errorf("fetch post details: %w", err)
	}
	if commentLimit > first && len(post.Comments) == first {
		more, err := collect[models.Comment](ctx, s.client, path+"/comments", first, commentLimit-first)
		if err != nil {
			return nil, fmt.Errorf("fetch post comments: %w", err)
		}
		post.Comments = append(post.Comments, more...)
	}
	return &post, nil
}

// UpdatePost replaces the body and file of one of the client user's posts.
func (s *Store) UpdatePost(ctx context.Context, id models.ID, p feed.NewPost) (*models.Post, error) {
	var post models.Post
	if err := s.client.put(ctx, fmt.Sprintf("/api/posts/%d", id), p, &post); err != nil {
		return nil, fmt.Errorf("update post: %w", err)
	}
	return &post, nil
}

// CreatePost creates a post as the client's user.
func (s *Store) CreatePost(ctx context.Context, p feed.NewPost) (*models.Post, error) {
	var post models.Post
	if err := s.client.post(ctx, "/api/posts", p, &post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	return &post, nil
}

// DeletePost deletes one of the client user's posts.
func (s *Store) DeletePost(ctx context.Context, id models.ID) error {
	if err := s.client.delete(ctx, fmt.Sprintf("/api/posts/%d", id)); err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// LikePost likes postID. Liking twice is not an error.
func (s *Store) LikePost(ctx context.Context, postID models.ID) error {
	if err := s.client.post(ctx, fmt.Sprintf("/api/posts/%d/likes", postID), nil, nil); err != nil {
		return fmt.Errorf("like post: %w", err)
	}
	return nil
}

// UnlikePost removes the client user's like from postID.
func (s *Store) UnlikePost(ctx context.Context, postID models.ID) error {
	if err := s.client.delete(ctx, fmt.Sprintf("/api/posts/%d/likes", postID)); err != nil {
		return fmt.Errorf("unlike post: %w", err)
	}
	return nil
}

// CreateComment comments on c.PostID as the client's user.
func (s *Store) CreateComment(ctx context.Context, c feed.NewComment) (*models.Comment, error) {
	var comment models.Comment
	body := map[string]string{"text": c.Text}
	if err := s.client.post(ctx, fmt.Sprintf("/api/posts/%d/comments", c.PostID), body, &comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}
	return &comment, nil
}

// DeleteComment deletes a comment by id.
func (s *Store) DeleteComment(ctx context.Context, id models.ID) error {
	if err := s.client.delete(ctx, fmt.Sprintf("/api/comments/%d", id)); err != nil {
		return fmt.Errorf("delete comment: %w", err)
	}
	return nil
}
