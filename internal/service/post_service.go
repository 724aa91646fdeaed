// Package service holds the business rules between HTTP handlers and repositories.
package service

import (
	"context"
	"strings"

	"feedsync/internal/models"
	"feedsync/internal/observability"
	"feedsync/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

const (
	maxBodyLen = 5000
	maxFileLen = 2048

	// DefaultPageSize and MaxPageSize bound every list limit. Clients that
	// need a wider window page through it with offset.
	DefaultPageSize = 10
	MaxPageSize     = models.MaxPageSize
)

type PostService struct {
	postRepo repository.PostRepository
}

type CreatePostInput struct {
	UserID models.ID
	Body   string
	File   string
}

type UpdatePostInput struct {
	UserID models.ID
	PostID models.ID
	Body   string
	File   string
}

type DeletePostInput struct {
	UserID models.ID
	PostID models.ID
}

type LikeInput struct {
	UserID models.ID
	PostID models.ID
}

func NewPostService(postRepo repository.PostRepository) *PostService {
	return &PostService{postRepo: postRepo}
}

// ClampLimit maps a requested limit into [1, MaxPageSize], using
// DefaultPageSize for zero or negative values.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageSize
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}

// validatePost trims body and file and checks the content rules shared by
// create and update.
func validatePost(body, file string) (string, string, error) {
	body = strings.TrimSpace(body)
	file = strings.TrimSpace(file)

	if body == "" && file == "" {
		return "", "", models.NewValidationError("Post needs a body or a file")
	}
	if len(body) > maxBodyLen {
		return "", "", models.NewValidationError("Body too long (max 5000 characters)")
	}
	if len(file) > maxFileLen {
		return "", "", models.NewValidationError("File reference too long")
	}
	return body, file, nil
}

func clampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	body, file, err := validatePost(in.Body, in.File)
	if err != nil {
		return nil, err
	}

	span, ctx := observability.NewSpan(ctx, "PostService.CreatePost", attribute.Int64("user.id", int64(in.UserID)))
	post := &models.Post{Body: body, File: file, UserID: in.UserID}
	if err := s.postRepo.Create(ctx, post); err != nil {
		span.EndWithError(err)
		return nil, err
	}
	span.End()

	return s.postRepo.GetByID(ctx, post.ID, 0)
}

func (s *PostService) GetPost(ctx context.Context, id models.ID, commentLimit int) (*models.Post, error) {
	if commentLimit > MaxPageSize {
		commentLimit = MaxPageSize
	}
	return s.postRepo.GetByID(ctx, id, commentLimit)
}

func (s *PostService) ListUserPosts(ctx context.Context, userID models.ID, limit, offset int) ([]*models.Post, error) {
	return s.postRepo.GetByUserID(ctx, userID, ClampLimit(limit), clampOffset(offset))
}

func (s *PostService) ListPosts(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	return s.postRepo.List(ctx, ClampLimit(limit), clampOffset(offset))
}

// UpdatePost replaces the body and file of a post owned by in.UserID.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	body, file, err := validatePost(in.Body, in.File)
	if err != nil {
		return nil, err
	}

	post, err := s.postRepo.GetByID(ctx, in.PostID, 0)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only edit your own posts")
	}

	span, ctx := observability.NewSpan(ctx, "PostService.UpdatePost", attribute.Int64("post.id", int64(in.PostID)))
	if err := s.postRepo.Update(ctx, &models.Post{ID: in.PostID, Body: body, File: file}); err != nil {
		span.EndWithError(err)
		return nil, err
	}
	span.End()

	return s.postRepo.GetByID(ctx, in.PostID, 0)
}

// DeletePost removes a post owned by in.UserID.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, in.PostID, 0)
	if err != nil {
		return nil, err
	}
	if post.UserID != in.UserID {
		return nil, models.NewForbiddenError("You can only delete your own posts")
	}
	if err := s.postRepo.Delete(ctx, in.PostID); err != nil {
		return nil, err
	}
	return post, nil
}

// LikePost reports whether a new like was recorded.
func (s *PostService) LikePost(ctx context.Context, in LikeInput) (bool, error) {
	if _, err := s.postRepo.GetByID(ctx, in.PostID, 0); err != nil {
		return false, err
	}
	return s.postRepo.Like(ctx, in.UserID, in.PostID)
}

// UnlikePost reports whether a like was removed.
func (s *PostService) UnlikePost(ctx context.Context, in LikeInput) (bool, error) {
	return s.postRepo.Unlike(ctx, in.UserID, in.PostID)
}
