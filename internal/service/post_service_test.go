package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"feedsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn      func(context.Context, *models.Post) error
	getByIDFn     func(context.Context, models.ID, int) (*models.Post, error)
	getByUserIDFn func(context.Context, models.ID, int, int) ([]*models.Post, error)
	listFn        func(context.Context, int, int) ([]*models.Post, error)
	updateFn      func(context.Context, *models.Post) error
	deleteFn      func(context.Context, models.ID) error
	likeFn        func(context.Context, models.ID, models.ID) (bool, error)
	unlikeFn      func(context.Context, models.ID, models.ID) (bool, error)
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id models.ID, commentLimit int) (*models.Post, error) {
	return s.getByIDFn(ctx, id, commentLimit)
}
func (s *postRepoStub) GetByUserID(ctx context.Context, userID models.ID, limit, offset int) ([]*models.Post, error) {
	return s.getByUserIDFn(ctx, userID, limit, offset)
}
func (s *postRepoStub) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	return s.listFn(ctx, limit, offset)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id models.ID) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) Like(ctx context.Context, userID, postID models.ID) (bool, error) {
	return s.likeFn(ctx, userID, postID)
}
func (s *postRepoStub) Unlike(ctx context.Context, userID, postID models.ID) (bool, error) {
	return s.unlikeFn(ctx, userID, postID)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn:      func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn:     func(_ context.Context, id models.ID, _ int) (*models.Post, error) { return &models.Post{ID: id}, nil },
		getByUserIDFn: func(_ context.Context, _ models.ID, _, _ int) ([]*models.Post, error) { return nil, nil },
		listFn:        func(_ context.Context, _, _ int) ([]*models.Post, error) { return nil, nil },
		updateFn:      func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn:      func(_ context.Context, _ models.ID) error { return nil },
		likeFn:        func(_ context.Context, _, _ models.ID) (bool, error) { return true, nil },
		unlikeFn:      func(_ context.Context, _, _ models.ID) (bool, error) { return true, nil },
	}
}

// assertAppError asserts that err is an AppError with the given code.
func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	assertAppError(t, err, models.CodeValidation)
}

func TestPostService_CreatePost_Validation(t *testing.T) {
	t.Parallel()

	svc := NewPostService(noopPostRepo())
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreatePostInput
	}{
		{"empty post", CreatePostInput{UserID: 1}},
		{"whitespace only", CreatePostInput{UserID: 1, Body: "   ", File: " "}},
		{"body too long", CreatePostInput{UserID: 1, Body: strings.Repeat("x", maxBodyLen+1)}},
		{"file too long", CreatePostInput{UserID: 1, File: strings.Repeat("f", maxFileLen+1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := svc.CreatePost(ctx, tt.input)
			assertValidationError(t, err)
		})
	}
}

func TestPostService_CreatePost_Success(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	var created *models.Post
	repo.createFn = func(_ context.Context, p *models.Post) error {
		p.ID = 42
		created = p
		return nil
	}
	repo.getByIDFn = func(_ context.Context, id models.ID, _ int) (*models.Post, error) {
		return &models.Post{ID: id, Body: created.Body, File: created.File, UserID: created.UserID}, nil
	}

	svc := NewPostService(repo)
	post, err := svc.CreatePost(context.Background(), CreatePostInput{UserID: 3, Body: "  hi  ", File: "a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, models.ID(42), post.ID)
	assert.Equal(t, "hi", post.Body)
	assert.Equal(t, models.ID(3), post.UserID)
}

func TestPostService_DeletePost_Ownership(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id models.ID, _ int) (*models.Post, error) {
		return &models.Post{ID: id, UserID: 10}, nil
	}
	deleted := false
	repo.deleteFn = func(_ context.Context, _ models.ID) error {
		deleted = true
		return nil
	}
	svc := NewPostService(repo)

	_, err := svc.DeletePost(context.Background(), DeletePostInput{UserID: 1, PostID: 5})
	assertAppError(t, err, models.CodeForbidden)
	assert.False(t, deleted)

	post, err := svc.DeletePost(context.Background(), DeletePostInput{UserID: 10, PostID: 5})
	require.NoError(t, err)
	assert.Equal(t, models.ID(5), post.ID)
	assert.True(t, deleted)
}

func TestPostService_LikePost_MissingPost(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id models.ID, _ int) (*models.Post, error) {
		return nil, models.NewNotFoundError("Post", id)
	}
	repo.likeFn = func(_ context.Context, _, _ models.ID) (bool, error) {
		t.Fatal("like must not run for a missing post")
		return false, nil
	}

	_, err := NewPostService(repo).LikePost(context.Background(), LikeInput{UserID: 1, PostID: 9})
	assertAppError(t, err, models.CodeNotFound)
}

func TestPostService_ListLimits(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	var limits, offsets []int
	repo.getByUserIDFn = func(_ context.Context, _ models.ID, limit, offset int) ([]*models.Post, error) {
		limits = append(limits, limit)
		offsets = append(offsets, offset)
		return nil, nil
	}
	svc := NewPostService(repo)

	for _, limit := range []int{0, -3, 4, 1000} {
		_, err := svc.ListUserPosts(context.Background(), 1, limit, limit)
		require.NoError(t, err)
	}
	assert.Equal(t, []int{DefaultPageSize, DefaultPageSize, 4, MaxPageSize}, limits)
	assert.Equal(t, []int{0, 0, 4, 1000}, offsets, "offset is passed through, negatives become zero")
}

func TestPostService_UpdatePost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    UpdatePostInput
		wantCode string
	}{
		{name: "owner edits", input: UpdatePostInput{UserID: 1, PostID: 5, Body: "  edited  "}},
		{name: "stranger is refused", input: UpdatePostInput{UserID: 2, PostID: 5, Body: "x"}, wantCode: models.CodeForbidden},
		{name: "empty post", input: UpdatePostInput{UserID: 1, PostID: 5, Body: "  "}, wantCode: models.CodeValidation},
		{name: "body too long", input: UpdatePostInput{UserID: 1, PostID: 5, Body: strings.Repeat("a", maxBodyLen+1)}, wantCode: models.CodeValidation},
		{name: "missing post", input: UpdatePostInput{UserID: 1, PostID: 9, Body: "x"}, wantCode: models.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			repo := noopPostRepo()
			stored := models.Post{ID: 5, UserID: 1, Body: "draft"}
			repo.getByIDFn = func(_ context.Context, id models.ID, _ int) (*models.Post, error) {
				if id != stored.ID {
					return nil, models.NewNotFoundError("Post", id)
				}
				p := stored
				return &p, nil
			}
			var updated *models.Post
			repo.updateFn = func(_ context.Context, p *models.Post) error {
				updated = p
				stored.Body, stored.File = p.Body, p.File
				return nil
			}

			got, err := NewPostService(repo).UpdatePost(context.Background(), tt.input)
			if tt.wantCode != "" {
				assertAppError(t, err, tt.wantCode)
				assert.Nil(t, updated, "nothing is written on failure")
				return
			}
			require.NoError(t, err)
			require.NotNil(t, updated)
			assert.Equal(t, "edited", updated.Body)
			assert.Equal(t, "edited", got.Body)
		})
	}
}
