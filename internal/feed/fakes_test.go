package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"feedsync/internal/models"
	"feedsync/internal/stream"

	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = 2 * time.Second
	testPollInterval      = 10 * time.Millisecond
)

var errStoreDown = errors.New("store unavailable")

func quietOptions(viewer models.ID) Options {
	return Options{
		PageSize: 4,
		ViewerID: viewer,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// fakeStore keeps posts newest first and acts as viewer.
type fakeStore struct {
	mu       sync.Mutex
	viewer   models.ID
	nextID   models.ID
	posts    []models.Post
	comments map[models.ID][]models.Comment

	fetchErr    error
	mutateErr   error
	likes       []models.ID
	unlikes     []models.ID
	deleted     []models.ID
	detailCalls []int
}

func newFakeStore(viewer models.ID) *fakeStore {
	return &fakeStore{viewer: viewer, nextID: 1000, comments: make(map[models.ID][]models.Comment)}
}

func (s *fakeStore) addPost(id, userID models.ID) models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := models.Post{ID: id, UserID: userID, Body: "post", User: models.User{ID: userID}}
	s.posts = append([]models.Post{p}, s.posts...)
	return p
}

func (s *fakeStore) addComment(id, postID, userID models.ID) models.Comment {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := models.Comment{ID: id, PostID: postID, UserID: userID, Text: "hi", User: models.User{ID: userID}}
	s.comments[postID] = append([]models.Comment{c}, s.comments[postID]...)
	return c
}

func firstN[T any](items []T, n int) []T {
	if n > len(items) {
		n = len(items)
	}
	out := make([]T, n)
	copy(out, items[:n])
	return out
}

func (s *fakeStore) FetchPosts(_ context.Context, limit int) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return firstN(s.posts, limit), nil
}

func (s *fakeStore) FetchUserPosts(_ context.Context, userID models.ID, limit int) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	var mine []models.Post
	for _, p := range s.posts {
		if p.UserID == userID {
			mine = append(mine, p)
		}
	}
	return firstN(mine, limit), nil
}

func (s *fakeStore) FetchPostDetails(_ context.Context, postID models.ID, commentLimit int) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detailCalls = append(s.detailCalls, commentLimit)
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	for _, p := range s.posts {
		if p.ID == postID {
			p.Comments = firstN(s.comments[postID], commentLimit)
			return &p, nil
		}
	}
	return nil, models.NewNotFoundError("Post", postID)
}

func (s *fakeStore) CreatePost(_ context.Context, in NewPost) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutateErr != nil {
		return nil, s.mutateErr
	}
	s.nextID++
	return &models.Post{ID: s.nextID, UserID: s.viewer, Body: in.Body, File: in.File}, nil
}

func (s *fakeStore) UpdatePost(_ context.Context, id models.ID, in NewPost) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutateErr != nil {
		return nil, s.mutateErr
	}
	for i, p := range s.posts {
		if p.ID == id {
			p.Body, p.File = in.Body, in.File
			s.posts[i] = p
			return &p, nil
		}
	}
	return nil, models.NewNotFoundError("Post", id)
}

func (s *fakeStore) DeletePost(_ context.Context, id models.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutateErr != nil {
		return s.mutateErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeStore) LikePost(_ context.Context, postID models.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutateErr != nil {
		return s.mutateErr
	}
	s.likes = append(s.likes, postID)
	return nil
}

func (s *fakeStore) UnlikePost(_ context.Context, postID models.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutateErr != nil {
		return s.mutateErr
	}
	s.unlikes = append(s.unlikes, postID)
	return nil
}

func (s *fakeStore) CreateComment(_ context.Context, in NewComment) (*models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutateErr != nil {
		return nil, s.mutateErr
	}
	s.nextID++
	return &models.Comment{ID: s.nextID, PostID: in.PostID, UserID: s.viewer, Text: in.Text}, nil
}

func (s *fakeStore) DeleteComment(_ context.Context, id models.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mutateErr != nil {
		return s.mutateErr
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *fakeStore) deletedIDs() []models.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ID(nil), s.deleted...)
}

func (s *fakeStore) detailLimits() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.detailCalls...)
}

// fakeUsers resolves only the authors it knows.
type fakeUsers struct {
	authors map[models.ID]models.Author
}

func (u fakeUsers) LookupUser(_ context.Context, id models.ID) (*models.Author, error) {
	a, ok := u.authors[id]
	if !ok {
		return nil, models.NewNotFoundError("User", id)
	}
	return &a, nil
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent []models.NotificationPayload
	err  error
}

func (d *fakeDispatcher) Enqueue(_ context.Context, p models.NotificationPayload) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, p)
	return d.err
}

func (d *fakeDispatcher) payloads() []models.NotificationPayload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]models.NotificationPayload(nil), d.sent...)
}

// failingStream refuses every subscription.
type failingStream struct{}

func (failingStream) Subscribe(context.Context, stream.Topic, stream.Handler) (stream.Subscription, error) {
	return nil, errors.New("realtime unavailable")
}

func insertEvent(t *testing.T, table string, row any) stream.ChangeEvent {
	t.Helper()
	ev, err := stream.NewEvent(table, stream.Insert, row, nil)
	require.NoError(t, err)
	return ev
}

func ids[T Entity[T]](items []T) []models.ID {
	out := make([]models.ID, len(items))
	for i, it := range items {
		out[i] = it.Identity()
	}
	return out
}
