package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"feedsync/internal/feed"
	"feedsync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	Body   string
}

type requestLog struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (l *requestLog) add(r recordedRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reqs = append(l.reqs, r)
}

func (l *requestLog) all() []recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedRequest(nil), l.reqs...)
}

func newTestAPI(t *testing.T, handler http.HandlerFunc) (*Client, *requestLog) {
	t.Helper()
	log := &requestLog{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		log.add(recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			Body:   string(body),
		})
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", "tok", time.Second), log
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestStore_Fetches(t *testing.T) {
	client, seen := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/posts", "/api/users/7/posts":
			writeJSON(w, http.StatusOK, []models.Post{{ID: 2, UserID: 7}, {ID: 1, UserID: 7}})
		case "/api/posts/2":
			writeJSON(w, http.StatusOK, models.Post{ID: 2, UserID: 7, Comments: []models.Comment{{ID: 9, PostID: 2}}})
		default:
			http.NotFound(w, r)
		}
	})
	store := NewStore(client)
	ctx := context.Background()

	posts, err := store.FetchPosts(ctx, 4)
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	posts, err = store.FetchUserPosts(ctx, 7, 8)
	require.NoError(t, err)
	assert.Equal(t, models.ID(2), posts[0].ID)

	post, err := store.FetchPostDetails(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, post.Comments, 1)
	assert.Equal(t, models.ID(9), post.Comments[0].ID)

	reqs := seen.all()
	require.Len(t, reqs, 3)
	assert.Equal(t, "limit=4", reqs[0].Query)
	assert.Equal(t, "limit=8", reqs[1].Query)
	assert.Equal(t, "comment_limit=4", reqs[2].Query)
	for _, req := range reqs {
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "Bearer tok", req.Auth)
	}
}

func TestStore_WideWindowsArePagedThroughTheServerCap(t *testing.T) {
	const totalPosts, totalComments = 250, 120
	window := func(r *http.Request, total int) (from, to int) {
		q := r.URL.Query()
		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		from = min(offset, total)
		return from, min(from+min(limit, models.MaxPageSize), total)
	}
	client, seen := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/users/7/posts":
			from, to := window(r, totalPosts)
			posts := make([]models.Post, 0, to-from)
			for i := from; i < to; i++ {
				posts = append(posts, models.Post{ID: models.ID(totalPosts - i), UserID: 7})
			}
			writeJSON(w, http.StatusOK, posts)
		case "/api/posts/2":
			limit, _ := strconv.Atoi(r.URL.Query().Get("comment_limit"))
			post := models.Post{ID: 2}
			for i := 0; i < min(limit, models.MaxPageSize, totalComments); i++ {
				post.Comments = append(post.Comments, models.Comment{ID: models.ID(1000 - i), PostID: 2})
			}
			writeJSON(w, http.StatusOK, post)
		case "/api/posts/2/comments":
			from, to := window(r, totalComments)
			comments := make([]models.Comment, 0, to-from)
			for i := from; i < to; i++ {
				comments = append(comments, models.Comment{ID: models.ID(1000 - i), PostID: 2})
			}
			writeJSON(w, http.StatusOK, comments)
		default:
			http.NotFound(w, r)
		}
	})
	store := NewStore(client)
	ctx := context.Background()

	posts, err := store.FetchUserPosts(ctx, 7, 260)
	require.NoError(t, err)
	require.Len(t, posts, totalPosts)
	assert.Equal(t, models.ID(totalPosts), posts[0].ID)
	assert.Equal(t, models.ID(1), posts[totalPosts-1].ID)

	post, err := store.FetchPostDetails(ctx, 2, 130)
	require.NoError(t, err)
	require.Len(t, post.Comments, totalComments)
	assert.Equal(t, models.ID(1000-totalComments+1), post.Comments[totalComments-1].ID)

	var queries []string
	for _, req := range seen.all() {
		queries = append(queries, req.Path+"?"+req.Query)
	}
	assert.Equal(t, []string{
		"/api/users/7/posts?limit=100",
		"/api/users/7/posts?limit=100&offset=100",
		"/api/users/7/posts?limit=60&offset=200",
		"/api/posts/2?comment_limit=100",
		"/api/posts/2/comments?limit=30&offset=100",
	}, queries)
}

func TestStore_Mutations(t *testing.T) {
	client, seen := newTestAPI(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/posts":
			writeJSON(w, http.StatusCreated, models.Post{ID: 5, Body: "hi"})
		case r.Method == http.MethodPost && r.URL.Path == "/api/posts/5/comments":
			writeJSON(w, http.StatusCreated, models.Comment{ID: 6, PostID: 5, Text: "yo"})
		case r.Method == http.MethodPut && r.URL.Path == "/api/posts/5":
			writeJSON(w, http.StatusOK, models.Post{ID: 5, Body: "edited"})
		case r.Method == http.MethodPost:
			writeJSON(w, http.StatusOK, map[string]bool{"liked": true})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	store := NewStore(client)
	ctx := context.Background()

	post, err := store.CreatePost(ctx, feed.NewPost{Body: "hi"})
	require.NoError(t, err)
	assert.Equal(t, models.ID(5), post.ID)

	comment, err := store.CreateComment(ctx, feed.NewComment{PostID: 5, Text: "yo"})
	require.NoError(t, err)
	assert.Equal(t, models.ID(6), comment.ID)

	edited, err := store.UpdatePost(ctx, 5, feed.NewPost{Body: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", edited.Body)

	require.NoError(t, store.LikePost(ctx, 5))
	require.NoError(t, store.UnlikePost(ctx, 5))
	require.NoError(t, store.DeleteComment(ctx, 6))
	require.NoError(t, store.DeletePost(ctx, 5))

	want := []struct{ method, path string }{
		{http.MethodPost, "/api/posts"},
		{http.MethodPost, "/api/posts/5/comments"},
		{http.MethodPut, "/api/posts/5"},
		{http.MethodPost, "/api/posts/5/likes"},
		{http.MethodDelete, "/api/posts/5/likes"},
		{http.MethodDelete, "/api/comments/6"},
		{http.MethodDelete, "/api/posts/5"},
	}
	reqs := seen.all()
	require.Len(t, reqs, len(want))
	for i, w := range want {
		assert.Equal(t, w.method, reqs[i].Method)
		assert.Equal(t, w.path, reqs[i].Path)
	}
	assert.JSONEq(t, `{"body":"hi","file":""}`, reqs[0].Body)
	assert.JSONEq(t, `{"text":"yo"}`, reqs[1].Body)
	assert.JSONEq(t, `{"body":"edited","file":""}`, reqs[2].Body)
}

func TestStore_APIError(t *testing.T) {
	client, _ := newTestAPI(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusForbidden, models.ErrorResponse{Error: "You can only delete your own posts", Code: models.CodeForbidden})
	})

	err := NewStore(client).DeletePost(context.Background(), 3)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, models.CodeForbidden, apiErr.Code)
	assert.Equal(t, "You can only delete your own posts", apiErr.Message)
}

func TestStore_NonJSONError(t *testing.T) {
	client, _ := newTestAPI(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := NewStore(client).FetchPosts(context.Background(), 4)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestDispatcher_Enqueue(t *testing.T) {
	client, seen := newTestAPI(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, models.Notification{ID: 1})
	})

	p := models.CommentNotification(2, 1, 10, 11)
	require.NoError(t, NewDispatcher(client).Enqueue(context.Background(), p))

	reqs := seen.all()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/api/notifications", reqs[0].Path)
	var got models.NotificationPayload
	require.NoError(t, json.Unmarshal([]byte(reqs[0].Body), &got))
	assert.Equal(t, p, got)
}
