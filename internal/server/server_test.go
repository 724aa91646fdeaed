package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"feedsync/internal/config"
	"feedsync/internal/middleware"
	"feedsync/internal/models"
	"feedsync/internal/stream"
	"feedsync/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

// localChangeBroker runs the server on a plain in-process broker so tests can
// observe subscriber counts.
type localChangeBroker struct {
	*stream.LocalBroker
}

func (localChangeBroker) Start(context.Context) error { return nil }

type testEnv struct {
	srv    *Server
	app    *fiber.App
	db     *gorm.DB
	broker localChangeBroker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	broker := localChangeBroker{stream.NewLocalBroker()}
	cfg := &config.Config{
		JWTSecret:    testSecret,
		Env:          "test",
		StreamSource: config.StreamSourceApp,
	}

	srv, err := NewServerWithDeps(cfg, db, nil, broker)
	require.NoError(t, err)
	t.Cleanup(broker.Close)

	app := fiber.New()
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)
	return &testEnv{srv: srv, app: app, db: db, broker: broker}
}

func tokenFor(t *testing.T, id models.ID) string {
	t.Helper()
	token, err := middleware.IssueToken(testSecret, id, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) request(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.app.Test(req, 5000)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestNewServerWithDepsRequiresDatabase(t *testing.T) {
	_, err := NewServerWithDeps(&config.Config{}, nil, nil, nil)
	assert.Error(t, err)
}

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "healthy", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "unavailable", checks["redis"])
}

func TestServerStartAndShutdown(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.srv.Start(context.Background()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, env.srv.Shutdown(ctx))

	_, err := env.broker.Subscribe(context.Background(), stream.Topic{Table: stream.TablePosts}, func(stream.ChangeEvent) {})
	assert.ErrorIs(t, err, stream.ErrBrokerClosed)
}
