package server

import (
	"fmt"
	"net/http"
	"strings"
	"testing"

	"feedsync/internal/models"
	"feedsync/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUser(t *testing.T) {
	env := newTestEnv(t)
	alice := testutil.CreateUser(t, env.db, "alice")

	resp := env.request(t, http.MethodGet, "/api/users/"+alice.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	author := decodeBody[models.Author](t, resp)
	assert.Equal(t, models.Author{ID: alice.ID, Name: "alice", Image: "alice.png"}, author)

	resp = env.request(t, http.MethodGet, "/api/users/9999", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetUsers(t *testing.T) {
	env := newTestEnv(t)
	alice := testutil.CreateUser(t, env.db, "alice")
	bob := testutil.CreateUser(t, env.db, "bob")

	t.Run("keeps request order and skips unknown ids", func(t *testing.T) {
		path := fmt.Sprintf("/api/users?ids=%d,9999,%d", bob.ID, alice.ID)
		resp := env.request(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		authors := decodeBody[[]models.Author](t, resp)
		require.Len(t, authors, 2)
		assert.Equal(t, "bob", authors[0].Name)
		assert.Equal(t, "alice", authors[1].Name)
	})

	t.Run("no ids", func(t *testing.T) {
		resp := env.request(t, http.MethodGet, "/api/users", "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, decodeBody[[]models.Author](t, resp))
	})

	t.Run("malformed ids", func(t *testing.T) {
		resp := env.request(t, http.MethodGet, "/api/users?ids=1,x", "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("too many ids", func(t *testing.T) {
		ids := make([]string, 101)
		for i := range ids {
			ids[i] = fmt.Sprint(i + 1)
		}
		resp := env.request(t, http.MethodGet, "/api/users?ids="+strings.Join(ids, ","), "", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
