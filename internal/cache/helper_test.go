package cache

import (
	"context"
	"errors"
	"testing"

	"feedsync/internal/models"
	"feedsync/internal/observability"

	"github.com/alicebob/miniredis/v2"
	dto "github.com/prometheus/client_model/go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	SetClient(rdb)
	t.Cleanup(func() {
		SetClient(nil)
		_ = rdb.Close()
	})
	return mr
}

func TestAside_MissThenHit(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	calls := 0
	fetch := func(dest *models.Author) func() error {
		return func() error {
			calls++
			*dest = models.Author{ID: 3, Name: "ann"}
			return nil
		}
	}

	var first models.Author
	require.NoError(t, Aside(ctx, UserKey(3), &first, UserTTL, fetch(&first)))
	assert.Equal(t, "ann", first.Name)
	assert.True(t, mr.Exists("user:3"))

	var second models.Author
	require.NoError(t, Aside(ctx, UserKey(3), &second, UserTTL, fetch(&second)))
	assert.Equal(t, "ann", second.Name)
	assert.Equal(t, 1, calls, "second read is served from cache")

	InvalidateUser(ctx, 3)
	assert.False(t, mr.Exists("user:3"))
}

func TestAside_FetchErrorIsNotCached(t *testing.T) {
	mr := setupMiniredis(t)
	fetchErr := errors.New("db down")

	var a models.Author
	err := Aside(context.Background(), UserKey(4), &a, UserTTL, func() error { return fetchErr })
	assert.ErrorIs(t, err, fetchErr)
	assert.False(t, mr.Exists("user:4"))
}

func TestAside_WithoutClientAlwaysFetches(t *testing.T) {
	SetClient(nil)

	calls := 0
	var a models.Author
	for i := 0; i < 2; i++ {
		require.NoError(t, Aside(context.Background(), UserKey(1), &a, UserTTL, func() error {
			calls++
			return nil
		}))
	}
	assert.Equal(t, 2, calls)
}

func TestAside_CorruptEntryFallsBackToFetch(t *testing.T) {
	mr := setupMiniredis(t)
	require.NoError(t, mr.Set("user:5", "{not json"))

	var a models.Author
	require.NoError(t, Aside(context.Background(), UserKey(5), &a, UserTTL, func() error {
		a = models.Author{ID: 5, Name: "bob"}
		return nil
	}))
	assert.Equal(t, "bob", a.Name)
}

func TestLookupHookCountsAuthorCacheReads(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()
	counter := func(family, result string) float64 {
		var m dto.Metric
		require.NoError(t, observability.CacheLookups.WithLabelValues(family, result).Write(&m))
		return m.GetCounter().GetValue()
	}
	misses, hits, errs := counter("user", resultMiss), counter("user", resultHit), counter("user", resultError)

	var a models.Author
	require.NoError(t, Aside(ctx, UserKey(8), &a, UserTTL, func() error {
		a = models.Author{ID: 8, Name: "cy"}
		return nil
	}))
	require.NoError(t, Aside(ctx, UserKey(8), &a, UserTTL, func() error { return nil }))

	assert.Equal(t, misses+1, counter("user", resultMiss))
	assert.Equal(t, hits+1, counter("user", resultHit))

	mr.SetError("cache down")
	_, err := GetJSON(ctx, UserKey(8), &a)
	assert.Error(t, err)
	assert.Equal(t, errs+1, counter("user", resultError))
}

func TestKeyFamily(t *testing.T) {
	assert.Equal(t, "user", keyFamily(UserKey(3)))
	assert.Equal(t, "other", keyFamily("session:3"))
	assert.Equal(t, "other", keyFamily("plain"))
}
