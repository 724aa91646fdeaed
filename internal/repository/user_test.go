package repository

import (
	"context"
	"regexp"
	"testing"

	"feedsync/internal/cache"
	"feedsync/internal/models"
	"feedsync/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUserRepository_GetByID(t *testing.T) {
	cache.SetClient(nil)
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	tests := []struct {
		name         string
		userID       models.ID
		mockBehavior func()
		expectedUser *models.User
		expectedCode string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "username", "name"}).
					AddRow(1, "testuser", "Test User")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
			},
			expectedUser: &models.User{ID: 1, Username: "testuser", Name: "Test User"},
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 AND "users"."deleted_at" IS NULL ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnError(gorm.ErrRecordNotFound)
			},
			expectedCode: models.CodeNotFound,
		},
		{
			name:   "Database Error",
			userID: 2,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users"`)).
					WillReturnError(assert.AnError)
			},
			expectedCode: models.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, models.ErrorCode(err))
				assert.Nil(t, user)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedUser.Username, user.Username)
				assert.Equal(t, tt.expectedUser.Name, user.Name)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUserRepository_GetByIDUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache.SetClient(rdb)
	t.Cleanup(func() {
		cache.SetClient(nil)
		_ = rdb.Close()
	})

	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()
	ann := testutil.CreateUser(t, db, "ann")

	first, err := repo.GetByID(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann", first.Name)
	assert.True(t, mr.Exists(cache.UserKey(ann.ID)))

	// A row change behind the cache's back is not visible until invalidation.
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", ann.ID).Update("name", "Ann B").Error)
	cached, err := repo.GetByID(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, "ann", cached.Name)

	cache.InvalidateUser(ctx, ann.ID)
	fresh, err := repo.GetByID(ctx, ann.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann B", fresh.Name)
}

func TestUserRepository_GetByIDs(t *testing.T) {
	cache.SetClient(nil)
	db := testutil.NewSQLiteDB(t)
	repo := NewUserRepository(db, nil)
	ctx := context.Background()

	ann := testutil.CreateUser(t, db, "ann")
	bob := testutil.CreateUser(t, db, "bob")

	users, err := repo.GetByIDs(ctx, []models.ID{ann.ID, bob.ID, 404})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	users, err = repo.GetByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, users)
}
