package repository

import (
	"context"
	"errors"

	"feedsync/internal/cache"
	"feedsync/internal/models"
	"feedsync/internal/stream"

	"gorm.io/gorm"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id models.ID) (*models.User, error)
	GetByIDs(ctx context.Context, ids []models.ID) ([]models.User, error)
	Create(ctx context.Context, user *models.User) error
}

type userRepository struct {
	db     *gorm.DB
	events changeEmitter
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB, pub stream.Publisher) UserRepository {
	return &userRepository{db: db, events: newChangeEmitter(stream.TableUsers, pub)}
}

// GetByID reads through the Redis cache.
func (r *userRepository) GetByID(ctx context.Context, id models.ID) (*models.User, error) {
	var user models.User
	key := cache.UserKey(id)

	err := cache.Aside(ctx, key, &user, cache.UserTTL, func() error {
		if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.NewNotFoundError("User", id)
			}
			return models.NewInternalError(err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByIDs returns the users found among ids, in no particular order.
func (r *userRepository) GetByIDs(ctx context.Context, ids []models.ID) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		r.events.logger.LogError(ctx, "create", err)
		return err
	}
	r.events.emit(ctx, stream.Insert, user, nil)
	return nil
}
