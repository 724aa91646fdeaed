package repository

import (
	"context"
	"errors"

	"feedsync/internal/models"
	"feedsync/internal/stream"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id models.ID, commentLimit int) (*models.Post, error)
	GetByUserID(ctx context.Context, userID models.ID, limit, offset int) ([]*models.Post, error)
	List(ctx context.Context, limit, offset int) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id models.ID) error
	Like(ctx context.Context, userID, postID models.ID) (bool, error)
	Unlike(ctx context.Context, userID, postID models.ID) (bool, error)
}

type postRepository struct {
	db    *gorm.DB
	posts changeEmitter
	likes changeEmitter
}

// NewPostRepository creates a new post repository. Writes are announced on pub.
func NewPostRepository(db *gorm.DB, pub stream.Publisher) PostRepository {
	return &postRepository{
		db:    db,
		posts: newChangeEmitter(stream.TablePosts, pub),
		likes: newChangeEmitter(stream.TableLikes, pub),
	}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(post).Error; err != nil {
		r.posts.logger.LogError(ctx, "create", err)
		return err
	}
	r.posts.logger.LogCreate(ctx, map[string]interface{}{"id": post.ID, "user_id": post.UserID})
	r.posts.emit(ctx, stream.Insert, postRow(*post), nil)
	return nil
}

// GetByID loads a post with its author, likes and up to commentLimit of the
// newest comments. commentLimit <= 0 loads no comments.
func (r *postRepository) GetByID(ctx context.Context, id models.ID, commentLimit int) (*models.Post, error) {
	var post models.Post
	q := applyPostDetails(r.db.WithContext(ctx)).
		Preload("User").
		Preload("Likes")
	if commentLimit > 0 {
		q = q.Preload("Comments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC, id DESC").Limit(commentLimit)
		}).Preload("Comments.User")
	}
	if err := q.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", id)
		}
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByUserID(ctx context.Context, userID models.ID, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := applyPostDetails(r.db.WithContext(ctx)).
		Preload("User").
		Preload("Likes").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

func (r *postRepository) List(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	var posts []*models.Post
	err := applyPostDetails(r.db.WithContext(ctx)).
		Preload("User").
		Preload("Likes").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	return posts, err
}

// Update saves the post's body and file. The update event carries both row
// images.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	var before models.Post
	if err := r.db.WithContext(ctx).First(&before, post.ID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Post", post.ID)
		}
		return err
	}
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", post.ID).
		Updates(map[string]interface{}{"body": post.Body, "file": post.File}).Error
	if err != nil {
		r.posts.logger.LogError(ctx, "update", err)
		return err
	}
	after := before
	after.Body = post.Body
	after.File = post.File
	r.posts.emit(ctx, stream.Update, postRow(after), postRow(before))
	return nil
}

// applyPostDetails adds subqueries to fetch counts in a single query.
func applyPostDetails(db *gorm.DB) *gorm.DB {
	return db.Select("posts.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id AND comments.deleted_at IS NULL) as comments_count, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) as likes_count")
}

// Delete soft-deletes the post. The delete event carries the row as it was,
// so subscribers filtering on user_id still see it.
func (r *postRepository) Delete(ctx context.Context, id models.ID) error {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Post", id)
		}
		return err
	}
	if err := r.db.WithContext(ctx).Delete(&models.Post{}, id).Error; err != nil {
		r.posts.logger.LogError(ctx, "delete", err)
		return err
	}
	r.posts.logger.LogDelete(ctx, map[string]interface{}{"id": id})
	r.posts.emit(ctx, stream.Delete, nil, postRow(post))
	return nil
}

// Like records userID's like on postID. It reports false when the like
// already existed.
func (r *postRepository) Like(ctx context.Context, userID, postID models.ID) (bool, error) {
	like := models.Like{UserID: userID, PostID: postID}
	// ON CONFLICT DO NOTHING keeps concurrent likes from failing on the unique index.
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&like)
	if result.Error != nil {
		r.likes.logger.LogError(ctx, "create", result.Error)
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	r.likes.emit(ctx, stream.Insert, like, nil)
	return true, nil
}

// Unlike hard-deletes the like. It reports false when there was none.
func (r *postRepository) Unlike(ctx context.Context, userID, postID models.ID) (bool, error) {
	var like models.Like
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		First(&like).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := r.db.WithContext(ctx).Unscoped().Delete(&like).Error; err != nil {
		r.likes.logger.LogError(ctx, "delete", err)
		return false, err
	}
	r.likes.emit(ctx, stream.Delete, nil, like)
	return true, nil
}

// postRow strips associations so the event image matches a table row.
func postRow(p models.Post) models.Post {
	p.User = models.User{}
	p.Likes = nil
	p.Comments = nil
	return p
}
