package repository

import (
	"context"
	"errors"

	"feedsync/internal/models"
	"feedsync/internal/stream"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id models.ID) (*models.Comment, error)
	ListByPost(ctx context.Context, postID models.ID, limit, offset int) ([]*models.Comment, error)
	Delete(ctx context.Context, id models.ID) error
}

type commentRepository struct {
	db     *gorm.DB
	events changeEmitter
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB, pub stream.Publisher) CommentRepository {
	return &commentRepository{db: db, events: newChangeEmitter(stream.TableComments, pub)}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error; err != nil {
		r.events.logger.LogError(ctx, "create", err)
		return err
	}
	r.events.logger.LogCreate(ctx, map[string]interface{}{"id": comment.ID, "post_id": comment.PostID})
	r.events.emit(ctx, stream.Insert, commentRow(*comment), nil)
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id models.ID) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("User").First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, err
	}
	return &comment, nil
}

// ListByPost returns up to limit of the post's comments after skipping the
// offset newest, newest first.
func (r *commentRepository) ListByPost(ctx context.Context, postID models.ID, limit, offset int) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("post_id = ?", postID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) Delete(ctx context.Context, id models.ID) error {
	var comment models.Comment
	if err := r.db.WithContext(ctx).First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.NewNotFoundError("Comment", id)
		}
		return err
	}
	if err := r.db.WithContext(ctx).Delete(&models.Comment{}, id).Error; err != nil {
		r.events.logger.LogError(ctx, "delete", err)
		return err
	}
	r.events.logger.LogDelete(ctx, map[string]interface{}{"id": id, "post_id": comment.PostID})
	r.events.emit(ctx, stream.Delete, nil, commentRow(comment))
	return nil
}

func commentRow(c models.Comment) models.Comment {
	c.User = models.User{}
	return c
}
