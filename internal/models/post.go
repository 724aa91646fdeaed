package models

import (
	"time"

	"gorm.io/gorm"
)

// MaxPageSize is the most items a single list request returns.
const MaxPageSize = 100

// Post is a media reference plus text body published by a user.
type Post struct {
	ID     ID     `gorm:"primaryKey" json:"id"`
	Body   string `json:"body"`
	File   string `json:"file"`
	UserID ID     `gorm:"not null;index" json:"user_id"`
	User   User   `gorm:"foreignKey:UserID" json:"user"`
	Likes  []Like `gorm:"foreignKey:PostID" json:"post_likes"`
	// Comments is only populated by the post details query.
	Comments []Comment `gorm:"foreignKey:PostID" json:"comments,omitempty"`
	// LikesCount and CommentsCount are computed at query time.
	LikesCount    int            `gorm:"->;-:migration" json:"likes_count"`
	CommentsCount int            `gorm:"->;-:migration" json:"comments_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// Identity returns the post id.
func (p Post) Identity() ID { return p.ID }

// AuthorID returns the id of the user that published the post.
func (p Post) AuthorID() ID { return p.UserID }

// WithAuthor returns a copy of p carrying the given author summary.
func (p Post) WithAuthor(a Author) Post {
	p.User = UserFromAuthor(a)
	return p
}

// LikedBy reports whether userID is among the post's likes.
func (p Post) LikedBy(userID ID) bool {
	for _, l := range p.Likes {
		if l.UserID == userID {
			return true
		}
	}
	return false
}

// Like represents a user's like on a post.
// The combination of UserID and PostID must be unique.
type Like struct {
	ID        ID        `gorm:"primaryKey" json:"id"`
	UserID    ID        `gorm:"not null;uniqueIndex:idx_user_post" json:"user_id"`
	PostID    ID        `gorm:"not null;uniqueIndex:idx_user_post" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Comment is a text reply attached to exactly one post.
type Comment struct {
	ID        ID             `gorm:"primaryKey" json:"id"`
	Text      string         `gorm:"not null" json:"text"`
	UserID    ID             `gorm:"not null;index" json:"user_id"`
	PostID    ID             `gorm:"not null;index" json:"post_id"`
	User      User           `gorm:"foreignKey:UserID" json:"user"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Identity returns the comment id.
func (c Comment) Identity() ID { return c.ID }

// AuthorID returns the id of the commenter.
func (c Comment) AuthorID() ID { return c.UserID }

// WithAuthor returns a copy of c carrying the given author summary.
func (c Comment) WithAuthor(a Author) Comment {
	c.User = UserFromAuthor(a)
	return c
}
