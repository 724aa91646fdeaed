package models

import (
	"time"

	"gorm.io/gorm"
)

// User is an account that publishes posts and comments. When embedded in a
// post or comment it serves as the denormalized author summary.
type User struct {
	ID        ID             `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"unique;not null" json:"username"`
	Name      string         `json:"name"`
	Email     string         `gorm:"unique;not null" json:"-"`
	Password  string         `gorm:"not null" json:"-"`
	Bio       string         `json:"bio,omitempty"`
	Image     string         `json:"image"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Author is the placeholder-safe summary view of a user.
type Author struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image"`
}

// Author returns the summary of u.
func (u User) Author() Author {
	return Author{ID: u.ID, Name: u.Name, Image: u.Image}
}

// UserFromAuthor rebuilds the embedded user shape from a summary.
func UserFromAuthor(a Author) User {
	return User{ID: a.ID, Name: a.Name, Image: a.Image}
}
