// Package seed provides database seeding utilities for development and testing.
package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"feedsync/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Options configuration for the seeder
type Options struct {
	NumUsers        int
	PostsPerUser    int
	CommentsPerPost int
	// LikePercent is the chance, 0 to 100, that a user likes a given post.
	LikePercent int
	// PasswordCost is the bcrypt cost. Zero means bcrypt.DefaultCost.
	PasswordCost int
	// RandSeed makes generated content reproducible. Zero picks a time based seed.
	RandSeed int64
}

// Summary counts what a seeding run created.
type Summary struct {
	Users    []models.User
	Posts    int
	Comments int
	Likes    int
}

// Seeder writes demo data straight through gorm.
type Seeder struct {
	db    *gorm.DB
	opts  Options
	faker *gofakeit.Faker
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{db: db, opts: opts, faker: gofakeit.New(seed)}
}

// ClearAll removes every row the feed touches.
func (s *Seeder) ClearAll(ctx context.Context) error {
	log.Println("🗑️  Clearing existing data...")
	db := s.db.WithContext(ctx)
	if db.Dialector.Name() == "postgres" {
		return db.Exec(`TRUNCATE TABLE notifications, comments, likes, posts, users RESTART IDENTITY CASCADE;`).Error
	}
	for _, table := range []string{"notifications", "comments", "likes", "posts", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Run creates NumUsers users, their posts, comments from other users and likes.
func (s *Seeder) Run(ctx context.Context) (*Summary, error) {
	log.Printf("🌱 Seeding %d users with %d posts each...", s.opts.NumUsers, s.opts.PostsPerUser)

	hash, err := s.passwordHash()
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := make([]models.User, 0, s.opts.NumUsers)
		for i := 0; i < s.opts.NumUsers; i++ {
			u := s.buildUser(i, hash)
			if err := tx.Create(&u).Error; err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			users = append(users, u)
		}
		summary.Users = users

		// Older posts first so ids and timestamps agree.
		start := time.Now().Add(-time.Duration(len(users)*s.opts.PostsPerUser) * time.Hour)
		n := 0
		for _, author := range users {
			for j := 0; j < s.opts.PostsPerUser; j++ {
				post := s.buildPost(author.ID, start.Add(time.Duration(n)*time.Hour))
				n++
				if err := tx.Omit(clause.Associations).Create(&post).Error; err != nil {
					return fmt.Errorf("create post: %w", err)
				}
				summary.Posts++

				comments, err := s.commentOn(tx, post, users)
				if err != nil {
					return err
				}
				summary.Comments += comments

				likes, err := s.likePost(tx, post, users)
				if err != nil {
					return err
				}
				summary.Likes += likes
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("✓ %d users, %d posts, %d comments, %d likes", len(summary.Users), summary.Posts, summary.Comments, summary.Likes)
	return summary, nil
}

func (s *Seeder) passwordHash() (string, error) {
	cost := s.opts.PasswordCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *Seeder) buildUser(i int, hash string) models.User {
	username := fmt.Sprintf("%s%d", s.faker.Username(), i)
	return models.User{
		Username: username,
		Name:     s.faker.Name(),
		Email:    username + "@example.com",
		Password: hash,
		Bio:      s.faker.Sentence(8),
		Image:    fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
	}
}

func (s *Seeder) buildPost(userID models.ID, at time.Time) models.Post {
	return models.Post{
		Body:      s.faker.Sentence(s.faker.Number(4, 16)),
		File:      fmt.Sprintf("https://picsum.photos/seed/%s/800/800", s.faker.UUID()),
		UserID:    userID,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func (s *Seeder) commentOn(tx *gorm.DB, post models.Post, users []models.User) (int, error) {
	if s.opts.CommentsPerPost <= 0 || len(users) < 2 {
		return 0, nil
	}
	count := s.faker.Number(0, s.opts.CommentsPerPost)
	for k := 0; k < count; k++ {
		commenter := users[s.faker.Number(0, len(users)-1)]
		at := post.CreatedAt.Add(time.Duration(k+1) * time.Minute)
		c := models.Comment{
			Text:      s.faker.Sentence(s.faker.Number(3, 10)),
			UserID:    commenter.ID,
			PostID:    post.ID,
			CreatedAt: at,
			UpdatedAt: at,
		}
		if err := tx.Omit(clause.Associations).Create(&c).Error; err != nil {
			return k, fmt.Errorf("create comment: %w", err)
		}
	}
	return count, nil
}

func (s *Seeder) likePost(tx *gorm.DB, post models.Post, users []models.User) (int, error) {
	if s.opts.LikePercent <= 0 {
		return 0, nil
	}
	likes := 0
	for _, u := range users {
		if u.ID == post.UserID || s.faker.Number(1, 100) > s.opts.LikePercent {
			continue
		}
		like := models.Like{UserID: u.ID, PostID: post.ID}
		if err := tx.Create(&like).Error; err != nil {
			return likes, fmt.Errorf("create like: %w", err)
		}
		likes++
	}
	return likes, nil
}
