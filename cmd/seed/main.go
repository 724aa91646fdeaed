// Command seed fills the database with demo users, posts, comments and likes,
// then prints a development token for each created user.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"feedsync/internal/config"
	"feedsync/internal/database"
	"feedsync/internal/middleware"
	"feedsync/internal/seed"
)

func main() {
	// Parse command line flags
	numUsers := flag.Int("users", 10, "Number of users to create")
	postsPerUser := flag.Int("posts", 8, "Posts per user")
	comments := flag.Int("comments", 4, "Maximum comments per post")
	likes := flag.Int("likes", 30, "Chance in percent that a user likes a post")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	fixture := flag.String("fixture", "", "Seed from a YAML fixture instead of generated data")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the printed development tokens")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db, seed.Options{
		NumUsers:        *numUsers,
		PostsPerUser:    *postsPerUser,
		CommentsPerPost: *comments,
		LikePercent:     *likes,
	})

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	var summary *seed.Summary
	if *fixture != "" {
		log.Printf("Applying fixture: %s (ignoring generator flags)", *fixture)
		fx, err := seed.LoadFixtureFile(*fixture)
		if err != nil {
			log.Fatalf("❌ Fixture load failed: %v", err)
		}
		summary, err = s.ApplyFixture(ctx, fx)
		if err != nil {
			log.Fatalf("❌ Fixture seeding failed: %v", err)
		}
	} else {
		summary, err = s.Run(ctx)
		if err != nil {
			log.Fatalf("❌ Seeding failed: %v", err)
		}
	}

	log.Println("✨ All done! Development tokens:")
	for _, u := range summary.Users {
		token, err := middleware.IssueToken(cfg.JWTSecret, u.ID, *tokenTTL)
		if err != nil {
			log.Fatalf("Failed to issue token for %s: %v", u.Username, err)
		}
		fmt.Printf("%d\t%s\t%s\n", u.ID, u.Username, token)
	}
	log.Printf("📧 All seeded users have the password: %s", seed.DefaultPassword)
}
