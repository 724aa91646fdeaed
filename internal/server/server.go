// Package server contains the HTTP and WebSocket handlers of the feedsync API.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"feedsync/internal/cache"
	"feedsync/internal/config"
	"feedsync/internal/database"
	"feedsync/internal/middleware"
	"feedsync/internal/notifications"
	"feedsync/internal/repository"
	"feedsync/internal/service"
	"feedsync/internal/stream"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ChangeBroker is the fan-out the server publishes to and the change-stream
// websocket subscribes on.
type ChangeBroker interface {
	stream.Broker
	Start(ctx context.Context) error
	Close()
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	broker         ChangeBroker
	promMiddleware *fiberprometheus.FiberPrometheus

	userRepo            repository.UserRepository
	postRepo            repository.PostRepository
	commentRepo         repository.CommentRepository
	notificationRepo    repository.NotificationRepository
	notifier            *notifications.Notifier
	postService         *service.PostService
	commentService      *service.CommentService
	userService         *service.UserService
	notificationService *service.NotificationService

	// requestsPerMinute caps requests per IP; zero disables the limiter.
	requestsPerMinute int

	mu         sync.Mutex
	shutdownFn context.CancelFunc
	pgPool     *pgxpool.Pool
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL, middleware.Logger)
	redisClient := cache.GetClient()

	return NewServerWithDeps(cfg, db, redisClient, stream.NewRedisBroker(redisClient))
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis itself.
// broker may be nil, in which case an in-process broker is used.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, broker ChangeBroker) (*Server, error) {
	if db == nil {
		return nil, errors.New("server requires a database")
	}
	if broker == nil {
		broker = stream.NewRedisBroker(nil)
	}

	// With database triggers in charge, repositories stay quiet so every
	// change is announced once.
	var pub stream.Publisher = broker
	if cfg.StreamSource == config.StreamSourcePostgres {
		pub = stream.NopPublisher{}
	}

	s := &Server{
		config:            cfg,
		db:                db,
		redis:             redisClient,
		broker:            broker,
		promMiddleware:    middleware.InitMetrics("feedsync-api"),
		userRepo:          repository.NewUserRepository(db, pub),
		postRepo:          repository.NewPostRepository(db, pub),
		commentRepo:       repository.NewCommentRepository(db, pub),
		notificationRepo:  repository.NewNotificationRepository(db, pub),
		requestsPerMinute: 100,
	}
	if redisClient != nil {
		s.notifier = notifications.NewNotifier(redisClient)
	}

	s.postService = service.NewPostService(s.postRepo)
	s.commentService = service.NewCommentService(s.commentRepo, s.postRepo)
	s.userService = service.NewUserService(s.userRepo)
	var publisher service.NotificationPublisher
	if s.notifier != nil {
		publisher = s.notifier
	}
	s.notificationService = service.NewNotificationService(s.notificationRepo, publisher)

	return s, nil
}

// Broker returns the change-event fan-out.
func (s *Server) Broker() stream.Broker { return s.broker }

// Start runs the background change pipeline: the broker's Redis relay and,
// with STREAM_SOURCE=postgres, the LISTEN/NOTIFY source.
func (s *Server) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.shutdownFn = cancel
	s.mu.Unlock()

	if err := s.broker.Start(ctx); err != nil {
		cancel()
		return fmt.Errorf("start change broker: %w", err)
	}

	if s.config.StreamSource != config.StreamSourcePostgres {
		return nil
	}

	pool, err := pgxpool.New(ctx, s.config.DSN())
	if err != nil {
		cancel()
		return fmt.Errorf("open change listener pool: %w", err)
	}
	s.mu.Lock()
	s.pgPool = pool
	s.mu.Unlock()

	source := stream.NewPostgresSource(pool, s.broker, middleware.Logger)
	go func() {
		if err := source.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			middleware.Logger.Error("change source stopped", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the change pipeline and releases connections.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.shutdownFn
	pool := s.pgPool
	s.pgPool = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.broker.Close()
	if pool != nil {
		pool.Close()
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			return fmt.Errorf("close redis: %w", err)
		}
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- sqlDB.Close() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		MaxAge:       86400,
	}))

	if s.requestsPerMinute > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        s.requestsPerMinute,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Method() == fiber.MethodOptions || c.Path() == "/api/ws/changes"
			},
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error": "Too many requests, please try again later.",
				})
			},
		}))
	}
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	optional := middleware.OptionalAuth(s.config.JWTSecret)
	auth := middleware.AuthRequired(s.config.JWTSecret)

	// Change stream. Reads are public like the feeds they mirror.
	api.Get("/ws/changes", optional, s.ChangeStreamUpgrade, s.ChangeStreamHandler())

	// Users
	users := api.Group("/users", optional)
	users.Get("/", s.GetUsers)
	users.Get("/:id/posts", s.GetUserPosts)
	users.Get("/:id", s.GetUser)

	// Public post routes
	publicPosts := api.Group("/posts", optional)
	publicPosts.Get("/", s.GetPosts)
	publicPosts.Get("/:id/comments", s.GetComments)
	publicPosts.Get("/:id", s.GetPost)

	protected := api.Group("", auth)

	// Define specific /:id/:resource routes BEFORE generic /:id route
	posts := protected.Group("/posts")
	posts.Post("/", s.CreatePost)
	posts.Post("/:id/likes", s.LikePost)
	posts.Delete("/:id/likes", s.UnlikePost)
	posts.Post("/:id/comments", s.CreateComment)
	posts.Delete("/:id/comments/:commentId", s.DeletePostComment)
	posts.Put("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	protected.Delete("/comments/:id", s.DeleteComment)

	inbox := protected.Group("/notifications")
	inbox.Post("/", s.CreateNotification)
	inbox.Get("/", s.GetNotifications)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: a
// single instance runs without it.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if err := database.Ping(ctx, s.db); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}
