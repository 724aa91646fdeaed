// Package cache keeps author summaries in Redis so live inserts resolve
// their author without a database round trip.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"feedsync/internal/observability"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
)

var client *redis.Client

// Lookup results recorded on observability.CacheLookups.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultError = "error"
)

// keyFamily returns the prefix of a cache key, "user" for "user:42". Keys
// outside the feedsync families are reported as "other".
func keyFamily(key string) string {
	if family, _, ok := strings.Cut(key, ":"); ok && family == userFamily {
		return family
	}
	return "other"
}

// lookupHook counts author cache hits and misses per key family and every
// failed command by name.
type lookupHook struct{}

func (lookupHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (lookupHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		failed := err != nil && !errors.Is(err, redis.Nil)
		if failed {
			observability.RedisErrorRate.WithLabelValues(cmd.Name()).Inc()
		}
		if args := cmd.Args(); cmd.Name() == "get" && len(args) > 1 {
			key, _ := args[1].(string)
			result := resultHit
			switch {
			case failed:
				result = resultError
			case errors.Is(err, redis.Nil):
				result = resultMiss
			}
			observability.CacheLookups.WithLabelValues(keyFamily(key), result).Inc()
		}
		return err
	}
}

func (lookupHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrorRate.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// InitRedis connects the author cache to addr, a host:port or redis:// URL.
// On failure the client stays nil and author lookups go to the database.
func InitRedis(addr string, logger *slog.Logger) {
	logger = logger.With(slog.String("component", "author_cache"))
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			logger.Warn("invalid redis url, author cache disabled", slog.String("error", err.Error()))
			client = nil
			return
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}
	// Servers without the maintenance notifications subcommand reject the handshake.
	opts.MaintNotificationsConfig = &maintnotifications.Config{Mode: maintnotifications.ModeDisabled}

	c := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, author cache disabled",
			slog.String("addr", opts.Addr),
			slog.String("error", err.Error()),
		)
		_ = c.Close()
		client = nil
		return
	}
	SetClient(c)
	logger.Info("author cache connected",
		slog.String("addr", opts.Addr),
		slog.Duration("user_ttl", UserTTL),
	)
}

// GetClient returns the current Redis client, nil when caching is off.
func GetClient() *redis.Client {
	return client
}

// SetClient replaces the client and instruments it. Tests point it at miniredis.
func SetClient(c *redis.Client) {
	if c != nil {
		c.AddHook(lookupHook{})
	}
	client = c
}
