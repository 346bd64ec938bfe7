package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/fixora/triage/internal/ports"
)

// Config configuration for rate limiting
type Config struct {
	Enabled  bool
	RedisURL string
}

// redisLimiter is a fixed-window counter stored in Redis
type redisLimiter struct {
	client *redis.Client
	logger *logrus.Logger
}

// New returns a Redis-backed limiter, or a no-op limiter when disabled
func New(cfg Config, logger *logrus.Logger) (ports.RateLimiter, error) {
	if !cfg.Enabled {
		logger.Info("Rate limiting disabled")
		return Noop{}, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithField("redis_addr", opt.Addr).Info("Rate limiting service initialized")
	return NewRedisLimiter(client, logger), nil
}

// NewRedisLimiter wraps an existing client
func NewRedisLimiter(client *redis.Client, logger *logrus.Logger) ports.RateLimiter {
	return &redisLimiter{client: client, logger: logger}
}

// Allow increments key and reports whether the count is still within limit
func (l *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	key = "triage:ratelimit:" + key

	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		l.logger.WithContext(ctx).WithError(err).Error("Failed to increment rate limit counter")
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}

	// The first hit opens the window
	if count == 1 {
		if err := l.client.Expire(ctx, key, window).Err(); err != nil {
			l.logger.WithContext(ctx).WithError(err).Error("Failed to set rate limit window")
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	allowed := count <= int64(limit)

	l.logger.WithContext(ctx).WithFields(logrus.Fields{
		"key":     key,
		"count":   count,
		"limit":   limit,
		"allowed": allowed,
	}).Debug("Rate limit check")

	return allowed, nil
}

// Noop allows everything
type Noop struct{}

// Allow always allows
func (Noop) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}
