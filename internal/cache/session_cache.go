package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"go-auth-service/internal/model"
)

const defaultTimeout = 2 * time.Second

// ErrorRecorder counts swallowed cache failures by operation.
type ErrorRecorder interface {
	CacheError(op string)
}

type SessionCache struct {
	client   *redis.Client
	timeout  time.Duration
	logger   *slog.Logger
	recorder ErrorRecorder
}

// NewRedisClient builds a client from a redis:// URL. It does not dial.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second
	opts.PoolTimeout = 3 * time.Second
	opts.MaxRetries = 1

	return redis.NewClient(opts), nil
}

func NewSessionCache(client *redis.Client, timeout time.Duration, logger *slog.Logger, recorder ErrorRecorder) *SessionCache {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionCache{client: client, timeout: timeout, logger: logger, recorder: recorder}
}

func sessionKey(userID string) string {
	return "user:" + userID + ":session"
}

// Write stores entry for ttl. Failures are logged and dropped.
func (c *SessionCache) Write(ctx context.Context, userID string, entry model.SessionEntry, ttl time.Duration) {
	payload, err := json.Marshal(entry)
	if err != nil {
		c.fail(ctx, "write", userID, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.Set(ctx, sessionKey(userID), payload, ttl).Err(); err != nil {
		c.fail(ctx, "write", userID, err)
	}
}

// Read returns the cached entry, or false on a miss or any failure.
func (c *SessionCache) Read(ctx context.Context, userID string) (model.SessionEntry, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.Get(ctx, sessionKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.SessionEntry{}, false
	}
	if err != nil {
		c.fail(ctx, "read", userID, err)
		return model.SessionEntry{}, false
	}

	var entry model.SessionEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.fail(ctx, "read", userID, err)
		return model.SessionEntry{}, false
	}

	return entry, true
}

func (c *SessionCache) Delete(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.Del(ctx, sessionKey(userID)).Err(); err != nil {
		c.fail(ctx, "delete", userID, err)
	}
}

func (c *SessionCache) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	return c.client.Ping(ctx).Err()
}

func (c *SessionCache) Close() error {
	return c.client.Close()
}

func (c *SessionCache) fail(ctx context.Context, op string, userID string, err error) {
	c.logger.WarnContext(ctx, "session cache operation failed",
		slog.String("op", op),
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
	if c.recorder != nil {
		c.recorder.CacheError(op)
	}
}
