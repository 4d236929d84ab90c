package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// QueryCache memoizes read-side query results in Redis for a short TTL.
// It is strictly an accelerator: any cache failure is logged and treated
// as a miss, so reads degrade to the store instead of erroring.
type QueryCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a query cache.
func New(client *redis.Client, prefix string, ttl time.Duration, logger *zap.Logger) *QueryCache {
	return &QueryCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger,
	}
}

// Get unmarshals the cached value for key into dest. Returns false on
// miss or on any cache/decoding failure.
func (c *QueryCache) Get(ctx context.Context, key string, dest interface{}) bool {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		c.logger.Warn("Cache read failed",
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.logger.Warn("Cache entry is not valid JSON, ignoring",
			zap.String("key", key),
			zap.Error(err),
		)
		return false
	}

	return true
}

// Set stores a value under key with the configured TTL. Failures are
// logged and otherwise ignored.
func (c *QueryCache) Set(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("Failed to marshal cache value",
			zap.String("key", key),
			zap.Error(err),
		)
		return
	}

	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Cache write failed",
			zap.String("key", key),
			zap.Error(err),
		)
	}
}
