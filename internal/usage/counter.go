package usage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/codeservir/chatserve-backend/pkg/logger"
	"github.com/codeservir/chatserve-backend/pkg/redis"
)

// CounterParams groups dependencies for the dual-layer counter.
type CounterParams struct {
	Repo   Repository
	Cache  redis.UsageCache
	TTL    time.Duration
	Logger *logger.Logger
}

// Counter is the write-through usage counter. Every mutation lands on the
// durable row first; the cache is refreshed afterwards and only ever serves
// reads. A dead cache degrades read latency, never correctness.
type Counter struct {
	repo   Repository
	cache  redis.UsageCache
	ttl    time.Duration
	logger *logger.Logger
}

// NewCounter builds a usage counter.
func NewCounter(params CounterParams) (*Counter, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Counter{repo: params.Repo, cache: params.Cache, ttl: ttl, logger: params.Logger}, nil
}

// Increment bumps the counter unconditionally and returns the new count.
func (c *Counter) Increment(ctx context.Context, chatbotID uuid.UUID) (int64, error) {
	count, err := c.repo.Increment(ctx, chatbotID)
	if err != nil {
		return 0, err
	}
	c.refresh(ctx, chatbotID, count)
	return count, nil
}

// ConsumeBelow bumps the counter only while it is under limit. It reports the
// resulting count and whether the unit was granted.
func (c *Counter) ConsumeBelow(ctx context.Context, chatbotID uuid.UUID, limit int64) (int64, bool, error) {
	count, allowed, err := c.repo.IncrementBelow(ctx, chatbotID, limit)
	if err != nil {
		return 0, false, err
	}
	c.refresh(ctx, chatbotID, count)
	return count, allowed, nil
}

// Reset zeroes the counter for a fresh billing period. If the cache refresh
// fails the stale entry is dropped so reads fall through to the database.
func (c *Counter) Reset(ctx context.Context, chatbotID uuid.UUID) error {
	if err := c.repo.Reset(ctx, chatbotID); err != nil {
		return err
	}
	key := c.cache.UsageKey(chatbotID.String())
	if err := c.cache.Set(ctx, key, 0, c.ttl); err != nil {
		if delErr := c.cache.Del(ctx, key); delErr != nil {
			return delErr
		}
	}
	return nil
}

// Read prefers the cache and falls back to the durable row, refilling the
// cache on a miss.
func (c *Counter) Read(ctx context.Context, chatbotID uuid.UUID) (int64, error) {
	key := c.cache.UsageKey(chatbotID.String())
	raw, err := c.cache.Get(ctx, key)
	if err == nil {
		if count, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			return count, nil
		}
		// Unparseable entries are treated as a miss.
	} else if !redis.IsNil(err) {
		c.logger.Warn(ctx, "usage cache read failed, falling back to database")
	}

	count, err := c.repo.Read(ctx, chatbotID)
	if err != nil {
		return 0, err
	}
	c.refresh(ctx, chatbotID, count)
	return count, nil
}

func (c *Counter) refresh(ctx context.Context, chatbotID uuid.UUID, count int64) {
	key := c.cache.UsageKey(chatbotID.String())
	if err := c.cache.Set(ctx, key, count, c.ttl); err != nil {
		c.logger.Warn(ctx, "usage cache refresh failed")
	}
}
