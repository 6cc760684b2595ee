// Package cache keeps classification codes in Redis for the HTTP layer.
// The registry is read-mostly, so the adapter caches it on the caller side;
// the service itself always reads the authoritative store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"profile-registry/internal/domain"
	"profile-registry/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	keyGroups      = "codes:groups"
	keyGroupPrefix = "codes:group:"
	DefaultTTL     = 10 * time.Minute
)

// CodeSource is the part of the profile service the cache fronts.
type CodeSource interface {
	ListClassificationGroups(ctx context.Context) ([]string, error)
	ListClassificationCodes(ctx context.Context, group string) ([]domain.ClassificationCode, error)
}

// CodeCache is a read-through cache. With a nil client, or whenever Redis
// errors, it bypasses itself and serves straight from the source.
type CodeCache struct {
	source CodeSource
	client *redis.Client
	ttl    time.Duration

	warnedUnavailable atomic.Bool
}

func NewCodeCache(source CodeSource, client *redis.Client, ttl time.Duration) *CodeCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CodeCache{source: source, client: client, ttl: ttl}
}

func (c *CodeCache) ListClassificationGroups(ctx context.Context) ([]string, error) {
	var groups []string
	if c.get(ctx, keyGroups, &groups) {
		return groups, nil
	}
	groups, err := c.source.ListClassificationGroups(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, keyGroups, groups)
	return groups, nil
}

func (c *CodeCache) ListClassificationCodes(ctx context.Context, group string) ([]domain.ClassificationCode, error) {
	key := keyGroupPrefix + group
	var codes []domain.ClassificationCode
	if c.get(ctx, key, &codes) {
		return codes, nil
	}
	codes, err := c.source.ListClassificationCodes(ctx, group)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, codes)
	return codes, nil
}

// Invalidate drops every cached group.
func (c *CodeCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	iter := c.client.Scan(ctx, 0, keyGroupPrefix+"*", 0).Iterator()
	keys := []string{keyGroups}
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.warnUnavailableOnce(err)
		return err
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *CodeCache) get(ctx context.Context, key string, out any) bool {
	if c.client == nil {
		return false
	}
	b, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.warnUnavailableOnce(err)
		}
		return false
	}
	if err := json.Unmarshal(b, out); err != nil {
		logger.Log.Warn("Dropping unreadable cache entry", slog.String("key", key), slog.String("error", err.Error()))
		_ = c.client.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *CodeCache) set(ctx context.Context, key string, value any) {
	if c.client == nil {
		return
	}
	b, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, b, c.ttl).Err(); err != nil {
		c.warnUnavailableOnce(err)
	}
}

func (c *CodeCache) warnUnavailableOnce(err error) {
	if c.warnedUnavailable.CompareAndSwap(false, true) {
		logger.Log.Warn("Redis unavailable, bypassing code cache", slog.String("error", err.Error()))
	}
}
