package services

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const userFeedTTL = 5 * time.Minute

// FeedCache holds the shared Redis caches for rendered user feeds and the
// top-news payload. Entries are opaque JSON blobs; every front-end process
// reads the same keys.
type FeedCache struct {
	redis  *redis.Client
	prefix string
}

func NewFeedCache(redisClient *redis.Client, prefix string) *FeedCache {
	return &FeedCache{redis: redisClient, prefix: prefix}
}

func (f *FeedCache) userFeedKey(username string) string {
	return fmt.Sprintf("%s:user:feed:%s", f.prefix, username)
}

func (f *FeedCache) topNewsKey() string {
	return fmt.Sprintf("%s:top-news", f.prefix)
}

// GetUserFeed returns the cached feed for a user, ok=false on miss.
func (f *FeedCache) GetUserFeed(ctx context.Context, username string) ([]byte, bool, error) {
	content, err := f.redis.Get(ctx, f.userFeedKey(username)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read user feed cache: %w", err)
	}
	return content, true, nil
}

// SetUserFeed caches a rendered feed for five minutes.
func (f *FeedCache) SetUserFeed(ctx context.Context, username string, content []byte) error {
	if err := f.redis.SetEx(ctx, f.userFeedKey(username), content, userFeedTTL).Err(); err != nil {
		return fmt.Errorf("write user feed cache: %w", err)
	}
	return nil
}

// GetTopNews returns the current top-news payload, ok=false when the worker
// has not published one yet.
func (f *FeedCache) GetTopNews(ctx context.Context) ([]byte, bool, error) {
	content, err := f.redis.Get(ctx, f.topNewsKey()).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read top news cache: %w", err)
	}
	return content, true, nil
}

// SetTopNews replaces the top-news payload. No TTL; the worker refreshes it.
func (f *FeedCache) SetTopNews(ctx context.Context, content []byte) error {
	if err := f.redis.Set(ctx, f.topNewsKey(), content, 0).Err(); err != nil {
		return fmt.Errorf("write top news cache: %w", err)
	}
	return nil
}
