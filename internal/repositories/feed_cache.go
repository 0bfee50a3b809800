package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FeedCache keeps a user's first feed page in Redis for a few seconds. Only
// the cursorless page is cached; deeper pages are cheap seeks anyway. The
// cache is best-effort: a miss or a Redis failure just falls through to the
// database.
type FeedCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewFeedCache creates a FeedCache with a short TTL
func NewFeedCache(rdb *redis.Client) *FeedCache {
	return &FeedCache{rdb: rdb, ttl: 30 * time.Second}
}

func feedKey(userID string) string { return fmt.Sprintf("feed:first:%s", userID) }

// GetFirstPage returns the cached page payload and whether it was present
func (c *FeedCache) GetFirstPage(ctx context.Context, userID string, out interface{}) (bool, error) {
	b, err := c.rdb.Get(ctx, feedKey(userID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(b, out); err != nil {
		// A stale or malformed entry is treated as a miss.
		return false, nil
	}
	return true, nil
}

// SetFirstPage stores the page payload under the user's key
func (c *FeedCache) SetFirstPage(ctx context.Context, userID string, page interface{}) error {
	data, err := json.Marshal(page)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, feedKey(userID), data, c.ttl).Err()
}

// InvalidateFirstPage drops the cached page, called when the user's follow
// set changes.
func (c *FeedCache) InvalidateFirstPage(ctx context.Context, userID string) error {
	return c.rdb.Del(ctx, feedKey(userID)).Err()
}
