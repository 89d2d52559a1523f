package gl

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// AccountCache keeps chart-of-accounts lookups in redis. The chart is
// read-mostly shared state, so stale reads within the TTL are acceptable for
// the report surface; posting resolution always goes to the database.
type AccountCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAccountCache constructs the cache.
func NewAccountCache(client *redis.Client, ttl time.Duration) *AccountCache {
	return &AccountCache{client: client, ttl: ttl}
}

const accountsCacheKey = "gl:accounts"

// GetAccounts returns the cached chart of accounts, or false on miss.
func (c *AccountCache) GetAccounts(ctx context.Context) ([]Account, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, accountsCacheKey).Bytes()
	if err != nil {
		return nil, false
	}
	var accounts []Account
	if err := json.Unmarshal(payload, &accounts); err != nil {
		return nil, false
	}
	return accounts, true
}

// SetAccounts stores the chart of accounts.
func (c *AccountCache) SetAccounts(ctx context.Context, accounts []Account) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(accounts)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, accountsCacheKey, payload, c.ttl).Err()
}

// Invalidate drops the cached chart, e.g. after setup changes.
func (c *AccountCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, accountsCacheKey).Err()
}
