package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/storefront/internal/domain"
)

const (
	wishlistKeyPrefix = "wishlist:email:"
	versionKeyPrefix  = "wishlist:version:"

	// versionTTL bounds how long an idle version counter lingers. It only has
	// to outlive a single lookup.
	versionTTL = 24 * time.Hour
)

// setIfVersion stores the view only while the version counter still holds
// the value the caller read before loading it.
var setIfVersion = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if not current then current = '0' end
if current ~= ARGV[1] then return 0 end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// WishlistKey returns the cache key of the public wishlist view for email.
func WishlistKey(email string) string {
	return wishlistKeyPrefix + normalize(email)
}

// VersionKey returns the key of the invalidation counter for email.
func VersionKey(email string) string {
	return versionKeyPrefix + normalize(email)
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// WishlistCache caches the wishlist view served by the public email lookup.
// Every invalidation bumps a per-email version; a fill only lands when the
// version is unchanged since the filler read it.
type WishlistCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewWishlistCache creates a Redis-backed wishlist view cache.
func NewWishlistCache(client redis.Cmdable, ttl time.Duration) *WishlistCache {
	return &WishlistCache{
		client: client,
		ttl:    ttl,
	}
}

// Get returns the cached view for email. A miss is (nil, false, nil).
func (c *WishlistCache) Get(ctx context.Context, email string) (*domain.Wishlist, bool, error) {
	data, err := c.client.Get(ctx, WishlistKey(email)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis get wishlist: %w", err)
	}

	var w domain.Wishlist
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, false, fmt.Errorf("unmarshal wishlist: %w", err)
	}
	return &w, true, nil
}

// Version returns the invalidation counter for email; zero when it was never
// bumped.
func (c *WishlistCache) Version(ctx context.Context, email string) (int64, error) {
	v, err := c.client.Get(ctx, VersionKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis get wishlist version: %w", err)
	}
	return v, nil
}

// Set stores the view for email with the configured TTL, unless the entry was
// invalidated after version was read. It reports whether the view was stored.
func (c *WishlistCache) Set(ctx context.Context, email string, w *domain.Wishlist, version int64) (bool, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return false, fmt.Errorf("marshal wishlist: %w", err)
	}

	keys := []string{WishlistKey(email), VersionKey(email)}
	stored, err := setIfVersion.Run(ctx, c.client, keys, version, data, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis set wishlist: %w", err)
	}
	return stored == 1, nil
}

// Invalidate drops the cached view for email and bumps its version, so a fill
// that started earlier cannot write the old view back. Dropping a missing key
// is not an error.
func (c *WishlistCache) Invalidate(ctx context.Context, email string) error {
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, WishlistKey(email))
	pipe.Incr(ctx, VersionKey(email))
	pipe.Expire(ctx, VersionKey(email), versionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis invalidate wishlist: %w", err)
	}
	return nil
}
