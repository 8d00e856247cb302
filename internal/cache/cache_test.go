package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/kafka"
)

var _ kafka.IdempotencyStore = (*EventStore)(nil)

func setupTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func sampleWishlist() *domain.Wishlist {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Wishlist{
		ID:     "wl-1",
		UserID: "user-1",
		Products: []*domain.Product{
			{ID: "prod-1", Name: "Trail Shoe", Price: decimal.RequireFromString("89.90"), CategoryID: "cat-1", CategoryName: "Shoes", CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func fill(t *testing.T, c *WishlistCache, email string) {
	t.Helper()
	ctx := context.Background()
	v, err := c.Version(ctx, email)
	require.NoError(t, err)
	stored, err := c.Set(ctx, email, sampleWishlist(), v)
	require.NoError(t, err)
	require.True(t, stored)
}

func TestWishlistKey_Normalizes(t *testing.T) {
	assert.Equal(t, "wishlist:email:ann@example.com", WishlistKey("  Ann@Example.COM "))
	assert.Equal(t, "wishlist:version:ann@example.com", VersionKey("  Ann@Example.COM "))
}

func TestWishlistCache_Miss(t *testing.T) {
	client, _ := setupTestRedis(t)
	c := NewWishlistCache(client, time.Minute)

	w, ok, err := c.Get(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, w)
}

func TestWishlistCache_SetGet(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewWishlistCache(client, 5*time.Minute)
	ctx := context.Background()

	stored, err := c.Set(ctx, "Ann@Example.com", sampleWishlist(), 0)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.True(t, mr.Exists("wishlist:email:ann@example.com"))
	assert.Equal(t, 5*time.Minute, mr.TTL("wishlist:email:ann@example.com"))

	got, ok, err := c.Get(ctx, "ann@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "wl-1", got.ID)
	assert.Empty(t, got.UserID, "owner id must not leak into the public view")
	require.Len(t, got.Products, 1)
	assert.True(t, decimal.RequireFromString("89.9").Equal(got.Products[0].Price))
	assert.Equal(t, "Shoes", got.Products[0].CategoryName)
}

func TestWishlistCache_Expiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewWishlistCache(client, time.Minute)
	ctx := context.Background()

	fill(t, c, "ann@example.com")
	mr.FastForward(2 * time.Minute)

	_, ok, err := c.Get(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWishlistCache_Invalidate(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewWishlistCache(client, time.Minute)
	ctx := context.Background()

	fill(t, c, "ann@example.com")
	require.NoError(t, c.Invalidate(ctx, "ANN@example.com"))
	assert.False(t, mr.Exists("wishlist:email:ann@example.com"))

	// Invalidating a missing entry is fine.
	assert.NoError(t, c.Invalidate(ctx, "nobody@example.com"))
}

func TestWishlistCache_InvalidateBumpsVersion(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewWishlistCache(client, time.Minute)
	ctx := context.Background()

	v, err := c.Version(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, c.Invalidate(ctx, "Ann@Example.com"))
	require.NoError(t, c.Invalidate(ctx, "ann@example.com"))

	v, err = c.Version(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
	assert.Equal(t, versionTTL, mr.TTL("wishlist:version:ann@example.com"))
}

func TestWishlistCache_FillAfterInvalidationIsDropped(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewWishlistCache(client, time.Minute)
	ctx := context.Background()

	// A reader takes the version, then loads the old view from the database.
	v, err := c.Version(ctx, "ann@example.com")
	require.NoError(t, err)

	// A writer commits and invalidates before the reader stores its view.
	require.NoError(t, c.Invalidate(ctx, "ann@example.com"))

	stored, err := c.Set(ctx, "ann@example.com", sampleWishlist(), v)
	require.NoError(t, err)
	assert.False(t, stored)
	assert.False(t, mr.Exists("wishlist:email:ann@example.com"))

	// The next reader sees the bumped version and may fill.
	v, err = c.Version(ctx, "ann@example.com")
	require.NoError(t, err)
	stored, err = c.Set(ctx, "ann@example.com", sampleWishlist(), v)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.True(t, mr.Exists("wishlist:email:ann@example.com"))
}

func TestWishlistCache_CorruptEntry(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewWishlistCache(client, time.Minute)

	require.NoError(t, mr.Set("wishlist:email:ann@example.com", "{not json"))

	_, _, err := c.Get(context.Background(), "ann@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal wishlist")
}

func TestWishlistCache_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	c := NewWishlistCache(client, time.Minute)
	mr.Close()

	_, _, err := c.Get(context.Background(), "ann@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get wishlist")
}

func TestEventStore(t *testing.T) {
	client, mr := setupTestRedis(t)
	s := NewEventStore(client, time.Hour)
	ctx := context.Background()

	seen, err := s.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, s.Add(ctx, "evt-1"))
	seen, err = s.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)

	mr.FastForward(2 * time.Hour)
	seen, err = s.Contains(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)
}
