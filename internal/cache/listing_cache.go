package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"soomhub/market/internal/models"
	"soomhub/market/internal/utils"
)

const listingKeyPrefix = "listing:"

// ListingCache is a read-through cache of single listings, msgpack encoded.
type ListingCache interface {
	Get(ctx context.Context, id utils.SixID) (*models.Listing, bool)
	Set(ctx context.Context, listing *models.Listing) error
	Invalidate(ctx context.Context, id utils.SixID) error
}

type redisListingCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewListingCache returns a cache that keeps entries for ttl. A zero ttl disables caching.
func NewListingCache(rdb *redis.Client, ttl time.Duration) ListingCache {
	return &redisListingCache{rdb: rdb, ttl: ttl}
}

func listingKey(id utils.SixID) string {
	return listingKeyPrefix + id.String()
}

// Get reports a miss on any error; a broken cache must not fail reads.
func (c *redisListingCache) Get(ctx context.Context, id utils.SixID) (*models.Listing, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, listingKey(id)).Bytes()
	if err != nil {
		return nil, false
	}
	var listing models.Listing
	if err := msgpack.Unmarshal(data, &listing); err != nil {
		return nil, false
	}
	return &listing, true
}

func (c *redisListingCache) Set(ctx context.Context, listing *models.Listing) error {
	if c.ttl <= 0 {
		return nil
	}
	data, err := msgpack.Marshal(listing)
	if err != nil {
		return fmt.Errorf("failed to encode listing %s: %w", listing.ID, err)
	}
	if err := c.rdb.Set(ctx, listingKey(listing.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache listing %s: %w", listing.ID, err)
	}
	return nil
}

func (c *redisListingCache) Invalidate(ctx context.Context, id utils.SixID) error {
	err := c.rdb.Del(ctx, listingKey(id)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to invalidate listing %s: %w", id, err)
	}
	return nil
}
