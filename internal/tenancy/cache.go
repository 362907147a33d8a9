package tenancy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/pkg/apperror"
	"gorm.io/gorm"
)

// RestaurantCache keeps restaurants loaded for permission checks for a short TTL.
// Admin writes to modules or subscription must call Invalidate.
type RestaurantCache struct {
	db    *gorm.DB
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	cache map[uint]cacheEntry
}

type cacheEntry struct {
	restaurant model.Restaurant
	expiresAt  time.Time
}

// NewRestaurantCache creates a cache over db. A zero ttl disables caching.
func NewRestaurantCache(db *gorm.DB, ttl time.Duration) *RestaurantCache {
	return &RestaurantCache{
		db:    db,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[uint]cacheEntry),
	}
}

// Get returns a copy of the restaurant. Missing or deleted restaurants are NotFound.
func (c *RestaurantCache) Get(ctx context.Context, id uint) (*model.Restaurant, error) {
	c.mu.RLock()
	entry, ok := c.cache[id]
	c.mu.RUnlock()

	if ok && c.now().Before(entry.expiresAt) {
		r := entry.restaurant
		return &r, nil
	}

	var r model.Restaurant
	err := c.db.WithContext(ctx).First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.Invalidate(id)
		return nil, apperror.NotFound("restaurant not found")
	}
	if err != nil {
		return nil, fmt.Errorf("load restaurant %d: %w", id, err)
	}

	if c.ttl > 0 {
		c.mu.Lock()
		c.cache[id] = cacheEntry{restaurant: r, expiresAt: c.now().Add(c.ttl)}
		c.mu.Unlock()
	}
	return &r, nil
}

// Invalidate drops one restaurant from the cache.
func (c *RestaurantCache) Invalidate(id uint) {
	c.mu.Lock()
	delete(c.cache, id)
	c.mu.Unlock()
}
