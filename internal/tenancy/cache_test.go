package tenancy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/internal/testutil"
	"github.com/suteetoe/restohub/pkg/apperror"
)

func TestRestaurantCacheServesUntilInvalidated(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner@example.com")
	r := testutil.CreateRestaurant(t, db, "Cached", owner)

	cache := NewRestaurantCache(db, time.Minute)
	ctx := context.Background()

	got, err := cache.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, got.EnabledModules())

	r.SetEnabledModules([]string{"coupons"})
	require.NoError(t, db.Model(r).Update("settings", r.Settings).Error)

	got, err = cache.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Empty(t, got.EnabledModules(), "stale until invalidated")

	cache.Invalidate(r.ID)
	got, err = cache.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"coupons"}, got.EnabledModules())
}

func TestRestaurantCacheExpires(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner@example.com")
	r := testutil.CreateRestaurant(t, db, "Expiring", owner)

	now := time.Now()
	cache := NewRestaurantCache(db, time.Second)
	cache.now = func() time.Time { return now }

	_, err := cache.Get(context.Background(), r.ID)
	require.NoError(t, err)
	require.NoError(t, db.Model(r).Update("subscription_status", model.SubscriptionCanceled).Error)

	now = now.Add(2 * time.Second)
	got, err := cache.Get(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionCanceled, got.SubscriptionStatus)
}

func TestRestaurantCacheNotFound(t *testing.T) {
	cache := NewRestaurantCache(testutil.NewDB(t), time.Minute)
	_, err := cache.Get(context.Background(), 999)
	assert.Equal(t, apperror.CodeNotFound, apperror.CodeOf(err))
}
