package principal

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

func TestLoadBuildsMemberships(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner@example.com")
	first := testutil.CreateRestaurant(t, db, "First", owner)
	second := testutil.CreateRestaurant(t, db, "Second", owner)
	testutil.GrantRole(t, db, first, owner, model.RoleManager)

	p, err := NewLoader(db).Load(context.Background(), owner.ID)
	require.NoError(t, err)

	require.Len(t, p.Memberships, 2)
	assert.Equal(t, first.ID, p.Memberships[0].RestaurantID)
	assert.Equal(t, second.ID, p.Memberships[1].RestaurantID)
	assert.Equal(t, "First", p.Memberships[0].Name)
	assert.ElementsMatch(t, []string{model.RoleOwner, model.RoleManager}, p.RolesFor(first.ID))
	assert.False(t, p.IsElevated())

	id, ok := p.FirstRestaurant()
	assert.True(t, ok)
	assert.Equal(t, first.ID, id)
}

func TestLoadGlobalRoles(t *testing.T) {
	db := testutil.NewDB(t)
	admin := testutil.CreateUser(t, db, "admin@example.com", model.RoleAdmin)

	p, err := NewLoader(db).Load(context.Background(), admin.ID)
	require.NoError(t, err)
	assert.True(t, p.IsElevated())
	assert.False(t, p.IsSuperAdmin())
	assert.Empty(t, p.Memberships)
	assert.Equal(t, []string{model.RoleAdmin}, p.RolesFor(99))
}

func TestLoadRejectsUnknownDisabledAndLocked(t *testing.T) {
	db := testutil.NewDB(t)
	loader := NewLoader(db)
	ctx := context.Background()

	_, err := loader.Load(ctx, 404)
	assert.Equal(t, 401, apperror.StatusOf(err))

	disabled := testutil.CreateUser(t, db, "disabled@example.com")
	require.NoError(t, db.Model(disabled).Update("active", false).Error)
	_, err = loader.Load(ctx, disabled.ID)
	assert.Equal(t, apperror.CodeAccountDisabled, apperror.CodeOf(err))

	locked := testutil.CreateUser(t, db, "locked@example.com")
	until := time.Now().Add(time.Hour)
	require.NoError(t, db.Model(locked).Update("locked_until", &until).Error)
	_, err = loader.Load(ctx, locked.ID)
	assert.Equal(t, apperror.CodeAccountLocked, apperror.CodeOf(err))
	assert.Equal(t, 403, apperror.StatusOf(err))
}

func TestLoadSkipsDeletedRestaurants(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner@example.com")
	gone := testutil.CreateRestaurant(t, db, "Gone", owner)
	kept := testutil.CreateRestaurant(t, db, "Kept", owner)
	require.NoError(t, db.Delete(gone).Error)

	p, err := NewLoader(db).Load(context.Background(), owner.ID)
	require.NoError(t, err)
	require.Len(t, p.Memberships, 1)
	assert.Equal(t, kept.ID, p.Memberships[0].RestaurantID)
}
