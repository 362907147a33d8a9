package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/internal/testutil"
	"gorm.io/gorm"
)

func TestOneOpenSessionPerUserAndRestaurant(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner@example.com")
	cashier := testutil.CreateUser(t, db, "cashier@example.com")
	a := testutil.CreateRestaurant(t, db, "Alpha", owner)
	b := testutil.CreateRestaurant(t, db, "Bravo", owner)

	session := func(r *model.Restaurant, u *model.User, status string) *model.CashRegisterSession {
		return &model.CashRegisterSession{
			RestaurantID:        r.ID,
			UserID:              u.ID,
			Status:              status,
			OpeningBalanceCents: 10000,
			OpenedAt:            time.Now(),
		}
	}

	require.NoError(t, db.Create(session(a, cashier, model.SessionClosed)).Error)
	require.NoError(t, db.Create(session(a, cashier, model.SessionClosed)).Error)
	require.NoError(t, db.Create(session(a, cashier, model.SessionOpen)).Error)

	err := db.Create(session(a, cashier, model.SessionOpen)).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	// Other users and other restaurants are unaffected.
	assert.NoError(t, db.Create(session(a, owner, model.SessionOpen)).Error)
	assert.NoError(t, db.Create(session(b, cashier, model.SessionOpen)).Error)

	var open int64
	require.NoError(t, db.Model(&model.CashRegisterSession{}).
		Where("restaurant_id = ? AND user_id = ? AND status = ?", a.ID, cashier.ID, model.SessionOpen).
		Count(&open).Error)
	assert.EqualValues(t, 1, open)
}
