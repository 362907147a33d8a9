package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/restohub/internal/handler"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/internal/testutil"
)

func login(h *harness, email, password string) *httptest.ResponseRecorder {
	return h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	h := newHarness(t)
	owner := testutil.CreateUser(t, h.db, "owner@example.com")
	testutil.CreateRestaurant(t, h.db, "Pho House", owner)

	cases := map[string]string{
		"missing": "",
		"garbage": "not-a-jwt",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			rec := h.do(http.MethodPost, "/api/categories", token, map[string]string{"name": "Soups"})

			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "unauthorized", errorBody(t, rec).Code)
		})
	}

	var count int64
	require.NoError(t, h.db.Model(&model.Category{}).Count(&count).Error)
	assert.Zero(t, count, "handler must not run without a valid token")
}

func TestTokenForDeletedUserIsRejected(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db, "gone@example.com")
	token := h.token(user)
	require.NoError(t, h.db.Delete(user).Error)

	rec := h.do(http.MethodGet, "/api/auth/me", token, nil)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginReturnsTokenAndRestaurants(t *testing.T) {
	h := newHarness(t)
	owner := testutil.CreateUser(t, h.db, "owner@example.com")
	r := testutil.CreateRestaurant(t, h.db, "Pho House", owner)

	rec := login(h, "OWNER@example.com ", testutil.Password)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[handler.LoginResponse](t, rec)
	require.NotEmpty(t, resp.Token)
	require.Len(t, resp.User.Restaurants, 1)
	assert.Equal(t, r.ID, resp.User.Restaurants[0].RestaurantID)
	assert.Equal(t, "pho-house", resp.User.Restaurants[0].Slug)
	assert.True(t, resp.User.Restaurants[0].IsOwner)
	assert.Contains(t, resp.User.Restaurants[0].Roles, model.RoleOwner)

	me := h.do(http.MethodGet, "/api/auth/me", resp.Token, nil)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Equal(t, "owner@example.com", decode[handler.UserResponse](t, me).Email)

	var stored model.User
	require.NoError(t, h.db.First(&stored, owner.ID).Error)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestLoginWrongPasswordLocksAtThreshold(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db, "cook@example.com")

	for i := 0; i < 2; i++ {
		rec := login(h, user.Email, "wrong-password")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := login(h, user.Email, "wrong-password")
	require.Equal(t, http.StatusLocked, rec.Code)
	assert.Equal(t, "account_locked", errorBody(t, rec).Code)

	var stored model.User
	require.NoError(t, h.db.First(&stored, user.ID).Error)
	assert.Equal(t, 3, stored.LoginAttempts)
	require.NotNil(t, stored.LockedUntil)
	assert.True(t, stored.LockedUntil.After(time.Now()))

	rec = login(h, user.Email, testutil.Password)
	assert.Equal(t, http.StatusLocked, rec.Code)
}

func TestLockedUserGets423WithCorrectPassword(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db, "locked@example.com")
	until := time.Now().Add(10 * time.Minute)
	require.NoError(t, h.db.Model(user).Updates(map[string]interface{}{
		"login_attempts": 5,
		"locked_until":   until,
	}).Error)

	rec := login(h, user.Email, testutil.Password)

	require.Equal(t, http.StatusLocked, rec.Code)
}

func TestExpiredLockAllowsLoginAndResetsAttempts(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db, "back@example.com")
	require.NoError(t, h.db.Model(user).Updates(map[string]interface{}{
		"login_attempts": 3,
		"locked_until":   time.Now().Add(-time.Minute),
	}).Error)

	rec := login(h, user.Email, testutil.Password)

	require.Equal(t, http.StatusOK, rec.Code)
	var stored model.User
	require.NoError(t, h.db.First(&stored, user.ID).Error)
	assert.Zero(t, stored.LoginAttempts)
	assert.Nil(t, stored.LockedUntil)
}

func TestLoginDisabledAccount(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db, "off@example.com")
	require.NoError(t, h.db.Model(user).Update("active", false).Error)

	rec := login(h, user.Email, testutil.Password)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "account_disabled", errorBody(t, rec).Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	h := newHarness(t)

	rec := login(h, "nobody@example.com", testutil.Password)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid credentials", errorBody(t, rec).Message)
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	body := map[string]string{"email": "New@Example.com", "password": "long-enough-pw", "name": "New User"}

	rec := h.do(http.MethodPost, "/api/auth/register", "", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	user := decode[handler.UserResponse](t, rec)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Empty(t, user.Restaurants)

	rec = h.do(http.MethodPost, "/api/auth/register", "", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "bad", "password": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", errorBody(t, rec).Code)
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	user := testutil.CreateUser(t, h.db, "pw@example.com")
	token := h.token(user)

	rec := h.do(http.MethodPut, "/api/auth/password", token, map[string]string{
		"current_password": "not-it",
		"new_password":     "brand-new-password",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPut, "/api/auth/password", token, map[string]string{
		"current_password": testutil.Password,
		"new_password":     "brand-new-password",
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, login(h, user.Email, testutil.Password).Code)
	assert.Equal(t, http.StatusOK, login(h, user.Email, "brand-new-password").Code)
}

func TestLoginIsRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.LoginRequests = 2
	h := newHarnessWith(t, cfg, nil)

	for i := 0; i < 2; i++ {
		rec := login(h, "nobody@example.com", "whatever")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("RateLimit-Remaining"))
	}

	rec := login(h, "nobody@example.com", "whatever")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", errorBody(t, rec).Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
