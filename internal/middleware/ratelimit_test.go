package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/restohub/internal/principal"
	"github.com/suteetoe/restohub/pkg/apperror"
	"github.com/suteetoe/restohub/pkg/ratelimit"
)

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string, int, time.Duration) (ratelimit.Decision, error) {
	return ratelimit.Decision{}, errors.New("redis: connection refused")
}

type keyRecorder struct {
	keys []string
}

func (k *keyRecorder) Allow(_ context.Context, key string, limit int, _ time.Duration) (ratelimit.Decision, error) {
	k.keys = append(k.keys, key)
	return ratelimit.Decision{Allowed: true, Limit: limit, Remaining: limit - 1, ResetAt: time.Now().Add(time.Minute)}, nil
}

func runRateLimited(t *testing.T, mw echo.MiddlewareFunc, p *principal.Principal) (*httptest.ResponseRecorder, bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if p != nil {
		SetPrincipal(c, p)
	}

	called := false
	err := mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})(c)
	return rec, called, err
}

func TestRateLimitBlocksAfterLimit(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{})
	mw := RateLimit(limiter, "api", 1, time.Minute)

	rec, called, err := runRateLimited(t, mw, nil)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "1", rec.Header().Get("RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("RateLimit-Remaining"))

	rec, called, err = runRateLimited(t, mw, nil)
	assert.False(t, called)
	assert.Equal(t, http.StatusTooManyRequests, apperror.StatusOf(err))
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderRetryAfter))
}

func TestRateLimitFailsOpen(t *testing.T) {
	_, called, err := runRateLimited(t, RateLimit(brokenLimiter{}, "api", 1, time.Minute), nil)

	require.NoError(t, err)
	assert.True(t, called)
}

func TestRateLimitKeysByPrincipal(t *testing.T) {
	keys := &keyRecorder{}
	mw := RateLimit(keys, "api", 10, time.Minute)

	runRateLimited(t, mw, &principal.Principal{ID: 42})
	runRateLimited(t, mw, nil)

	require.Len(t, keys.keys, 2)
	assert.Equal(t, "api:principal:42", keys.keys[0])
	assert.Equal(t, "api:ip:192.0.2.1", keys.keys[1])
}
