package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/restohub/internal/audit"
	"github.com/suteetoe/restohub/internal/authz"
	"github.com/suteetoe/restohub/internal/events"
	"github.com/suteetoe/restohub/internal/handler"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/internal/tenancy"
	"github.com/suteetoe/restohub/internal/testutil"
	"github.com/suteetoe/restohub/pkg/config"
	"github.com/suteetoe/restohub/pkg/jwtutil"
	"github.com/suteetoe/restohub/pkg/ratelimit"
	"github.com/suteetoe/restohub/prometheus"
	"gorm.io/gorm"
)

type harness struct {
	t    *testing.T
	e    *echo.Echo
	db   *gorm.DB
	jwt  *jwtutil.JWTUtil
	sink *audit.Sink
}

func testConfig() *config.Config {
	return &config.Config{
		ServiceName: "restohub-test",
		Server:      config.ServerConfig{Env: "test", FrontendURL: "http://localhost:3000"},
		Auth:        config.AuthConfig{MaxLoginAttempts: 3, LockoutDuration: 15 * time.Minute},
		RateLimit:   config.RateLimitConfig{Requests: 1000, LoginRequests: 1000, Window: time.Minute, MaxKeys: 1000},
		Cache:       config.CacheConfig{RestaurantTTL: time.Minute},
		Audit:       config.AuditConfig{QueueSize: 16},
		Metrics:     config.MetricsConfig{Prefix: "restohub"},
	}
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, testConfig(), nil)
}

func newHarnessWith(t *testing.T, cfg *config.Config, pub events.Publisher) *harness {
	t.Helper()

	prometheus.InitMetrics(cfg.Metrics.Prefix)
	db := testutil.NewDB(t)
	sink := audit.NewSink(db, cfg.Audit.QueueSize)
	t.Cleanup(func() { sink.Close(context.Background()) })
	jwtUtil := jwtutil.NewJWTUtil(&jwtutil.JWTConfig{
		SigningKey:      "test-signing-key",
		Issuer:          "restohub-test",
		ExpirationHours: 1,
	})
	e := New(Deps{
		Config:      cfg,
		DB:          db,
		JWT:         jwtUtil,
		Authorizer:  authz.NewAuthorizer(authz.DefaultTable()),
		Restaurants: tenancy.NewRestaurantCache(db, cfg.Cache.RestaurantTTL),
		Limiter:     ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{MaxKeys: cfg.RateLimit.MaxKeys}),
		Audit:       sink,
		Events:      pub,
	})
	return &harness{t: t, e: e, db: db, jwt: jwtUtil, sink: sink}
}

func (h *harness) token(u *model.User) string {
	h.t.Helper()
	token, err := h.jwt.GenerateToken(u.ID, u.Email)
	require.NoError(h.t, err)
	return token
}

type reqOpt func(*http.Request)

func withHeader(key, value string) reqOpt {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

func (h *harness) do(method, path, token string, body interface{}, opts ...reqOpt) *httptest.ResponseRecorder {
	h.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	for _, opt := range opts {
		opt(req)
	}

	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorResponse {
	return decode[handler.ErrorResponse](t, rec)
}

func TestHealthCheck(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/health", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]string](t, rec)
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, "restohub-test", body["service"])
	require.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)
	h.do(http.MethodGet, "/health", "", nil)

	rec := h.do(http.MethodGet, "/metrics", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "restohub_http_requests_total")
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodGet, "/nowhere", "", nil)

	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "not_found", errorBody(t, rec).Code)
}
