package logger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(&LogConfig{Level: "debug", Environment: "production", ServiceName: "restohub"}))
	assert.True(t, GetLogger().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(&LogConfig{Level: "warn", Environment: "development", ServiceName: "restohub"}))
	assert.False(t, GetLogger().Core().Enabled(zap.InfoLevel))
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	SetLogger(zap.New(core))

	FromContext(context.Background()).Info("global")
	child := zap.New(core).With(zap.String("request_id", "abc"))
	FromContext(WithContext(context.Background(), child)).Info("scoped")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].ContextMap())
	assert.Equal(t, "abc", entries[1].ContextMap()["request_id"])
}

func TestMiddlewareLogsFinalStatus(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	SetLogger(zap.New(core))

	e := echo.New()
	e.Use(Middleware())
	e.GET("/teapot", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "short and stout")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	entries := logs.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 1)
	assert.EqualValues(t, http.StatusTeapot, entries[0].ContextMap()["status"])
}
