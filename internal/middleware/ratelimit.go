package middleware

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/pkg/apperror"
	"github.com/suteetoe/restohub/pkg/logger"
	"github.com/suteetoe/restohub/pkg/ratelimit"
	"github.com/suteetoe/restohub/prometheus"
	"go.uber.org/zap"
)

// RateLimit applies limit hits per window, keyed by principal when authenticated and by
// client IP otherwise. Limiter errors let the request through.
func RateLimit(limiter ratelimit.Limiter, scope string, limit int, window time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if limiter == nil || limit <= 0 {
				return next(c)
			}

			key := scope + ":ip:" + c.RealIP()
			if p := Principal(c); p != nil {
				key = fmt.Sprintf("%s:principal:%d", scope, p.ID)
			}

			decision, err := limiter.Allow(c.Request().Context(), key, limit, window)
			if err != nil {
				logger.FromEcho(c).Warn("Rate limiter unavailable, allowing request", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			resetSeconds := int(math.Ceil(time.Until(decision.ResetAt).Seconds()))
			if resetSeconds < 0 {
				resetSeconds = 0
			}
			h.Set("RateLimit-Limit", strconv.Itoa(decision.Limit))
			h.Set("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			h.Set("RateLimit-Reset", strconv.Itoa(resetSeconds))

			if !decision.Allowed {
				h.Set(echo.HeaderRetryAfter, strconv.Itoa(resetSeconds))
				prometheus.RecordRateLimited(scope)
				return apperror.TooManyRequests("too many requests")
			}
			return next(c)
		}
	}
}
