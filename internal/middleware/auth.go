package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/principal"
	"github.com/suteetoe/restohub/pkg/apperror"
	"github.com/suteetoe/restohub/pkg/jwtutil"
	"github.com/suteetoe/restohub/pkg/logger"
	"github.com/suteetoe/restohub/prometheus"
	"go.uber.org/zap"
)

// PrincipalLoader loads the principal behind a verified token.
type PrincipalLoader interface {
	Load(ctx context.Context, userID uint) (*principal.Principal, error)
}

// Authenticate verifies the bearer token and loads the principal. Any failure ends the
// request with 401, or 403 for disabled and locked accounts.
func Authenticate(jwtUtil *jwtutil.JWTUtil, loader PrincipalLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := authenticate(c, jwtUtil, loader)
			if err != nil {
				return err
			}
			SetPrincipal(c, p)
			logger.SetEcho(c, logger.FromEcho(c).With(zap.Uint("user_id", p.ID)))
			return next(c)
		}
	}
}

// OptionalAuth attaches a principal when a valid token is present and otherwise lets the
// request through anonymously.
func OptionalAuth(jwtUtil *jwtutil.JWTUtil, loader PrincipalLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get(echo.HeaderAuthorization) == "" {
				return next(c)
			}
			p, err := authenticate(c, jwtUtil, loader)
			if err != nil {
				logger.FromEcho(c).Debug("Ignoring invalid credentials on optional auth route", zap.Error(err))
				return next(c)
			}
			SetPrincipal(c, p)
			return next(c)
		}
	}
}

func authenticate(c echo.Context, jwtUtil *jwtutil.JWTUtil, loader PrincipalLoader) (*principal.Principal, error) {
	log := logger.FromEcho(c)

	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		prometheus.RecordAuthError("missing_token")
		return nil, apperror.Unauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		log.Warn("Invalid authorization header format")
		prometheus.RecordAuthError("malformed_header")
		return nil, apperror.Unauthorized("invalid authorization header format")
	}

	claims, err := jwtUtil.ValidateToken(parts[1])
	if err != nil {
		log.Warn("Invalid or expired token", zap.Error(err))
		prometheus.RecordAuthError("invalid_token")
		return nil, apperror.Unauthorized("invalid or expired token")
	}

	userID, err := claims.UserID()
	if err != nil {
		log.Warn("Token subject is not a user id", zap.Error(err))
		prometheus.RecordAuthError("invalid_subject")
		return nil, apperror.Unauthorized("invalid or expired token")
	}

	p, err := loader.Load(c.Request().Context(), userID)
	if err != nil {
		prometheus.RecordAuthError("principal_rejected")
		return nil, err
	}
	return p, nil
}
