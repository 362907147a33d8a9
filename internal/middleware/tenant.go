package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/authz"
	"github.com/suteetoe/restohub/internal/tenancy"
	"github.com/suteetoe/restohub/pkg/apperror"
	"github.com/suteetoe/restohub/pkg/logger"
	"github.com/suteetoe/restohub/prometheus"
	"go.uber.org/zap"
)

// ResolveTenant picks the restaurant for the request and loads its access state.
// Must run after Authenticate.
func ResolveTenant(restaurants *tenancy.RestaurantCache) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := MustPrincipal(c)
			if err != nil {
				return err
			}

			// Overrides from non-elevated principals are ignored unread.
			var override *uint
			if p.IsElevated() {
				if override, err = tenancy.OverrideFromRequest(c); err != nil {
					return err
				}
			}
			restaurantID, err := tenancy.Resolve(p, override)
			if err != nil {
				return err
			}

			restaurant, err := restaurants.Get(c.Request().Context(), restaurantID)
			if err != nil {
				return err
			}

			SetRestaurant(c, restaurant)
			logger.SetEcho(c, logger.FromEcho(c).With(zap.Uint("restaurant_id", restaurant.ID)))
			return next(c)
		}
	}
}

// RequirePermission guards a route with feature:action. Must run after ResolveTenant.
func RequirePermission(authorizer *authz.Authorizer, feature string, action authz.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := MustPrincipal(c)
			if err != nil {
				return err
			}
			restaurant := Restaurant(c)
			if restaurant == nil {
				return apperror.New(400, apperror.CodeTenantRequired, "restaurant_id is required")
			}
			if err := authorizer.Check(c.Request().Context(), p, restaurant, feature, action); err != nil {
				return err
			}
			return next(c)
		}
	}
}

// RequireElevated limits a route to admin and super_admin.
func RequireElevated() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := MustPrincipal(c)
			if err != nil {
				return err
			}
			if !p.IsElevated() {
				prometheus.RecordPermissionDenied("admin", "role")
				return apperror.Forbidden("admin role required")
			}
			return next(c)
		}
	}
}
