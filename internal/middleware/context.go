package middleware

import (
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/internal/principal"
	"github.com/suteetoe/restohub/pkg/apperror"
)

// Echo context keys
const (
	principalKey  = "principal"
	restaurantKey = "restaurant"
)

// Principal returns the authenticated principal, or nil on anonymous requests.
func Principal(c echo.Context) *principal.Principal {
	p, _ := c.Get(principalKey).(*principal.Principal)
	return p
}

// MustPrincipal returns the principal or an Unauthorized error.
func MustPrincipal(c echo.Context) (*principal.Principal, error) {
	p := Principal(c)
	if p == nil {
		return nil, apperror.Unauthorized("authentication required")
	}
	return p, nil
}

// Restaurant returns the resolved tenant.
func Restaurant(c echo.Context) *model.Restaurant {
	r, _ := c.Get(restaurantKey).(*model.Restaurant)
	return r
}

// RestaurantID returns the resolved tenant id, or a tenant_required error when resolution
// did not run for this route.
func RestaurantID(c echo.Context) (uint, error) {
	r := Restaurant(c)
	if r == nil {
		return 0, apperror.New(400, apperror.CodeTenantRequired, "restaurant_id is required")
	}
	return r.ID, nil
}

// RequestID returns the id assigned by RequestIDMiddleware.
func RequestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

// SetPrincipal stores p on the context. Tests use it to skip token handling.
func SetPrincipal(c echo.Context, p *principal.Principal) {
	c.Set(principalKey, p)
}

// SetRestaurant stores the resolved tenant on the context.
func SetRestaurant(c echo.Context, r *model.Restaurant) {
	c.Set(restaurantKey, r)
}
