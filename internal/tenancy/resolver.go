// Package tenancy decides which restaurant a request acts on.
package tenancy

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/principal"
	"github.com/suteetoe/restohub/pkg/apperror"
)

// HeaderRestaurantID carries an explicit tenant override.
const HeaderRestaurantID = "X-Restaurant-ID"

// Resolve picks the restaurant for p. Non-elevated principals always act on their first
// association and the override is ignored. Elevated principals use the override when
// present, else their first association.
func Resolve(p *principal.Principal, override *uint) (uint, error) {
	if p.IsElevated() && override != nil {
		return *override, nil
	}
	if id, ok := p.FirstRestaurant(); ok {
		return id, nil
	}
	return 0, apperror.New(400, apperror.CodeTenantRequired, "restaurant_id is required")
}

// OverrideFromRequest reads restaurant_id from the query string, the X-Restaurant-ID header
// or a JSON body, in that order. The body is restored for the handler.
func OverrideFromRequest(c echo.Context) (*uint, error) {
	if raw := c.QueryParam("restaurant_id"); raw != "" {
		return parseID(raw)
	}
	if raw := c.Request().Header.Get(HeaderRestaurantID); raw != "" {
		return parseID(raw)
	}
	return overrideFromBody(c)
}

func overrideFromBody(c echo.Context) (*uint, error) {
	req := c.Request()
	if req.Body == nil || !strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return nil, nil
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, apperror.BadRequest("unreadable request body")
	}
	req.Body = io.NopCloser(bytes.NewReader(body))

	var envelope struct {
		RestaurantID json.RawMessage `json:"restaurant_id"`
	}
	// Non-object bodies carry no override; the handler reports them.
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.RestaurantID) == 0 || string(envelope.RestaurantID) == "null" {
		return nil, nil
	}
	return parseID(strings.Trim(string(envelope.RestaurantID), `"`))
}

func parseID(raw string) (*uint, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || id == 0 {
		return nil, apperror.BadRequest("invalid restaurant_id")
	}
	v := uint(id)
	return &v, nil
}
