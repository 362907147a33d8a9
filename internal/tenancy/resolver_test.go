package tenancy

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/internal/principal"
	"github.com/suteetoe/restohub/pkg/apperror"
)

func uintPtr(v uint) *uint { return &v }

func staffOf(ids ...uint) *principal.Principal {
	p := &principal.Principal{ID: 10}
	for _, id := range ids {
		p.Memberships = append(p.Memberships, principal.Membership{RestaurantID: id, Roles: []string{model.RoleStaff}})
	}
	return p
}

func TestResolveIgnoresOverrideForNonElevated(t *testing.T) {
	p := staffOf(4, 9)

	id, err := Resolve(p, uintPtr(9))
	require.NoError(t, err)
	assert.Equal(t, uint(4), id)

	id, err = Resolve(p, uintPtr(77))
	require.NoError(t, err)
	assert.Equal(t, uint(4), id)
}

func TestResolveElevated(t *testing.T) {
	admin := staffOf(4)
	admin.GlobalRoles = []string{model.RoleAdmin}

	id, err := Resolve(admin, uintPtr(77))
	require.NoError(t, err)
	assert.Equal(t, uint(77), id)

	id, err = Resolve(admin, nil)
	require.NoError(t, err)
	assert.Equal(t, uint(4), id)

	bare := &principal.Principal{ID: 1, GlobalRoles: []string{model.RoleSuperAdmin}}
	_, err = Resolve(bare, nil)
	assert.Equal(t, apperror.CodeTenantRequired, apperror.CodeOf(err))
	assert.Equal(t, http.StatusBadRequest, apperror.StatusOf(err))
}

func TestResolveIsIdempotent(t *testing.T) {
	p := staffOf(5, 6)
	first, err := Resolve(p, uintPtr(6))
	require.NoError(t, err)
	second, err := Resolve(p, uintPtr(6))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveWithoutMembership(t *testing.T) {
	_, err := Resolve(staffOf(), nil)
	assert.Equal(t, apperror.CodeTenantRequired, apperror.CodeOf(err))
}

func newContext(req *http.Request) echo.Context {
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func TestOverrideFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/orders?restaurant_id=12", nil)
	id, err := OverrideFromRequest(newContext(req))
	require.NoError(t, err)
	assert.Equal(t, uint(12), *id)

	req = httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.Header.Set(HeaderRestaurantID, "13")
	id, err = OverrideFromRequest(newContext(req))
	require.NoError(t, err)
	assert.Equal(t, uint(13), *id)

	req = httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	id, err = OverrideFromRequest(newContext(req))
	require.NoError(t, err)
	assert.Nil(t, id)

	req = httptest.NewRequest(http.MethodGet, "/api/orders?restaurant_id=abc", nil)
	_, err = OverrideFromRequest(newContext(req))
	assert.Equal(t, http.StatusBadRequest, apperror.StatusOf(err))
}

func TestOverrideFromBodyRestoresBody(t *testing.T) {
	payload := `{"name":"Dry goods","restaurant_id":21}`
	req := httptest.NewRequest(http.MethodPost, "/api/categories", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c := newContext(req)

	id, err := OverrideFromRequest(c)
	require.NoError(t, err)
	assert.Equal(t, uint(21), *id)

	body, err := io.ReadAll(c.Request().Body)
	require.NoError(t, err)
	assert.Equal(t, payload, string(body))
}

func TestOverrideFromBodyWithoutField(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/categories", strings.NewReader(`{"name":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	id, err := OverrideFromRequest(newContext(req))
	require.NoError(t, err)
	assert.Nil(t, id)
}
