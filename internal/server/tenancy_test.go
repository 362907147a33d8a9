package server

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/restohub/internal/handler"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/internal/testutil"
)

type twoTenants struct {
	a, b           *model.Restaurant
	ownerA, ownerB *model.User
}

func seedTwoTenants(t *testing.T, h *harness) twoTenants {
	t.Helper()
	ownerA := testutil.CreateUser(t, h.db, "a@example.com")
	ownerB := testutil.CreateUser(t, h.db, "b@example.com")
	a := testutil.CreateRestaurant(t, h.db, "Alpha", ownerA)
	b := testutil.CreateRestaurant(t, h.db, "Bravo", ownerB)
	require.NoError(t, h.db.Create(&model.Category{RestaurantID: a.ID, Name: "Alpha Soups"}).Error)
	require.NoError(t, h.db.Create(&model.Category{RestaurantID: b.ID, Name: "Bravo Grill"}).Error)
	return twoTenants{a: a, b: b, ownerA: ownerA, ownerB: ownerB}
}

func categoryNames(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var names []string
	for _, c := range decode[[]handler.CategoryResponse](t, rec) {
		names = append(names, c.Name)
	}
	return names
}

func TestStaffOverrideIsIgnored(t *testing.T) {
	h := newHarness(t)
	s := seedTwoTenants(t, h)
	staff := testutil.CreateUser(t, h.db, "staff@example.com")
	testutil.AddMember(t, h.db, s.a, staff, model.RoleStaff, false)
	token := h.token(staff)

	requests := map[string]*httptest.ResponseRecorder{
		"query":  h.do(http.MethodGet, fmt.Sprintf("/api/categories?restaurant_id=%d", s.b.ID), token, nil),
		"header": h.do(http.MethodGet, "/api/categories", token, nil, withHeader("X-Restaurant-ID", fmt.Sprint(s.b.ID))),
	}
	for name, rec := range requests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, []string{"Alpha Soups"}, categoryNames(t, rec))
		})
	}
}

func TestStaffCannotCreateInAnotherTenantViaBody(t *testing.T) {
	h := newHarness(t)
	s := seedTwoTenants(t, h)
	manager := testutil.CreateUser(t, h.db, "manager@example.com")
	testutil.AddMember(t, h.db, s.a, manager, model.RoleManager, false)

	rec := h.do(http.MethodPost, "/api/categories", h.token(manager), map[string]interface{}{
		"name":          "Sneaky",
		"restaurant_id": s.b.ID,
	})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[handler.CategoryResponse](t, rec)
	var stored model.Category
	require.NoError(t, h.db.First(&stored, created.ID).Error)
	assert.Equal(t, s.a.ID, stored.RestaurantID)
}

func TestResolvingTwiceYieldsSameTenant(t *testing.T) {
	h := newHarness(t)
	s := seedTwoTenants(t, h)
	token := h.token(s.ownerA)

	first := h.do(http.MethodGet, "/api/categories", token, nil)
	second := h.do(http.MethodGet, "/api/categories", token, nil)

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, categoryNames(t, first), categoryNames(t, second))
}

func TestFirstMembershipWins(t *testing.T) {
	h := newHarness(t)
	s := seedTwoTenants(t, h)
	testutil.AddMember(t, h.db, s.b, s.ownerA, model.RoleManager, false)

	rec := h.do(http.MethodGet, "/api/categories", h.token(s.ownerA), nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Alpha Soups"}, categoryNames(t, rec))
}

func TestSuperAdminListIsScopedToOneTenant(t *testing.T) {
	h := newHarness(t)
	s := seedTwoTenants(t, h)
	root := testutil.CreateUser(t, h.db, "root@example.com", model.RoleSuperAdmin)
	token := h.token(root)

	rec := h.do(http.MethodGet, fmt.Sprintf("/api/categories?restaurant_id=%d", s.b.ID), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Bravo Grill"}, categoryNames(t, rec))

	rec = h.do(http.MethodGet, "/api/categories", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "tenant_required", errorBody(t, rec).Code)
}

func TestAdminOverrideWinsOverMembership(t *testing.T) {
	h := newHarness(t)
	s := seedTwoTenants(t, h)
	admin := testutil.CreateUser(t, h.db, "admin@example.com", model.RoleAdmin)
	testutil.AddMember(t, h.db, s.a, admin, model.RoleManager, false)
	token := h.token(admin)

	rec := h.do(http.MethodGet, "/api/categories", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Alpha Soups"}, categoryNames(t, rec))

	rec = h.do(http.MethodGet, "/api/categories", token, nil, withHeader("X-Restaurant-ID", fmt.Sprint(s.b.ID)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Bravo Grill"}, categoryNames(t, rec))
}

func TestOtherTenantRowIsNotFound(t *testing.T) {
	h := newHarness(t)
	s := seedTwoTenants(t, h)
	var foreign model.Category
	require.NoError(t, h.db.Where("restaurant_id = ?", s.b.ID).First(&foreign).Error)
	token := h.token(s.ownerA)

	get := h.do(http.MethodGet, fmt.Sprintf("/api/categories/%d", foreign.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, get.Code)

	del := h.do(http.MethodDelete, fmt.Sprintf("/api/categories/%d", foreign.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, del.Code)

	var count int64
	require.NoError(t, h.db.Model(&model.Category{}).Where("id = ?", foreign.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestUserWithoutRestaurantNeedsTenant(t *testing.T) {
	h := newHarness(t)
	loner := testutil.CreateUser(t, h.db, "loner@example.com")

	rec := h.do(http.MethodGet, "/api/categories", h.token(loner), nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "tenant_required", errorBody(t, rec).Code)
}

func TestMalformedOverrideIsBadRequestForAdmin(t *testing.T) {
	h := newHarness(t)
	s := seedTwoTenants(t, h)
	admin := testutil.CreateUser(t, h.db, "admin@example.com", model.RoleAdmin)
	testutil.AddMember(t, h.db, s.a, admin, model.RoleManager, false)

	rec := h.do(http.MethodGet, "/api/categories?restaurant_id=abc", h.token(admin), nil)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid restaurant_id", errorBody(t, rec).Message)
}

func TestMalformedOverrideIsIgnoredForMembers(t *testing.T) {
	h := newHarness(t)
	s := seedTwoTenants(t, h)
	staff := testutil.CreateUser(t, h.db, "staff@example.com")
	testutil.AddMember(t, h.db, s.a, staff, model.RoleStaff, false)
	manager := testutil.CreateUser(t, h.db, "manager@example.com")
	testutil.AddMember(t, h.db, s.a, manager, model.RoleManager, false)

	requests := map[string]*httptest.ResponseRecorder{
		"query":  h.do(http.MethodGet, "/api/categories?restaurant_id=abc", h.token(staff), nil),
		"header": h.do(http.MethodGet, "/api/categories", h.token(staff), nil, withHeader("X-Restaurant-ID", "0")),
	}
	for name, rec := range requests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.Equal(t, []string{"Alpha Soups"}, categoryNames(t, rec))
		})
	}

	rec := h.do(http.MethodPost, "/api/categories", h.token(manager), map[string]interface{}{
		"name":          "Noodles",
		"restaurant_id": "n/a",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var stored model.Category
	require.NoError(t, h.db.First(&stored, decode[handler.CategoryResponse](t, rec).ID).Error)
	assert.Equal(t, s.a.ID, stored.RestaurantID)
}

func TestStaffLacksDeletePermission(t *testing.T) {
	h := newHarness(t)
	s := seedTwoTenants(t, h)
	staff := testutil.CreateUser(t, h.db, "staff@example.com")
	testutil.AddMember(t, h.db, s.a, staff, model.RoleStaff, false)
	var own model.Category
	require.NoError(t, h.db.Where("restaurant_id = ?", s.a.ID).First(&own).Error)

	rec := h.do(http.MethodDelete, fmt.Sprintf("/api/categories/%d", own.ID), h.token(staff), nil)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorBody(t, rec).Code)
}
