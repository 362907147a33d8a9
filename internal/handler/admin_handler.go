package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/audit"
	"github.com/suteetoe/restohub/internal/authz"
	"github.com/suteetoe/restohub/internal/middleware"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/internal/tenancy"
	"github.com/suteetoe/restohub/pkg/apperror"
	"github.com/suteetoe/restohub/pkg/logger"
	"github.com/suteetoe/restohub/prometheus"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminHandler serves the platform console: restaurants, their modules and subscriptions,
// and user accounts. Routes are limited to admin and super_admin.
type AdminHandler struct {
	db          *gorm.DB
	table       *authz.Table
	restaurants *tenancy.RestaurantCache
	audit       audit.Recorder
	now         func() time.Time
}

func NewAdminHandler(db *gorm.DB, table *authz.Table, restaurants *tenancy.RestaurantCache, rec audit.Recorder) *AdminHandler {
	return &AdminHandler{db: db, table: table, restaurants: restaurants, audit: rec, now: time.Now}
}

type CreateRestaurantRequest struct {
	Name           string   `json:"name" validate:"required,max=150"`
	OwnerID        uint     `json:"owner_id" validate:"required"`
	EnabledModules []string `json:"enabled_modules"`
	Currency       string   `json:"currency" validate:"omitempty,len=3"`
	Timezone       string   `json:"timezone" validate:"omitempty,max=64"`
}

type UpdateModulesRequest struct {
	EnabledModules []string `json:"enabled_modules" validate:"required"`
}

type UpdateSubscriptionRequest struct {
	Status string     `json:"status" validate:"required,oneof=trialing active past_due canceled"`
	EndsAt *time.Time `json:"ends_at"`
}

type AttachUserRequest struct {
	UserID  uint   `json:"user_id" validate:"required"`
	Role    string `json:"role" validate:"required,oneof=owner manager staff"`
	IsOwner bool   `json:"is_owner"`
}

type CreateUserRequest struct {
	Email      string `json:"email" validate:"required,email,max=100"`
	Password   string `json:"password" validate:"required,min=8,max=72"`
	Name       string `json:"name" validate:"required,max=100"`
	GlobalRole string `json:"global_role" validate:"omitempty,oneof=admin super_admin"`
}

func (r *CreateUserRequest) normalize() { r.Email = normalizeEmail(r.Email) }

type UpdateUserStatusRequest struct {
	Active *bool `json:"active"`
	Unlock bool  `json:"unlock"`
}

// CreateRestaurant creates a restaurant with a slug derived from its name and makes
// owner_id its owner.
func (h *AdminHandler) CreateRestaurant(c echo.Context) error {
	log := logger.FromEcho(c)

	var req CreateRestaurantRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.checkModules(req.EnabledModules); err != nil {
		return err
	}

	var owner model.User
	if err := h.db.WithContext(c.Request().Context()).First(&owner, req.OwnerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.BadRequest("owner not found")
		}
		return apperror.Internal(err)
	}

	restaurant := model.Restaurant{
		Name:               strings.TrimSpace(req.Name),
		OwnerID:            owner.ID,
		SubscriptionStatus: model.SubscriptionTrialing,
	}
	restaurant.SetEnabledModules(req.EnabledModules)
	settings := restaurant.Settings.Data()
	settings.Currency = strings.ToUpper(req.Currency)
	settings.Timezone = req.Timezone
	restaurant.Settings = datatypes.NewJSONType(settings)

	err := h.db.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		s, err := uniqueSlug(tx, restaurant.Name)
		if err != nil {
			return err
		}
		restaurant.Slug = s
		if err := tx.Create(&restaurant).Error; err != nil {
			return err
		}
		if err := tx.Create(&model.RestaurantUser{UserID: owner.ID, RestaurantID: restaurant.ID, IsOwner: true}).Error; err != nil {
			return err
		}
		rid := restaurant.ID
		return tx.Create(&model.RoleAssignment{UserID: owner.ID, Role: model.RoleOwner, RestaurantID: &rid}).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("restaurant slug already taken, retry")
		}
		return apperror.Internal(err)
	}

	prometheus.RecordRestaurantOperation("create")
	log.Info("Restaurant created",
		zap.Uint("restaurant_id", restaurant.ID),
		zap.String("slug", restaurant.Slug),
		zap.Uint("owner_id", owner.ID))
	recordAudit(c, h.audit, "restaurant.create", "restaurant", restaurant.ID, map[string]interface{}{
		"name":     restaurant.Name,
		"slug":     restaurant.Slug,
		"owner_id": owner.ID,
	})

	return c.JSON(http.StatusCreated, newRestaurantResponse(&restaurant))
}

// ListRestaurants pages through every restaurant.
func (h *AdminHandler) ListRestaurants(c echo.Context) error {
	limit, offset := pagination(c)
	db := h.db.WithContext(c.Request().Context()).Model(&model.Restaurant{})
	if q := strings.TrimSpace(c.QueryParam("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		db = db.Where("LOWER(name) LIKE ? OR slug LIKE ?", like, like)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return apperror.Internal(err)
	}
	var restaurants []model.Restaurant
	if err := db.Order("id ASC").Limit(limit).Offset(offset).Find(&restaurants).Error; err != nil {
		return apperror.Internal(err)
	}

	return c.JSON(http.StatusOK, ListResponse[RestaurantResponse]{
		Items:  mapSlice(restaurants, newRestaurantResponse),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *AdminHandler) GetRestaurant(c echo.Context) error {
	restaurant, err := h.findRestaurant(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newRestaurantResponse(restaurant))
}

// DeleteRestaurant removes the restaurant and every row it owns. Audit logs are kept.
func (h *AdminHandler) DeleteRestaurant(c echo.Context) error {
	restaurant, err := h.findRestaurant(c)
	if err != nil {
		return err
	}
	id := restaurant.ID

	err = h.db.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		orderIDs := tx.Model(&model.Order{}).Scopes(model.ForRestaurant(id)).Select("id")
		if err := tx.Where("order_id IN (?)", orderIDs).Delete(&model.OrderItem{}).Error; err != nil {
			return err
		}
		scoped := []interface{}{
			&model.Order{}, &model.Coupon{}, &model.CashTransaction{}, &model.CashRegisterSession{},
			&model.StockMovement{}, &model.Ingredient{}, &model.Category{}, &model.Customer{},
			&model.Feedback{}, &model.Integration{}, &model.RoleAssignment{}, &model.RestaurantUser{},
		}
		for _, m := range scoped {
			if err := tx.Unscoped().Scopes(model.ForRestaurant(id)).Delete(m).Error; err != nil {
				return fmt.Errorf("delete %T: %w", m, err)
			}
		}
		return tx.Unscoped().Delete(&model.Restaurant{}, id).Error
	})
	if err != nil {
		return apperror.Internal(err)
	}
	h.restaurants.Invalidate(id)

	prometheus.RecordRestaurantOperation("delete")
	logger.FromEcho(c).Info("Restaurant deleted", zap.Uint("restaurant_id", id), zap.String("slug", restaurant.Slug))
	recordAudit(c, h.audit, "restaurant.delete", "restaurant", id, map[string]string{"slug": restaurant.Slug})

	return c.NoContent(http.StatusNoContent)
}

// UpdateModules replaces the restaurant's enabled module list with exactly the given one.
func (h *AdminHandler) UpdateModules(c echo.Context) error {
	restaurant, err := h.findRestaurant(c)
	if err != nil {
		return err
	}

	var req UpdateModulesRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.checkModules(req.EnabledModules); err != nil {
		return err
	}

	previous := restaurant.EnabledModules()
	restaurant.SetEnabledModules(req.EnabledModules)
	if err := h.db.Model(restaurant).Update("settings", restaurant.Settings).Error; err != nil {
		return apperror.Internal(err)
	}
	h.restaurants.Invalidate(restaurant.ID)

	prometheus.RecordRestaurantOperation("modules")
	logger.FromEcho(c).Info("Restaurant modules updated",
		zap.Uint("restaurant_id", restaurant.ID),
		zap.Strings("enabled_modules", restaurant.EnabledModules()))
	recordAudit(c, h.audit, "restaurant.modules_update", "restaurant", restaurant.ID, map[string][]string{
		"previous": previous,
		"current":  restaurant.EnabledModules(),
	})

	return c.JSON(http.StatusOK, newRestaurantResponse(restaurant))
}

func (h *AdminHandler) UpdateSubscription(c echo.Context) error {
	restaurant, err := h.findRestaurant(c)
	if err != nil {
		return err
	}

	var req UpdateSubscriptionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	restaurant.SubscriptionStatus = req.Status
	restaurant.SubscriptionEndsAt = req.EndsAt
	if err := h.db.Model(restaurant).Select("subscription_status", "subscription_ends_at").Updates(restaurant).Error; err != nil {
		return apperror.Internal(err)
	}
	h.restaurants.Invalidate(restaurant.ID)

	prometheus.RecordRestaurantOperation("subscription")
	recordAudit(c, h.audit, "restaurant.subscription_update", "restaurant", restaurant.ID, req)
	return c.JSON(http.StatusOK, newRestaurantResponse(restaurant))
}

// AttachUser associates a user with the restaurant and grants a restaurant-scoped role.
func (h *AdminHandler) AttachUser(c echo.Context) error {
	restaurant, err := h.findRestaurant(c)
	if err != nil {
		return err
	}

	var req AttachUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	var user model.User
	if err := h.db.WithContext(c.Request().Context()).First(&user, req.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.BadRequest("user not found")
		}
		return apperror.Internal(err)
	}

	isOwner := req.IsOwner || req.Role == model.RoleOwner
	err = h.db.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		var assoc model.RestaurantUser
		err := tx.Where("user_id = ? AND restaurant_id = ?", user.ID, restaurant.ID).First(&assoc).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&model.RestaurantUser{UserID: user.ID, RestaurantID: restaurant.ID, IsOwner: isOwner}).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		case isOwner && !assoc.IsOwner:
			if err := tx.Model(&assoc).Update("is_owner", true).Error; err != nil {
				return err
			}
		}

		rid := restaurant.ID
		role := model.RoleAssignment{UserID: user.ID, Role: req.Role, RestaurantID: &rid}
		return tx.Where(role).FirstOrCreate(&role).Error
	})
	if err != nil {
		return apperror.Internal(err)
	}

	prometheus.RecordRestaurantOperation("attach_user")
	recordAudit(c, h.audit, "restaurant.user_attach", "restaurant", restaurant.ID, req)
	return c.JSON(http.StatusCreated, echo.Map{
		"restaurant_id": restaurant.ID,
		"user_id":       user.ID,
		"role":          req.Role,
		"is_owner":      isOwner,
	})
}

// CreateUser creates an account. Only super_admin may hand out global roles.
func (h *AdminHandler) CreateUser(c echo.Context) error {
	p, err := middleware.MustPrincipal(c)
	if err != nil {
		return err
	}

	var req CreateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.GlobalRole != "" && !p.IsSuperAdmin() {
		return apperror.Forbidden("only super_admin may grant global roles")
	}

	user, err := createUser(h.db.WithContext(c.Request().Context()), req.Email, req.Password, req.Name)
	if err != nil {
		return err
	}
	if req.GlobalRole != "" {
		if err := h.db.Create(&model.RoleAssignment{UserID: user.ID, Role: req.GlobalRole}).Error; err != nil {
			return apperror.Internal(err)
		}
	}

	recordAudit(c, h.audit, "user.create", "user", user.ID, map[string]string{"email": user.Email, "global_role": req.GlobalRole})
	return c.JSON(http.StatusCreated, newAccountResponse(user, h.now()))
}

// UpdateUserStatus activates, deactivates or unlocks an account.
func (h *AdminHandler) UpdateUserStatus(c echo.Context) error {
	p, err := middleware.MustPrincipal(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req UpdateUserStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.Active == nil && !req.Unlock {
		return apperror.BadRequest("nothing to update")
	}
	if id == p.ID && req.Active != nil && !*req.Active {
		return apperror.BadRequest("cannot deactivate your own account")
	}

	var user model.User
	if err := h.db.WithContext(c.Request().Context()).Preload("RoleAssignments").First(&user, id).Error; err != nil {
		return notFoundOr(err, "user not found")
	}
	if !p.IsSuperAdmin() {
		for _, ra := range user.RoleAssignments {
			if ra.RestaurantID == nil && ra.Role == model.RoleSuperAdmin {
				return apperror.Forbidden("cannot modify a super_admin account")
			}
		}
	}

	updates := map[string]interface{}{}
	if req.Active != nil {
		updates["active"] = *req.Active
		user.Active = *req.Active
	}
	if req.Unlock {
		updates["login_attempts"] = 0
		updates["locked_until"] = nil
		user.LoginAttempts = 0
		user.LockedUntil = nil
	}
	if err := h.db.Model(&user).Updates(updates).Error; err != nil {
		return apperror.Internal(err)
	}

	recordAudit(c, h.audit, "user.status_update", "user", user.ID, req)
	return c.JSON(http.StatusOK, newAccountResponse(&user, h.now()))
}

func (h *AdminHandler) findRestaurant(c echo.Context) (*model.Restaurant, error) {
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}
	var restaurant model.Restaurant
	if err := h.db.WithContext(c.Request().Context()).First(&restaurant, id).Error; err != nil {
		return nil, notFoundOr(err, "restaurant not found")
	}
	return &restaurant, nil
}

func (h *AdminHandler) checkModules(modules []string) error {
	for _, m := range modules {
		if !h.table.Known(m) {
			return apperror.Validation(fmt.Sprintf("unknown module %q", m))
		}
	}
	return nil
}

// uniqueSlug derives a slug from name, suffixing -2, -3, ... on collision. Deleted
// restaurants keep their slug reserved until they are purged.
func uniqueSlug(tx *gorm.DB, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "restaurant"
	}

	var taken []string
	if err := tx.Unscoped().Model(&model.Restaurant{}).
		Where("slug = ? OR slug LIKE ?", base, base+"-%").
		Pluck("slug", &taken).Error; err != nil {
		return "", err
	}
	used := make(map[string]bool, len(taken))
	for _, s := range taken {
		used[s] = true
	}

	candidate := base
	for n := 2; used[candidate]; n++ {
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return candidate, nil
}
