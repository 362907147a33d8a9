package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/audit"
	"github.com/suteetoe/restohub/internal/middleware"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/pkg/apperror"
	"github.com/suteetoe/restohub/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CouponHandler issues and redeems loyalty coupons.
type CouponHandler struct {
	db    *gorm.DB
	audit audit.Recorder
	now   func() time.Time
}

func NewCouponHandler(db *gorm.DB, rec audit.Recorder) *CouponHandler {
	return &CouponHandler{db: db, audit: rec, now: time.Now}
}

type CouponRequest struct {
	Code          string     `json:"code" validate:"omitempty,alphanum,max=40"`
	CustomerID    *uint      `json:"customer_id"`
	DiscountType  string     `json:"discount_type" validate:"required,oneof=percent fixed"`
	DiscountValue int64      `json:"discount_value" validate:"required,gt=0"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

func (h *CouponHandler) List(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}

	db := h.db.WithContext(c.Request().Context()).Scopes(model.ForRestaurant(restaurantID))
	if status := c.QueryParam("status"); status != "" {
		db = db.Where("status = ?", status)
	}
	customerID, err := queryID(c, "customer_id")
	if err != nil {
		return err
	}
	if customerID != nil {
		db = db.Where("customer_id = ?", *customerID)
	}

	var coupons []model.Coupon
	if err := db.Order("id DESC").Find(&coupons).Error; err != nil {
		return apperror.Internal(err)
	}
	return c.JSON(http.StatusOK, mapSlice(coupons, newCouponResponse))
}

func (h *CouponHandler) Get(c echo.Context) error {
	coupon, err := h.find(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newCouponResponse(coupon))
}

// Create issues a coupon. A code is generated when none is given.
func (h *CouponHandler) Create(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}

	var req CouponRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.DiscountType == model.DiscountPercent && req.DiscountValue > 100 {
		return apperror.Validation("discount_value must be at most 100 for percent coupons")
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(h.now()) {
		return apperror.Validation("expires_at must be in the future")
	}
	if req.CustomerID != nil {
		var count int64
		if err := h.db.WithContext(c.Request().Context()).Model(&model.Customer{}).
			Scopes(model.ForRestaurant(restaurantID)).
			Where("id = ?", *req.CustomerID).
			Count(&count).Error; err != nil {
			return apperror.Internal(err)
		}
		if count == 0 {
			return apperror.BadRequest("customer not found")
		}
	}

	code := strings.ToUpper(req.Code)
	if code == "" {
		code = generateCouponCode()
	}

	coupon := model.Coupon{
		RestaurantID:  restaurantID,
		CustomerID:    req.CustomerID,
		Code:          code,
		DiscountType:  req.DiscountType,
		DiscountValue: req.DiscountValue,
		Status:        model.CouponActive,
		ExpiresAt:     req.ExpiresAt,
	}
	if err := h.db.WithContext(c.Request().Context()).Create(&coupon).Error; err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("coupon code already exists")
		}
		return apperror.Internal(err)
	}

	recordAudit(c, h.audit, "coupon.create", "coupon", coupon.ID, req)
	return c.JSON(http.StatusCreated, newCouponResponse(&coupon))
}

// Redeem marks an active coupon redeemed. Coupons past expiry are moved to expired.
func (h *CouponHandler) Redeem(c echo.Context) error {
	p, err := middleware.MustPrincipal(c)
	if err != nil {
		return err
	}
	coupon, err := h.find(c)
	if err != nil {
		return err
	}
	log := logger.FromEcho(c).With(zap.Uint("coupon_id", coupon.ID))

	if coupon.Status != model.CouponActive {
		log.Info("Redeem refused", zap.String("status", coupon.Status))
		return apperror.BadRequest("coupon is not active")
	}

	now := h.now()
	if coupon.Expired(now) {
		if err := h.db.Model(coupon).Where("status = ?", model.CouponActive).Update("status", model.CouponExpired).Error; err != nil {
			return apperror.Internal(err)
		}
		return apperror.BadRequest("coupon has expired")
	}

	res := h.db.WithContext(c.Request().Context()).Model(coupon).
		Where("status = ?", model.CouponActive).
		Updates(map[string]interface{}{
			"status":      model.CouponRedeemed,
			"redeemed_at": now,
			"redeemed_by": p.ID,
		})
	if res.Error != nil {
		return apperror.Internal(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.BadRequest("coupon is not active")
	}

	coupon.Status = model.CouponRedeemed
	coupon.RedeemedAt = &now
	coupon.RedeemedBy = &p.ID

	log.Info("Coupon redeemed", zap.String("code", coupon.Code))
	recordAudit(c, h.audit, "coupon.redeem", "coupon", coupon.ID, map[string]string{"code": coupon.Code})
	return c.JSON(http.StatusOK, newCouponResponse(coupon))
}

func (h *CouponHandler) find(c echo.Context) (*model.Coupon, error) {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return nil, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}

	var coupon model.Coupon
	if err := h.db.WithContext(c.Request().Context()).
		Scopes(model.ForRestaurant(restaurantID)).
		First(&coupon, id).Error; err != nil {
		return nil, notFoundOr(err, "coupon not found")
	}
	return &coupon, nil
}

func generateCouponCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:10])
}
