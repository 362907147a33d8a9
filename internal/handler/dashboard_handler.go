package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/authz"
	"github.com/suteetoe/restohub/internal/middleware"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/pkg/apperror"
	"gorm.io/gorm"
)

// DashboardHandler serves the per-restaurant overview.
type DashboardHandler struct {
	db         *gorm.DB
	authorizer *authz.Authorizer
	now        func() time.Time
}

func NewDashboardHandler(db *gorm.DB, authorizer *authz.Authorizer) *DashboardHandler {
	return &DashboardHandler{db: db, authorizer: authorizer, now: time.Now}
}

// DashboardSummary sections for optional modules are omitted when the module is off.
type DashboardSummary struct {
	OrdersToday       int64        `json:"orders_today"`
	RevenueTodayCents int64        `json:"revenue_today_cents"`
	OpenOrders        int64        `json:"open_orders"`
	Customers         int64        `json:"customers"`
	LowStock          *int64       `json:"low_stock_ingredients,omitempty"`
	OpenCashSessions  *int64       `json:"open_cash_sessions,omitempty"`
	NPS               *NPSResponse `json:"nps,omitempty"`
}

func (h *DashboardHandler) Summary(c echo.Context) error {
	restaurant := middleware.Restaurant(c)
	if restaurant == nil {
		return apperror.BadRequest("restaurant context required")
	}
	db := h.db.WithContext(c.Request().Context())
	scope := model.ForRestaurant(restaurant.ID)

	now := h.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var summary DashboardSummary
	var today struct {
		Orders  int64
		Revenue int64
	}
	if err := db.Model(&model.Order{}).Scopes(scope).
		Where("created_at >= ? AND status <> ?", dayStart, model.OrderCanceled).
		Select("COUNT(*) AS orders, COALESCE(SUM(total_cents), 0) AS revenue").
		Scan(&today).Error; err != nil {
		return apperror.Internal(err)
	}
	summary.OrdersToday = today.Orders
	summary.RevenueTodayCents = today.Revenue

	if err := db.Model(&model.Order{}).Scopes(scope).
		Where("status NOT IN ?", []string{model.OrderDelivered, model.OrderCanceled}).
		Count(&summary.OpenOrders).Error; err != nil {
		return apperror.Internal(err)
	}
	if err := db.Model(&model.Customer{}).Scopes(scope).Count(&summary.Customers).Error; err != nil {
		return apperror.Internal(err)
	}

	if h.authorizer.Enabled(restaurant, authz.FeatureStock) {
		var n int64
		if err := db.Model(&model.Ingredient{}).Scopes(scope).
			Where("min_stock > 0 AND current_stock <= min_stock").
			Count(&n).Error; err != nil {
			return apperror.Internal(err)
		}
		summary.LowStock = &n
	}

	if h.authorizer.Enabled(restaurant, authz.FeatureCashRegister) {
		var n int64
		if err := db.Model(&model.CashRegisterSession{}).Scopes(scope).
			Where("status = ?", model.SessionOpen).
			Count(&n).Error; err != nil {
			return apperror.Internal(err)
		}
		summary.OpenCashSessions = &n
	}

	if h.authorizer.Enabled(restaurant, authz.FeatureFeedback) {
		var row struct {
			Total      int64
			Promoters  int64
			Detractors int64
		}
		if err := db.Model(&model.Feedback{}).Scopes(scope).
			Select("COUNT(*) AS total, " +
				"COALESCE(SUM(CASE WHEN score >= 9 THEN 1 ELSE 0 END), 0) AS promoters, " +
				"COALESCE(SUM(CASE WHEN score <= 6 THEN 1 ELSE 0 END), 0) AS detractors").
			Scan(&row).Error; err != nil {
			return apperror.Internal(err)
		}
		nps := computeNPS(row.Total, row.Promoters, row.Detractors)
		summary.NPS = &nps
	}

	return c.JSON(http.StatusOK, summary)
}
