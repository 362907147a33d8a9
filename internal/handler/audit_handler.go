package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/middleware"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/pkg/apperror"
	"gorm.io/gorm"
)

// AuditLogHandler exposes the restaurant's audit trail. There is no write path here.
type AuditLogHandler struct {
	db *gorm.DB
}

func NewAuditLogHandler(db *gorm.DB) *AuditLogHandler {
	return &AuditLogHandler{db: db}
}

// List pages newest first; action, resource and actor_id narrow the result.
func (h *AuditLogHandler) List(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)

	db := h.db.WithContext(c.Request().Context()).Model(&model.AuditLog{}).Scopes(model.ForRestaurant(restaurantID))
	if action := strings.TrimSpace(c.QueryParam("action")); action != "" {
		db = db.Where("action = ?", action)
	}
	if resource := strings.TrimSpace(c.QueryParam("resource")); resource != "" {
		db = db.Where("resource = ?", resource)
	}
	actorID, err := queryID(c, "actor_id")
	if err != nil {
		return err
	}
	if actorID != nil {
		db = db.Where("actor_id = ?", *actorID)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return apperror.Internal(err)
	}
	var logs []model.AuditLog
	if err := db.Order("id DESC").Limit(limit).Offset(offset).Find(&logs).Error; err != nil {
		return apperror.Internal(err)
	}

	return c.JSON(http.StatusOK, ListResponse[AuditLogResponse]{
		Items:  mapSlice(logs, newAuditLogResponse),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}
