package handler

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/audit"
	"github.com/suteetoe/restohub/internal/middleware"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/pkg/apperror"
	"gorm.io/gorm"
)

// IntegrationHandler manages delivery-platform links and their webhook secrets.
type IntegrationHandler struct {
	db    *gorm.DB
	audit audit.Recorder
}

func NewIntegrationHandler(db *gorm.DB, rec audit.Recorder) *IntegrationHandler {
	return &IntegrationHandler{db: db, audit: rec}
}

type IntegrationRequest struct {
	Platform string `json:"platform" validate:"required,alphanum,max=30"`
	StoreRef string `json:"store_ref" validate:"max=100"`
	Secret   string `json:"secret" validate:"omitempty,min=16,max=128"`
}

// IntegrationCreatedResponse carries the webhook secret. It is shown only once.
type IntegrationCreatedResponse struct {
	IntegrationResponse
	Secret string `json:"secret"`
}

func (h *IntegrationHandler) List(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}

	var integrations []model.Integration
	if err := h.db.WithContext(c.Request().Context()).
		Scopes(model.ForRestaurant(restaurantID)).
		Order("platform ASC").
		Find(&integrations).Error; err != nil {
		return apperror.Internal(err)
	}
	return c.JSON(http.StatusOK, mapSlice(integrations, newIntegrationResponse))
}

// Create links a platform. A signing secret is generated when none is supplied.
func (h *IntegrationHandler) Create(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}

	var req IntegrationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	secret := req.Secret
	if secret == "" {
		if secret, err = generateSecret(); err != nil {
			return apperror.Internal(err)
		}
	}

	integration := model.Integration{
		RestaurantID: restaurantID,
		Platform:     strings.ToLower(req.Platform),
		StoreRef:     req.StoreRef,
		Secret:       secret,
		Enabled:      true,
	}
	if err := h.db.WithContext(c.Request().Context()).Create(&integration).Error; err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("integration for this platform already exists")
		}
		return apperror.Internal(err)
	}

	recordAudit(c, h.audit, "integration.create", "integration", integration.ID, map[string]string{
		"platform":  integration.Platform,
		"store_ref": integration.StoreRef,
	})
	return c.JSON(http.StatusCreated, IntegrationCreatedResponse{
		IntegrationResponse: newIntegrationResponse(&integration),
		Secret:              secret,
	})
}

func (h *IntegrationHandler) Delete(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var integration model.Integration
	if err := h.db.WithContext(c.Request().Context()).
		Scopes(model.ForRestaurant(restaurantID)).
		First(&integration, id).Error; err != nil {
		return notFoundOr(err, "integration not found")
	}
	if err := h.db.Delete(&integration).Error; err != nil {
		return apperror.Internal(err)
	}

	recordAudit(c, h.audit, "integration.delete", "integration", integration.ID, map[string]string{"platform": integration.Platform})
	return c.NoContent(http.StatusNoContent)
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
