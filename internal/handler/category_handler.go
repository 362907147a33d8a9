package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/audit"
	"github.com/suteetoe/restohub/internal/middleware"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/pkg/apperror"
	"github.com/suteetoe/restohub/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CategoryHandler manages categories of the resolved restaurant.
type CategoryHandler struct {
	db    *gorm.DB
	audit audit.Recorder
}

func NewCategoryHandler(db *gorm.DB, rec audit.Recorder) *CategoryHandler {
	return &CategoryHandler{db: db, audit: rec}
}

// CategoryRequest defines the structure for category creation/update requests
type CategoryRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

// List retrieves all categories of the restaurant
func (h *CategoryHandler) List(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}

	var categories []model.Category
	if err := h.db.WithContext(c.Request().Context()).
		Scopes(model.ForRestaurant(restaurantID)).
		Order("name ASC").
		Find(&categories).Error; err != nil {
		return apperror.Internal(err)
	}

	logger.FromEcho(c).Debug("Categories retrieved", zap.Int("count", len(categories)))
	return c.JSON(http.StatusOK, mapSlice(categories, newCategoryResponse))
}

// Get retrieves a specific category by ID
func (h *CategoryHandler) Get(c echo.Context) error {
	category, err := h.find(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newCategoryResponse(category))
}

// Create adds a new category
func (h *CategoryHandler) Create(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}

	var req CategoryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	category := model.Category{
		RestaurantID: restaurantID,
		Name:         strings.TrimSpace(req.Name),
		Description:  req.Description,
	}
	if err := h.db.WithContext(c.Request().Context()).Create(&category).Error; err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("category with this name already exists")
		}
		return apperror.Internal(err)
	}

	logger.FromEcho(c).Info("Category created", zap.Uint("category_id", category.ID), zap.String("name", category.Name))
	recordAudit(c, h.audit, "category.create", "category", category.ID, req)
	return c.JSON(http.StatusCreated, newCategoryResponse(&category))
}

// Update renames or redescribes a category
func (h *CategoryHandler) Update(c echo.Context) error {
	category, err := h.find(c)
	if err != nil {
		return err
	}

	var req CategoryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	if err := h.db.Model(category).Updates(map[string]interface{}{
		"name":        strings.TrimSpace(req.Name),
		"description": req.Description,
	}).Error; err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("category with this name already exists")
		}
		return apperror.Internal(err)
	}

	recordAudit(c, h.audit, "category.update", "category", category.ID, req)
	return c.JSON(http.StatusOK, newCategoryResponse(category))
}

// Delete removes a category. Ingredients in it become uncategorized.
func (h *CategoryHandler) Delete(c echo.Context) error {
	category, err := h.find(c)
	if err != nil {
		return err
	}

	err = h.db.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Ingredient{}).
			Scopes(model.ForRestaurant(category.RestaurantID)).
			Where("category_id = ?", category.ID).
			Update("category_id", nil).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(category).Error
	})
	if err != nil {
		return apperror.Internal(err)
	}

	recordAudit(c, h.audit, "category.delete", "category", category.ID, map[string]string{"name": category.Name})
	return c.NoContent(http.StatusNoContent)
}

func (h *CategoryHandler) find(c echo.Context) (*model.Category, error) {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return nil, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}

	var category model.Category
	if err := h.db.WithContext(c.Request().Context()).
		Scopes(model.ForRestaurant(restaurantID)).
		First(&category, id).Error; err != nil {
		return nil, notFoundOr(err, "category not found")
	}
	return &category, nil
}
