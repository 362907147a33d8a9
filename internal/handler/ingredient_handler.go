package handler

import (
	"errors"
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

// IngredientHandler manages ingredients and their stock movements.
type IngredientHandler struct {
	db    *gorm.DB
	audit audit.Recorder
}

func NewIngredientHandler(db *gorm.DB, rec audit.Recorder) *IngredientHandler {
	return &IngredientHandler{db: db, audit: rec}
}

type IngredientRequest struct {
	CategoryID *uint  `json:"category_id"`
	Name       string `json:"name" validate:"required,max=100"`
	Unit       string `json:"unit" validate:"required,max=20"`
	MinStock   int64  `json:"min_stock" validate:"gte=0"`
	CostCents  int64  `json:"cost_cents" validate:"gte=0"`
}

// StockMovementRequest moves stock. For adjustments, quantity is the counted balance.
type StockMovementRequest struct {
	Type     string `json:"type" validate:"required,oneof=in out adjustment"`
	Quantity int64  `json:"quantity" validate:"gte=0"`
	Reason   string `json:"reason" validate:"max=255"`
}

// List returns the restaurant's ingredients. low_stock=true keeps only those at or below minimum.
func (h *IngredientHandler) List(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}

	db := h.db.WithContext(c.Request().Context()).Scopes(model.ForRestaurant(restaurantID))
	if c.QueryParam("low_stock") == "true" {
		db = db.Where("min_stock > 0 AND current_stock <= min_stock")
	}
	categoryID, err := queryID(c, "category_id")
	if err != nil {
		return err
	}
	if categoryID != nil {
		db = db.Where("category_id = ?", *categoryID)
	}

	var ingredients []model.Ingredient
	if err := db.Order("name ASC").Find(&ingredients).Error; err != nil {
		return apperror.Internal(err)
	}
	return c.JSON(http.StatusOK, mapSlice(ingredients, newIngredientResponse))
}

func (h *IngredientHandler) Get(c echo.Context) error {
	ingredient, err := h.find(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newIngredientResponse(ingredient))
}

func (h *IngredientHandler) Create(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}

	var req IngredientRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.checkCategory(c, restaurantID, req.CategoryID); err != nil {
		return err
	}

	ingredient := model.Ingredient{
		RestaurantID: restaurantID,
		CategoryID:   req.CategoryID,
		Name:         strings.TrimSpace(req.Name),
		Unit:         req.Unit,
		MinStock:     req.MinStock,
		CostCents:    req.CostCents,
	}
	if err := h.db.WithContext(c.Request().Context()).Create(&ingredient).Error; err != nil {
		return apperror.Internal(err)
	}

	recordAudit(c, h.audit, "ingredient.create", "ingredient", ingredient.ID, req)
	return c.JSON(http.StatusCreated, newIngredientResponse(&ingredient))
}

// Update edits ingredient details. Stock only changes through movements.
func (h *IngredientHandler) Update(c echo.Context) error {
	ingredient, err := h.find(c)
	if err != nil {
		return err
	}

	var req IngredientRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.checkCategory(c, ingredient.RestaurantID, req.CategoryID); err != nil {
		return err
	}

	ingredient.CategoryID = req.CategoryID
	ingredient.Name = strings.TrimSpace(req.Name)
	ingredient.Unit = req.Unit
	ingredient.MinStock = req.MinStock
	ingredient.CostCents = req.CostCents
	if err := h.db.Model(ingredient).
		Select("category_id", "name", "unit", "min_stock", "cost_cents").
		Updates(ingredient).Error; err != nil {
		return apperror.Internal(err)
	}

	recordAudit(c, h.audit, "ingredient.update", "ingredient", ingredient.ID, req)
	return c.JSON(http.StatusOK, newIngredientResponse(ingredient))
}

func (h *IngredientHandler) Delete(c echo.Context) error {
	ingredient, err := h.find(c)
	if err != nil {
		return err
	}
	if err := h.db.Delete(ingredient).Error; err != nil {
		return apperror.Internal(err)
	}
	recordAudit(c, h.audit, "ingredient.delete", "ingredient", ingredient.ID, map[string]string{"name": ingredient.Name})
	return c.NoContent(http.StatusNoContent)
}

// ListMovements returns the ingredient's movements, newest first.
func (h *IngredientHandler) ListMovements(c echo.Context) error {
	ingredient, err := h.find(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)

	var movements []model.StockMovement
	if err := h.db.WithContext(c.Request().Context()).
		Scopes(model.ForRestaurant(ingredient.RestaurantID)).
		Where("ingredient_id = ?", ingredient.ID).
		Order("id DESC").Limit(limit).Offset(offset).
		Find(&movements).Error; err != nil {
		return apperror.Internal(err)
	}
	return c.JSON(http.StatusOK, mapSlice(movements, newStockMovementResponse))
}

var errInsufficientStock = errors.New("insufficient stock")

// CreateMovement records a movement and updates the balance in one transaction. Outbound
// movements larger than the current stock are rejected.
func (h *IngredientHandler) CreateMovement(c echo.Context) error {
	p, err := middleware.MustPrincipal(c)
	if err != nil {
		return err
	}
	ingredient, err := h.find(c)
	if err != nil {
		return err
	}

	var req StockMovementRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.Type != model.MovementAdjustment && req.Quantity == 0 {
		return apperror.Validation("quantity must be greater than 0")
	}

	movement := model.StockMovement{
		RestaurantID: ingredient.RestaurantID,
		IngredientID: ingredient.ID,
		UserID:       p.ID,
		Type:         req.Type,
		Quantity:     req.Quantity,
		Reason:       req.Reason,
	}

	err = h.db.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&model.Ingredient{}).Where("id = ?", ingredient.ID).Scopes(model.ForRestaurant(ingredient.RestaurantID))
		var res *gorm.DB
		switch req.Type {
		case model.MovementIn:
			res = q.Update("current_stock", gorm.Expr("current_stock + ?", req.Quantity))
		case model.MovementOut:
			res = q.Where("current_stock >= ?", req.Quantity).Update("current_stock", gorm.Expr("current_stock - ?", req.Quantity))
		default:
			res = q.Update("current_stock", req.Quantity)
		}
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errInsufficientStock
		}

		if err := tx.Select("current_stock", "min_stock").First(ingredient, ingredient.ID).Error; err != nil {
			return err
		}
		movement.BalanceAfter = ingredient.CurrentStock
		return tx.Create(&movement).Error
	})
	if errors.Is(err, errInsufficientStock) {
		return apperror.BadRequest("insufficient stock")
	}
	if err != nil {
		return apperror.Internal(err)
	}

	log := logger.FromEcho(c)
	log.Info("Stock movement recorded",
		zap.Uint("ingredient_id", ingredient.ID),
		zap.String("type", movement.Type),
		zap.Int64("quantity", movement.Quantity),
		zap.Int64("balance_after", movement.BalanceAfter))
	if ingredient.LowStock() {
		log.Warn("Ingredient at or below minimum stock", zap.Uint("ingredient_id", ingredient.ID))
	}
	recordAudit(c, h.audit, "stock.movement", "ingredient", ingredient.ID, req)

	return c.JSON(http.StatusCreated, newStockMovementResponse(&movement))
}

func (h *IngredientHandler) find(c echo.Context) (*model.Ingredient, error) {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return nil, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}

	var ingredient model.Ingredient
	if err := h.db.WithContext(c.Request().Context()).
		Scopes(model.ForRestaurant(restaurantID)).
		First(&ingredient, id).Error; err != nil {
		return nil, notFoundOr(err, "ingredient not found")
	}
	return &ingredient, nil
}

func (h *IngredientHandler) checkCategory(c echo.Context, restaurantID uint, categoryID *uint) error {
	if categoryID == nil {
		return nil
	}
	var count int64
	if err := h.db.WithContext(c.Request().Context()).Model(&model.Category{}).
		Scopes(model.ForRestaurant(restaurantID)).
		Where("id = ?", *categoryID).
		Count(&count).Error; err != nil {
		return apperror.Internal(err)
	}
	if count == 0 {
		return apperror.BadRequest("category not found")
	}
	return nil
}
