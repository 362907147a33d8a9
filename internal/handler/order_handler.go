package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/audit"
	"github.com/suteetoe/restohub/internal/events"
	"github.com/suteetoe/restohub/internal/middleware"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/pkg/apperror"
	"github.com/suteetoe/restohub/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderHandler manages manual orders and the status of every order.
type OrderHandler struct {
	db     *gorm.DB
	audit  audit.Recorder
	events events.Publisher
	now    func() time.Time
}

func NewOrderHandler(db *gorm.DB, rec audit.Recorder, pub events.Publisher) *OrderHandler {
	return &OrderHandler{db: db, audit: rec, events: pub, now: time.Now}
}

type OrderItemRequest struct {
	Name           string `json:"name" validate:"required,max=150"`
	Quantity       int    `json:"quantity" validate:"required,gt=0"`
	UnitPriceCents int64  `json:"unit_price_cents" validate:"gte=0"`
}

type OrderRequest struct {
	CustomerID *uint              `json:"customer_id"`
	Notes      string             `json:"notes" validate:"max=1000"`
	Items      []OrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type OrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

func (h *OrderHandler) List(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)

	db := h.db.WithContext(c.Request().Context()).Model(&model.Order{}).Scopes(model.ForRestaurant(restaurantID))
	if status := c.QueryParam("status"); status != "" {
		db = db.Where("status = ?", status)
	}
	if source := c.QueryParam("source"); source != "" {
		db = db.Where("source = ?", source)
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return apperror.Internal(err)
	}
	var orders []model.Order
	if err := db.Preload("Items").Order("id DESC").Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		return apperror.Internal(err)
	}

	return c.JSON(http.StatusOK, ListResponse[OrderResponse]{
		Items:  mapSlice(orders, newOrderResponse),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *OrderHandler) Get(c echo.Context) error {
	order, err := h.find(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newOrderResponse(order))
}

// Create records a manual order in pending state.
func (h *OrderHandler) Create(c echo.Context) error {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return err
	}

	var req OrderRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
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

	order := model.Order{
		RestaurantID: restaurantID,
		CustomerID:   req.CustomerID,
		Source:       model.SourceManual,
		Status:       model.OrderPending,
		Notes:        req.Notes,
	}
	for _, it := range req.Items {
		order.Items = append(order.Items, model.OrderItem{Name: it.Name, Quantity: it.Quantity, UnitPriceCents: it.UnitPriceCents})
		order.TotalCents += int64(it.Quantity) * it.UnitPriceCents
	}

	if err := h.db.WithContext(c.Request().Context()).Create(&order).Error; err != nil {
		return apperror.Internal(err)
	}

	logger.FromEcho(c).Info("Order created", zap.Uint("order_id", order.ID), zap.Int64("total_cents", order.TotalCents))
	recordAudit(c, h.audit, "order.create", "order", order.ID, map[string]interface{}{"total_cents": order.TotalCents, "items": len(order.Items)})
	h.events.PublishOrder(c.Request().Context(), orderEvent(events.OrderCreated, &order))

	return c.JSON(http.StatusCreated, newOrderResponse(&order))
}

// UpdateStatus moves an order along pending, accepted, preparing, ready, delivered.
// Any non-final order may be canceled. Delivering an order credits its customer.
func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	order, err := h.find(c)
	if err != nil {
		return err
	}

	var req OrderStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if !model.ValidOrderStatus(req.Status) {
		return apperror.Validation("unknown order status")
	}
	if !model.CanTransition(order.Status, req.Status) {
		return apperror.BadRequest(fmt.Sprintf("cannot move order from %s to %s", order.Status, req.Status))
	}

	previous := order.Status
	err = h.db.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		return applyOrderStatus(tx, order, req.Status, h.now())
	})
	if err != nil {
		return err
	}

	logger.FromEcho(c).Info("Order status changed",
		zap.Uint("order_id", order.ID),
		zap.String("from", previous),
		zap.String("to", order.Status))
	recordAudit(c, h.audit, "order.status_change", "order", order.ID, map[string]string{"from": previous, "to": order.Status})
	h.events.PublishOrder(c.Request().Context(), orderEvent(events.OrderStatusChanged, order))

	return c.JSON(http.StatusOK, newOrderResponse(order))
}

// applyOrderStatus persists a status change guarded on the previous status.
func applyOrderStatus(tx *gorm.DB, order *model.Order, status string, now time.Time) error {
	res := tx.Model(order).Where("status = ?", order.Status).Update("status", status)
	if res.Error != nil {
		return apperror.Internal(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.Conflict("order was modified concurrently")
	}
	order.Status = status

	if status == model.OrderDelivered && order.CustomerID != nil {
		if err := tx.Model(&model.Customer{}).
			Scopes(model.ForRestaurant(order.RestaurantID)).
			Where("id = ?", *order.CustomerID).
			Updates(map[string]interface{}{
				"visit_count":   gorm.Expr("visit_count + 1"),
				"points":        gorm.Expr("points + ?", order.TotalCents/100),
				"last_visit_at": now,
			}).Error; err != nil {
			return apperror.Internal(err)
		}
	}
	return nil
}

func (h *OrderHandler) find(c echo.Context) (*model.Order, error) {
	restaurantID, err := middleware.RestaurantID(c)
	if err != nil {
		return nil, err
	}
	id, err := paramID(c, "id")
	if err != nil {
		return nil, err
	}

	var order model.Order
	if err := h.db.WithContext(c.Request().Context()).
		Scopes(model.ForRestaurant(restaurantID)).
		Preload("Items").
		First(&order, id).Error; err != nil {
		return nil, notFoundOr(err, "order not found")
	}
	return &order, nil
}

func orderEvent(name string, o *model.Order) events.OrderEvent {
	e := events.OrderEvent{
		Event:        name,
		RestaurantID: o.RestaurantID,
		OrderID:      o.ID,
		Source:       o.Source,
		Status:       o.Status,
		TotalCents:   o.TotalCents,
	}
	if o.ExternalID != nil {
		e.ExternalID = *o.ExternalID
	}
	return e
}
