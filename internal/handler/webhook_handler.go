package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/restohub/internal/audit"
	"github.com/suteetoe/restohub/internal/authz"
	"github.com/suteetoe/restohub/internal/events"
	"github.com/suteetoe/restohub/internal/middleware"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/pkg/apperror"
	"github.com/suteetoe/restohub/pkg/logger"
	"github.com/suteetoe/restohub/prometheus"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// HeaderWebhookSignature carries "sha256=<hex HMAC-SHA256 of the raw body>".
const HeaderWebhookSignature = "X-Webhook-Signature"

const maxWebhookBody = 1 << 20

// Webhook event names
const (
	WebhookOrderPlaced  = "order.placed"
	WebhookOrderUpdated = "order.updated"
)

// WebhookHandler receives order events from delivery platforms.
type WebhookHandler struct {
	db         *gorm.DB
	authorizer *authz.Authorizer
	audit      audit.Recorder
	events     events.Publisher
	now        func() time.Time
}

func NewWebhookHandler(db *gorm.DB, authorizer *authz.Authorizer, rec audit.Recorder, pub events.Publisher) *WebhookHandler {
	return &WebhookHandler{db: db, authorizer: authorizer, audit: rec, events: pub, now: time.Now}
}

// WebhookOrderEvent is the normalized order payload platforms post.
type WebhookOrderEvent struct {
	Event        string             `json:"event" validate:"required,oneof=order.placed order.updated"`
	RestaurantID uint               `json:"restaurant_id" validate:"required"`
	ExternalID   string             `json:"external_id" validate:"required,max=100"`
	Status       string             `json:"status"`
	TotalCents   int64              `json:"total_cents" validate:"gte=0"`
	Notes        string             `json:"notes" validate:"max=1000"`
	Items        []OrderItemRequest `json:"items" validate:"dive"`
}

type WebhookResponse struct {
	OrderID uint   `json:"order_id"`
	Status  string `json:"status"`
	Created bool   `json:"created"`
}

// Receive verifies the signature with the integration secret of the restaurant named in
// the payload, then creates or updates the order keyed by (restaurant, platform, external_id).
func (h *WebhookHandler) Receive(c echo.Context) error {
	platform := strings.ToLower(c.Param("platform"))
	log := logger.FromEcho(c).With(zap.String("platform", platform))

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody+1))
	if err != nil {
		return apperror.BadRequest("unreadable request body")
	}
	if len(body) > maxWebhookBody {
		prometheus.RecordWebhookEvent(platform, "too_large")
		return apperror.BadRequest("payload too large")
	}

	var evt WebhookOrderEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		prometheus.RecordWebhookEvent(platform, "malformed")
		return apperror.BadRequest("invalid payload")
	}
	if err := c.Validate(&evt); err != nil {
		prometheus.RecordWebhookEvent(platform, "malformed")
		return err
	}

	var integration model.Integration
	err = h.db.WithContext(c.Request().Context()).
		Scopes(model.ForRestaurant(evt.RestaurantID)).
		Where("platform = ? AND enabled = ?", platform, true).
		First(&integration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		prometheus.RecordWebhookEvent(platform, "unknown_integration")
		return apperror.NotFound("integration not found")
	}
	if err != nil {
		return apperror.Internal(err)
	}

	if !VerifySignature(integration.Secret, body, c.Request().Header.Get(HeaderWebhookSignature)) {
		log.Warn("Webhook signature mismatch", zap.Uint("restaurant_id", evt.RestaurantID))
		prometheus.RecordWebhookEvent(platform, "bad_signature")
		return apperror.Unauthorized("invalid webhook signature")
	}

	var restaurant model.Restaurant
	if err := h.db.WithContext(c.Request().Context()).First(&restaurant, evt.RestaurantID).Error; err != nil {
		return notFoundOr(err, "restaurant not found")
	}
	if restaurant.SubscriptionLapsed(h.now()) {
		prometheus.RecordWebhookEvent(platform, "subscription")
		return apperror.PaymentRequired("subscription is not active")
	}
	if !h.authorizer.Enabled(&restaurant, authz.FeatureIntegrations) {
		prometheus.RecordWebhookEvent(platform, "module_disabled")
		return apperror.ModuleNotEnabled(authz.FeatureIntegrations)
	}

	order, created, err := h.upsertOrder(c, platform, &evt, body)
	if err != nil {
		prometheus.RecordWebhookEvent(platform, "rejected")
		return err
	}

	prometheus.RecordWebhookEvent(platform, "accepted")
	log.Info("Webhook order processed",
		zap.Uint("restaurant_id", restaurant.ID),
		zap.Uint("order_id", order.ID),
		zap.String("external_id", evt.ExternalID),
		zap.Bool("created", created))

	rid := restaurant.ID
	h.audit.Record(c.Request().Context(), audit.Entry{
		RestaurantID: &rid,
		Action:       "webhook." + evt.Event,
		Resource:     "order",
		ResourceID:   uintString(order.ID),
		Payload:      map[string]string{"platform": platform, "external_id": evt.ExternalID},
		IPAddress:    c.RealIP(),
		RequestID:    middleware.RequestID(c),
	})
	name := events.OrderStatusChanged
	if created {
		name = events.OrderCreated
	}
	h.events.PublishOrder(c.Request().Context(), orderEvent(name, order))

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.JSON(status, WebhookResponse{OrderID: order.ID, Status: order.Status, Created: created})
}

func (h *WebhookHandler) upsertOrder(c echo.Context, platform string, evt *WebhookOrderEvent, raw []byte) (*model.Order, bool, error) {
	var (
		order   model.Order
		created bool
	)
	err := h.db.WithContext(c.Request().Context()).Transaction(func(tx *gorm.DB) error {
		err := tx.Scopes(model.ForRestaurant(evt.RestaurantID)).
			Where("source = ? AND external_id = ?", platform, evt.ExternalID).
			First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if evt.Event != WebhookOrderPlaced {
				return apperror.NotFound("order not found")
			}
			externalID := evt.ExternalID
			order = model.Order{
				RestaurantID: evt.RestaurantID,
				Source:       platform,
				ExternalID:   &externalID,
				Status:       model.OrderPending,
				TotalCents:   evt.TotalCents,
				Notes:        evt.Notes,
				RawPayload:   datatypes.JSON(raw),
			}
			var computed int64
			for _, it := range evt.Items {
				order.Items = append(order.Items, model.OrderItem{Name: it.Name, Quantity: it.Quantity, UnitPriceCents: it.UnitPriceCents})
				computed += int64(it.Quantity) * it.UnitPriceCents
			}
			if order.TotalCents == 0 {
				order.TotalCents = computed
			}
			created = true
			return tx.Create(&order).Error
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&order).Update("raw_payload", datatypes.JSON(raw)).Error; err != nil {
			return err
		}
		if evt.Status == "" || evt.Status == order.Status {
			return nil
		}
		if !model.ValidOrderStatus(evt.Status) {
			return apperror.Validation("unknown order status")
		}
		if !model.CanTransition(order.Status, evt.Status) {
			return apperror.Conflict("order cannot move from " + order.Status + " to " + evt.Status)
		}
		return applyOrderStatus(tx, &order, evt.Status, h.now())
	})
	if err != nil {
		if apperror.From(err) != nil {
			return nil, false, err
		}
		if isUniqueViolation(err) {
			return nil, false, apperror.Conflict("order already received")
		}
		return nil, false, apperror.Internal(err)
	}
	return &order, created, nil
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature compares header against the HMAC of body in constant time.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" || !strings.HasPrefix(header, "sha256=") {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, "sha256="))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
