package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/restohub/internal/authz"
	"github.com/suteetoe/restohub/internal/events"
	"github.com/suteetoe/restohub/internal/handler"
	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
}

func (p *recordingPublisher) PublishOrder(_ context.Context, e events.OrderEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Event)
	}
	return out
}

func signed(t *testing.T, secret string, payload interface{}) ([]byte, reqOpt) {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return raw, withHeader(handler.HeaderWebhookSignature, handler.Sign(secret, raw))
}

func TestWebhookUpsertsOrder(t *testing.T) {
	pub := &recordingPublisher{}
	h := newHarnessWith(t, testConfig(), pub)
	owner := testutil.CreateUser(t, h.db, "owner@example.com")
	r := testutil.CreateRestaurant(t, h.db, "Alpha", owner, authz.FeatureIntegrations)

	rec := h.do(http.MethodPost, "/api/integrations", h.token(owner), map[string]string{"platform": "GrabFood", "store_ref": "store-9"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	integration := decode[handler.IntegrationCreatedResponse](t, rec)
	require.Len(t, integration.Secret, 64)
	assert.Equal(t, "grabfood", integration.Platform)

	rec = h.do(http.MethodPost, "/api/integrations", h.token(owner), map[string]string{"platform": "grabfood"})
	require.Equal(t, http.StatusConflict, rec.Code)

	placed := map[string]interface{}{
		"event":         handler.WebhookOrderPlaced,
		"restaurant_id": r.ID,
		"external_id":   "GF-1001",
		"items":         []map[string]interface{}{{"name": "Pho", "quantity": 2, "unit_price_cents": 1100}},
	}
	body, sig := signed(t, integration.Secret, placed)
	rec = h.do(http.MethodPost, "/api/webhooks/grabfood", "", body, sig)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[handler.WebhookResponse](t, rec)
	assert.True(t, created.Created)

	var order model.Order
	require.NoError(t, h.db.Preload("Items").First(&order, created.OrderID).Error)
	assert.Equal(t, "grabfood", order.Source)
	assert.EqualValues(t, 2200, order.TotalCents)
	assert.Len(t, order.Items, 1)

	updated := map[string]interface{}{
		"event":         handler.WebhookOrderUpdated,
		"restaurant_id": r.ID,
		"external_id":   "GF-1001",
		"status":        model.OrderAccepted,
	}
	body, sig = signed(t, integration.Secret, updated)
	rec = h.do(http.MethodPost, "/api/webhooks/grabfood", "", body, sig)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.OrderAccepted, decode[handler.WebhookResponse](t, rec).Status)

	// A replayed placement does not create a second order.
	body, sig = signed(t, integration.Secret, placed)
	rec = h.do(http.MethodPost, "/api/webhooks/grabfood", "", body, sig)
	require.Equal(t, http.StatusOK, rec.Code)
	var count int64
	require.NoError(t, h.db.Model(&model.Order{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	assert.Equal(t, []string{events.OrderCreated, events.OrderStatusChanged, events.OrderStatusChanged}, pub.names())
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := newHarness(t)
	owner := testutil.CreateUser(t, h.db, "owner@example.com")
	r := testutil.CreateRestaurant(t, h.db, "Alpha", owner, authz.FeatureIntegrations)
	require.NoError(t, h.db.Create(&model.Integration{RestaurantID: r.ID, Platform: "lineman", Secret: "right-secret-0123456789", Enabled: true}).Error)
	payload := map[string]interface{}{"event": handler.WebhookOrderPlaced, "restaurant_id": r.ID, "external_id": "LM-1"}

	body, sig := signed(t, "wrong-secret-0123456789", payload)
	rec := h.do(http.MethodPost, "/api/webhooks/lineman", "", body, sig)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body, _ = signed(t, "right-secret-0123456789", payload)
	rec = h.do(http.MethodPost, "/api/webhooks/lineman", "", body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = h.do(http.MethodPost, "/api/webhooks/unknown", "", body)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var count int64
	require.NoError(t, h.db.Model(&model.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWebhookNeedsIntegrationsModule(t *testing.T) {
	h := newHarness(t)
	owner := testutil.CreateUser(t, h.db, "owner@example.com")
	r := testutil.CreateRestaurant(t, h.db, "Alpha", owner)
	secret := "module-secret-0123456789"
	require.NoError(t, h.db.Create(&model.Integration{RestaurantID: r.ID, Platform: "grabfood", Secret: secret, Enabled: true}).Error)

	body, sig := signed(t, secret, map[string]interface{}{
		"event": handler.WebhookOrderPlaced, "restaurant_id": r.ID, "external_id": fmt.Sprint("GF-", 1),
	})
	rec := h.do(http.MethodPost, "/api/webhooks/grabfood", "", body, sig)

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "module_not_enabled", errorBody(t, rec).Code)
}

func TestIntegrationsAreOwnerOnly(t *testing.T) {
	h := newHarness(t)
	owner := testutil.CreateUser(t, h.db, "owner@example.com")
	manager := testutil.CreateUser(t, h.db, "manager@example.com")
	r := testutil.CreateRestaurant(t, h.db, "Alpha", owner, authz.FeatureIntegrations)
	testutil.AddMember(t, h.db, r, manager, model.RoleManager, false)

	rec := h.do(http.MethodGet, "/api/integrations", h.token(manager), nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
