// Package events fans order changes out to NATS subscribers (kitchen displays, analytics).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/suteetoe/restohub/pkg/logger"
	"go.uber.org/zap"
)

// Order event names
const (
	OrderCreated       = "created"
	OrderStatusChanged = "status_changed"
)

// OrderEvent is the normalized payload published for every order change.
type OrderEvent struct {
	ID           string    `json:"id"`
	Event        string    `json:"event"`
	RestaurantID uint      `json:"restaurant_id"`
	OrderID      uint      `json:"order_id"`
	Source       string    `json:"source"`
	ExternalID   string    `json:"external_id,omitempty"`
	Status       string    `json:"status"`
	TotalCents   int64     `json:"total_cents"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Publisher delivers order events. Publishing is best effort.
type Publisher interface {
	PublishOrder(ctx context.Context, e OrderEvent)
}

type conn interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher publishes to <prefix>.orders.<event>.
type NATSPublisher struct {
	nc     conn
	prefix string
}

// Connect dials NATS with reconnect handling and returns a publisher and the connection to close.
func Connect(url, name, prefix string) (*NATSPublisher, *nats.Conn, error) {
	log := logger.GetLogger()
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("Disconnected from NATS", zap.Error(err))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info("Reconnected to NATS")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}
	return NewNATSPublisher(nc, prefix), nc, nil
}

func NewNATSPublisher(nc conn, prefix string) *NATSPublisher {
	return &NATSPublisher{nc: nc, prefix: prefix}
}

// Subject returns the subject an event is published on.
func (p *NATSPublisher) Subject(event string) string {
	if p.prefix == "" {
		return "orders." + event
	}
	return p.prefix + ".orders." + event
}

func (p *NATSPublisher) PublishOrder(ctx context.Context, e OrderEvent) {
	log := logger.FromContext(ctx)
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	data, err := json.Marshal(e)
	if err != nil {
		log.Error("Failed to marshal order event", zap.Error(err))
		return
	}
	subject := p.Subject(e.Event)
	if err := p.nc.Publish(subject, data); err != nil {
		log.Warn("Failed to publish order event",
			zap.String("subject", subject),
			zap.Uint("order_id", e.OrderID),
			zap.Error(err))
		return
	}
	log.Debug("Published order event", zap.String("subject", subject), zap.Uint("order_id", e.OrderID))
}

// Nop drops events; used when NATS_URL is unset.
type Nop struct{}

func (Nop) PublishOrder(context.Context, OrderEvent) {}
