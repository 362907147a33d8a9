package model

import (
	"time"

	"gorm.io/datatypes"
)

// Order statuses
const (
	OrderPending   = "pending"
	OrderAccepted  = "accepted"
	OrderPreparing = "preparing"
	OrderReady     = "ready"
	OrderDelivered = "delivered"
	OrderCanceled  = "canceled"
)

// Order sources
const (
	SourceManual = "manual"
)

var orderTransitions = map[string][]string{
	OrderPending:   {OrderAccepted, OrderCanceled},
	OrderAccepted:  {OrderPreparing, OrderCanceled},
	OrderPreparing: {OrderReady, OrderCanceled},
	OrderReady:     {OrderDelivered, OrderCanceled},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidOrderStatus reports whether s is a known status.
func ValidOrderStatus(s string) bool {
	switch s {
	case OrderPending, OrderAccepted, OrderPreparing, OrderReady, OrderDelivered, OrderCanceled:
		return true
	}
	return false
}

// Order is a customer order, either manual or received from a delivery platform.
type Order struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	RestaurantID uint           `json:"restaurant_id" gorm:"not null;index;uniqueIndex:idx_order_external"`
	CustomerID   *uint          `json:"customer_id,omitempty" gorm:"index"`
	Source       string         `json:"source" gorm:"type:varchar(30);not null;default:'manual';uniqueIndex:idx_order_external"`
	ExternalID   *string        `json:"external_id,omitempty" gorm:"type:varchar(100);uniqueIndex:idx_order_external"`
	Status       string         `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	TotalCents   int64          `json:"total_cents" gorm:"not null;default:0"`
	Notes        string         `json:"notes" gorm:"type:text"`
	RawPayload   datatypes.JSON `json:"-"`
	CreatedAt    time.Time      `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time      `json:"updated_at"`

	Items []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	ID             uint   `json:"id" gorm:"primaryKey"`
	OrderID        uint   `json:"order_id" gorm:"not null;index"`
	Name           string `json:"name" gorm:"type:varchar(150);not null"`
	Quantity       int    `json:"quantity" gorm:"not null"`
	UnitPriceCents int64  `json:"unit_price_cents" gorm:"not null"`
}
