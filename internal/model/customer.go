package model

import (
	"time"

	"gorm.io/gorm"
)

// Customer is a guest known to one restaurant.
type Customer struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	RestaurantID uint           `json:"restaurant_id" gorm:"not null;index;uniqueIndex:idx_customer_phone"`
	Name         string         `json:"name" gorm:"type:varchar(100)"`
	Phone        string         `json:"phone" gorm:"type:varchar(30);not null;uniqueIndex:idx_customer_phone"`
	Email        string         `json:"email" gorm:"type:varchar(100)"`
	Points       int            `json:"points" gorm:"not null;default:0"`
	VisitCount   int            `json:"visit_count" gorm:"not null;default:0"`
	LastVisitAt  *time.Time     `json:"last_visit_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// Coupon states
const (
	CouponActive   = "active"
	CouponRedeemed = "redeemed"
	CouponExpired  = "expired"
)

// Coupon discount types
const (
	DiscountPercent = "percent"
	DiscountFixed   = "fixed"
)

// Coupon is a loyalty reward. Codes are unique per restaurant.
type Coupon struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	RestaurantID  uint       `json:"restaurant_id" gorm:"not null;index;uniqueIndex:idx_coupon_code"`
	CustomerID    *uint      `json:"customer_id,omitempty" gorm:"index"`
	Code          string     `json:"code" gorm:"type:varchar(40);not null;uniqueIndex:idx_coupon_code"`
	DiscountType  string     `json:"discount_type" gorm:"type:varchar(20);not null"`
	DiscountValue int64      `json:"discount_value" gorm:"not null"`
	Status        string     `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	RedeemedAt    *time.Time `json:"redeemed_at,omitempty"`
	RedeemedBy    *uint      `json:"redeemed_by,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Expired reports whether an active coupon is past its expiry at now.
func (c *Coupon) Expired(now time.Time) bool {
	return c.ExpiresAt != nil && !c.ExpiresAt.After(now)
}
