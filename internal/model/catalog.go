package model

import (
	"time"

	"gorm.io/gorm"
)

// Category groups menu items and ingredients. Names are unique per restaurant.
type Category struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	RestaurantID uint           `json:"restaurant_id" gorm:"not null;uniqueIndex:idx_category_name"`
	Name         string         `json:"name" gorm:"type:varchar(100);not null;uniqueIndex:idx_category_name"`
	Description  string         `json:"description" gorm:"type:text"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// Stock movement kinds
const (
	MovementIn         = "in"
	MovementOut        = "out"
	MovementAdjustment = "adjustment"
)

// Ingredient is a stock-tracked item. Quantities are in the ingredient's unit, scaled by 1000.
type Ingredient struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	RestaurantID uint           `json:"restaurant_id" gorm:"not null;index"`
	CategoryID   *uint          `json:"category_id,omitempty" gorm:"index"`
	Name         string         `json:"name" gorm:"type:varchar(100);not null"`
	Unit         string         `json:"unit" gorm:"type:varchar(20);not null"`
	CurrentStock int64          `json:"current_stock" gorm:"not null;default:0"`
	MinStock     int64          `json:"min_stock" gorm:"not null;default:0"`
	CostCents    int64          `json:"cost_cents" gorm:"not null;default:0"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// LowStock reports whether the ingredient is at or below its minimum.
func (i *Ingredient) LowStock() bool {
	return i.MinStock > 0 && i.CurrentStock <= i.MinStock
}

// StockMovement records a change to an ingredient's balance.
type StockMovement struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	RestaurantID uint      `json:"restaurant_id" gorm:"not null;index"`
	IngredientID uint      `json:"ingredient_id" gorm:"not null;index"`
	UserID       uint      `json:"user_id" gorm:"not null"`
	Type         string    `json:"type" gorm:"type:varchar(20);not null"`
	Quantity     int64     `json:"quantity" gorm:"not null"`
	BalanceAfter int64     `json:"balance_after" gorm:"not null"`
	Reason       string    `json:"reason" gorm:"type:varchar(255)"`
	CreatedAt    time.Time `json:"created_at"`
}
