package model

import (
	"time"
)

// RestaurantUser associates a user with a restaurant. Owners are flagged.
type RestaurantUser struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_restaurant_user"`
	RestaurantID uint      `json:"restaurant_id" gorm:"not null;uniqueIndex:idx_restaurant_user;index"`
	IsOwner      bool      `json:"is_owner" gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	Restaurant Restaurant `json:"-" gorm:"foreignKey:RestaurantID;constraint:OnDelete:CASCADE"`
}
