package model

import "time"

// Integration holds a restaurant's delivery-platform link and the webhook signing secret.
type Integration struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	RestaurantID uint      `json:"restaurant_id" gorm:"not null;uniqueIndex:idx_integration_platform"`
	Platform     string    `json:"platform" gorm:"type:varchar(30);not null;uniqueIndex:idx_integration_platform"`
	StoreRef     string    `json:"store_ref" gorm:"type:varchar(100)"`
	Secret       string    `json:"-" gorm:"type:varchar(128);not null"`
	Enabled      bool      `json:"enabled" gorm:"not null;default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
