package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog is an append-only record of a state-changing action.
type AuditLog struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	ActorID      uint           `json:"actor_id" gorm:"index"`
	RestaurantID *uint          `json:"restaurant_id,omitempty" gorm:"index"`
	Action       string         `json:"action" gorm:"type:varchar(80);not null"`
	Resource     string         `json:"resource" gorm:"type:varchar(50);not null"`
	ResourceID   string         `json:"resource_id" gorm:"type:varchar(64)"`
	Payload      datatypes.JSON `json:"payload"`
	IPAddress    string         `json:"ip_address" gorm:"type:varchar(64)"`
	RequestID    string         `json:"request_id" gorm:"type:varchar(64)"`
	CreatedAt    time.Time      `json:"created_at" gorm:"index"`
}
