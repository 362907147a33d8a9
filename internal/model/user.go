package model

import (
	"time"

	"gorm.io/gorm"
)

// Role names. Global roles are assignments without a restaurant.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleOwner      = "owner"
	RoleManager    = "manager"
	RoleStaff      = "staff"
)

// User represents an authenticated actor. Users are never hard-deleted by the API.
type User struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	Email         string         `json:"email" gorm:"type:varchar(100);uniqueIndex;not null"`
	Password      string         `json:"-" gorm:"type:varchar(255);not null"`
	Name          string         `json:"name" gorm:"type:varchar(100)"`
	Active        bool           `json:"active" gorm:"not null;default:true"`
	LoginAttempts int            `json:"-" gorm:"not null;default:0"`
	LockedUntil   *time.Time     `json:"-"`
	LastLoginAt   *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`

	RoleAssignments []RoleAssignment `json:"-" gorm:"foreignKey:UserID"`
	Restaurants     []RestaurantUser `json:"-" gorm:"foreignKey:UserID"`
}

// IsLocked reports whether the lock window is still open at now.
func (u *User) IsLocked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// RoleAssignment ties a user to a role, optionally scoped to one restaurant.
type RoleAssignment struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_role_assignment"`
	Role         string    `json:"role" gorm:"type:varchar(50);not null;uniqueIndex:idx_role_assignment"`
	RestaurantID *uint     `json:"restaurant_id,omitempty" gorm:"uniqueIndex:idx_role_assignment"`
	CreatedAt    time.Time `json:"created_at"`
}
