package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Subscription states
const (
	SubscriptionTrialing = "trialing"
	SubscriptionActive   = "active"
	SubscriptionPastDue  = "past_due"
	SubscriptionCanceled = "canceled"
)

// RestaurantSettings is the JSON settings blob of a restaurant.
type RestaurantSettings struct {
	EnabledModules []string `json:"enabled_modules"`
	Currency       string   `json:"currency,omitempty"`
	Timezone       string   `json:"timezone,omitempty"`
}

// Restaurant is the tenant: the isolation boundary for every scoped row.
type Restaurant struct {
	ID                 uint                                  `json:"id" gorm:"primaryKey"`
	Name               string                                `json:"name" gorm:"type:varchar(150);not null"`
	Slug               string                                `json:"slug" gorm:"type:varchar(170);uniqueIndex;not null"`
	OwnerID            uint                                  `json:"owner_id" gorm:"index;not null"`
	Settings           datatypes.JSONType[RestaurantSettings] `json:"settings"`
	SubscriptionStatus string                                `json:"subscription_status" gorm:"type:varchar(20);not null;default:'trialing'"`
	SubscriptionEndsAt *time.Time                            `json:"subscription_ends_at,omitempty"`
	CreatedAt          time.Time                             `json:"created_at"`
	UpdatedAt          time.Time                             `json:"updated_at"`
	DeletedAt          gorm.DeletedAt                        `json:"-" gorm:"index"`
}

// EnabledModules returns the modules switched on in the settings blob.
func (r *Restaurant) EnabledModules() []string {
	modules := r.Settings.Data().EnabledModules
	if modules == nil {
		return []string{}
	}
	return modules
}

// SetEnabledModules replaces the module list, keeping the rest of the settings.
func (r *Restaurant) SetEnabledModules(modules []string) {
	settings := r.Settings.Data()
	settings.EnabledModules = append([]string{}, modules...)
	r.Settings = datatypes.NewJSONType(settings)
}

// SubscriptionLapsed reports whether the restaurant lost access to paid features at now.
func (r *Restaurant) SubscriptionLapsed(now time.Time) bool {
	switch r.SubscriptionStatus {
	case SubscriptionPastDue, SubscriptionCanceled:
		return true
	case SubscriptionTrialing, SubscriptionActive:
		return r.SubscriptionEndsAt != nil && r.SubscriptionEndsAt.Before(now)
	default:
		return false
	}
}
