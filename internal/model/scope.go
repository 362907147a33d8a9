package model

import "gorm.io/gorm"

// ForRestaurant scopes a query to one tenant. Every tenant-scoped read and write goes through it.
func ForRestaurant(restaurantID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("restaurant_id = ?", restaurantID)
	}
}

// All lists every model for migrations.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Restaurant{},
		&RestaurantUser{},
		&RoleAssignment{},
		&AuditLog{},
		&Category{},
		&Ingredient{},
		&StockMovement{},
		&Customer{},
		&Coupon{},
		&Order{},
		&OrderItem{},
		&CashRegisterSession{},
		&CashTransaction{},
		&Feedback{},
		&Integration{},
	}
}
