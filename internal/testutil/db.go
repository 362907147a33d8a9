// Package testutil opens throwaway databases and seeds the fixtures shared by package tests.
package testutil

import (
	"strings"
	"testing"

	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/pkg/database"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens an in-memory SQLite database unique to t and migrates every model.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := "file:" + name + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// One connection keeps the shared in-memory database free of table lock errors.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.RegisterMetrics(db); err != nil {
		t.Fatalf("register metrics: %v", err)
	}
	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Password is the plain-text password of every seeded user.
const Password = "s3cret-pass"

// CreateUser inserts an active user with Password and the given global roles.
func CreateUser(t testing.TB, db *gorm.DB, email string, globalRoles ...string) *model.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := &model.User{Email: email, Password: string(hash), Name: strings.Split(email, "@")[0], Active: true}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	for _, role := range globalRoles {
		if err := db.Create(&model.RoleAssignment{UserID: user.ID, Role: role}).Error; err != nil {
			t.Fatalf("assign role: %v", err)
		}
	}
	return user
}

// CreateRestaurant inserts an active restaurant owned by owner with the given optional modules.
func CreateRestaurant(t testing.TB, db *gorm.DB, name string, owner *model.User, modules ...string) *model.Restaurant {
	t.Helper()

	r := &model.Restaurant{
		Name:               name,
		Slug:               strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		OwnerID:            owner.ID,
		SubscriptionStatus: model.SubscriptionActive,
	}
	r.SetEnabledModules(modules)
	if err := db.Create(r).Error; err != nil {
		t.Fatalf("create restaurant: %v", err)
	}
	AddMember(t, db, r, owner, model.RoleOwner, true)
	return r
}

// AddMember associates user with restaurant and grants role there.
func AddMember(t testing.TB, db *gorm.DB, r *model.Restaurant, user *model.User, role string, isOwner bool) {
	t.Helper()

	if err := db.Create(&model.RestaurantUser{UserID: user.ID, RestaurantID: r.ID, IsOwner: isOwner}).Error; err != nil {
		t.Fatalf("associate user: %v", err)
	}
	GrantRole(t, db, r, user, role)
}

// GrantRole adds a restaurant-scoped role to an existing member.
func GrantRole(t testing.TB, db *gorm.DB, r *model.Restaurant, user *model.User, role string) {
	t.Helper()

	rid := r.ID
	if err := db.Create(&model.RoleAssignment{UserID: user.ID, Role: role, RestaurantID: &rid}).Error; err != nil {
		t.Fatalf("assign role: %v", err)
	}
}
