package principal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/pkg/apperror"
	"gorm.io/gorm"
)

// Loader builds principals from the database.
type Loader struct {
	db  *gorm.DB
	now func() time.Time
}

// NewLoader creates a loader backed by db.
func NewLoader(db *gorm.DB) *Loader {
	return &Loader{db: db, now: time.Now}
}

// Load fetches the user with its roles and restaurant associations. Unknown users are
// Unauthorized; disabled or currently locked users are Forbidden.
func (l *Loader) Load(ctx context.Context, userID uint) (*Principal, error) {
	var user model.User
	err := l.db.WithContext(ctx).
		Preload("RoleAssignments").
		Preload("Restaurants", func(db *gorm.DB) *gorm.DB { return db.Order("restaurant_users.id ASC") }).
		Preload("Restaurants.Restaurant").
		First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.Unauthorized("user no longer exists")
	}
	if err != nil {
		return nil, fmt.Errorf("load principal %d: %w", userID, err)
	}

	if !user.Active {
		return nil, apperror.New(403, apperror.CodeAccountDisabled, "account is disabled")
	}
	if user.IsLocked(l.now()) {
		return nil, apperror.New(403, apperror.CodeAccountLocked, "account is temporarily locked")
	}

	return FromUser(&user), nil
}

// FromUser normalizes a user with preloaded RoleAssignments and Restaurants.
func FromUser(user *model.User) *Principal {
	p := &Principal{
		ID:          user.ID,
		Email:       user.Email,
		Name:        user.Name,
		GlobalRoles: []string{},
		Memberships: []Membership{},
	}

	scoped := make(map[uint][]string)
	for _, ra := range user.RoleAssignments {
		if ra.RestaurantID == nil {
			p.GlobalRoles = append(p.GlobalRoles, ra.Role)
			continue
		}
		scoped[*ra.RestaurantID] = append(scoped[*ra.RestaurantID], ra.Role)
	}

	for _, ru := range user.Restaurants {
		// Soft-deleted restaurants are not preloaded.
		if ru.Restaurant.ID == 0 {
			continue
		}
		roles := scoped[ru.RestaurantID]
		if ru.IsOwner && !contains(roles, model.RoleOwner) {
			roles = append([]string{model.RoleOwner}, roles...)
		}
		if roles == nil {
			roles = []string{}
		}
		p.Memberships = append(p.Memberships, Membership{
			RestaurantID: ru.RestaurantID,
			Name:         ru.Restaurant.Name,
			Slug:         ru.Restaurant.Slug,
			IsOwner:      ru.IsOwner,
			Roles:        roles,
		})
	}
	return p
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
