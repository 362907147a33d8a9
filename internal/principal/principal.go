package principal

import (
	"github.com/suteetoe/restohub/internal/model"
)

// Membership is one restaurant association of a principal.
type Membership struct {
	RestaurantID uint     `json:"id"`
	Name         string   `json:"name"`
	Slug         string   `json:"slug"`
	IsOwner      bool     `json:"is_owner"`
	Roles        []string `json:"roles"`
}

// Principal is the normalized view of an authenticated user.
type Principal struct {
	ID          uint         `json:"id"`
	Email       string       `json:"email"`
	Name        string       `json:"name"`
	GlobalRoles []string     `json:"roles"`
	Memberships []Membership `json:"restaurants"`
}

// HasGlobalRole reports whether the principal holds role outside any restaurant.
func (p *Principal) HasGlobalRole(role string) bool {
	for _, r := range p.GlobalRoles {
		if r == role {
			return true
		}
	}
	return false
}

// IsSuperAdmin reports whether every permission check passes for this principal.
func (p *Principal) IsSuperAdmin() bool {
	return p.HasGlobalRole(model.RoleSuperAdmin)
}

// IsElevated reports whether the principal may act on restaurants it is not a member of.
func (p *Principal) IsElevated() bool {
	return p.IsSuperAdmin() || p.HasGlobalRole(model.RoleAdmin)
}

// Membership returns the association with restaurantID, if any.
func (p *Principal) Membership(restaurantID uint) (Membership, bool) {
	for _, m := range p.Memberships {
		if m.RestaurantID == restaurantID {
			return m, true
		}
	}
	return Membership{}, false
}

// FirstRestaurant returns the earliest association.
func (p *Principal) FirstRestaurant() (uint, bool) {
	if len(p.Memberships) == 0 {
		return 0, false
	}
	return p.Memberships[0].RestaurantID, true
}

// RolesFor returns the effective roles in restaurantID: global roles plus the
// restaurant-scoped ones. Owners always carry the owner role.
func (p *Principal) RolesFor(restaurantID uint) []string {
	roles := append([]string{}, p.GlobalRoles...)
	if m, ok := p.Membership(restaurantID); ok {
		roles = append(roles, m.Roles...)
	}
	return roles
}
