package authz

import (
	"context"
	"time"

	"github.com/suteetoe/restohub/internal/model"
	"github.com/suteetoe/restohub/internal/principal"
	"github.com/suteetoe/restohub/pkg/apperror"
	"github.com/suteetoe/restohub/pkg/logger"
	"github.com/suteetoe/restohub/prometheus"
	"go.uber.org/zap"
)

// Authorizer decides whether a principal may perform an action on a feature of a restaurant.
type Authorizer struct {
	table *Table
	now   func() time.Time
}

// NewAuthorizer creates an authorizer over table.
func NewAuthorizer(table *Table) *Authorizer {
	return &Authorizer{table: table, now: time.Now}
}

// Table returns the permission table in use.
func (a *Authorizer) Table() *Table {
	return a.table
}

// Check runs, in order: super_admin bypass, subscription, module enablement, role grants.
func (a *Authorizer) Check(ctx context.Context, p *principal.Principal, restaurant *model.Restaurant, feature string, action Action) error {
	if p.IsSuperAdmin() {
		return nil
	}

	log := logger.FromContext(ctx).With(
		zap.Uint("user_id", p.ID),
		zap.Uint("restaurant_id", restaurant.ID),
		zap.String("feature", feature),
		zap.String("action", string(action)),
	)

	if !a.table.Known(feature) {
		log.Error("Permission check on undeclared feature")
		prometheus.RecordPermissionDenied(feature, "unknown_feature")
		return apperror.Forbidden("insufficient permissions")
	}

	if restaurant.SubscriptionLapsed(a.now()) {
		log.Info("Subscription lapsed", zap.String("subscription_status", restaurant.SubscriptionStatus))
		prometheus.RecordPermissionDenied(feature, "subscription")
		return apperror.PaymentRequired("subscription is not active")
	}

	if !a.Enabled(restaurant, feature) {
		log.Info("Module not enabled")
		prometheus.RecordPermissionDenied(feature, "module_not_enabled")
		return apperror.ModuleNotEnabled(feature)
	}

	for _, role := range p.RolesFor(restaurant.ID) {
		if a.table.Grants(role, feature, action) {
			return nil
		}
	}

	log.Info("No role grants action", zap.Strings("roles", p.RolesFor(restaurant.ID)))
	prometheus.RecordPermissionDenied(feature, "role")
	return apperror.Forbidden("insufficient permissions")
}

// Enabled reports whether feature is usable in restaurant: core features always are.
func (a *Authorizer) Enabled(restaurant *model.Restaurant, feature string) bool {
	if a.table.IsCore(feature) {
		return true
	}
	for _, m := range restaurant.EnabledModules() {
		if m == feature {
			return true
		}
	}
	return false
}
