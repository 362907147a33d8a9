package server

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/suteetoe/restohub/internal/audit"
	"github.com/suteetoe/restohub/internal/authz"
	"github.com/suteetoe/restohub/internal/events"
	"github.com/suteetoe/restohub/internal/handler"
	"github.com/suteetoe/restohub/internal/middleware"
	"github.com/suteetoe/restohub/internal/principal"
	"github.com/suteetoe/restohub/internal/tenancy"
	"github.com/suteetoe/restohub/pkg/config"
	"github.com/suteetoe/restohub/pkg/jwtutil"
	"github.com/suteetoe/restohub/pkg/logger"
	"github.com/suteetoe/restohub/pkg/ratelimit"
	"github.com/suteetoe/restohub/prometheus"
	"gorm.io/gorm"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Config      *config.Config
	DB          *gorm.DB
	JWT         *jwtutil.JWTUtil
	Authorizer  *authz.Authorizer
	Restaurants *tenancy.RestaurantCache
	Limiter     ratelimit.Limiter
	Audit       audit.Recorder
	Events      events.Publisher
}

// New builds the echo instance with every route registered.
func New(d Deps) *echo.Echo {
	if d.Audit == nil {
		d.Audit = audit.Nop{}
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	if d.Limiter == nil {
		d.Limiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryConfig{MaxKeys: d.Config.RateLimit.MaxKeys})
	}
	cfg := d.Config

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Validator = handler.NewRequestValidator()

	// Global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins: []string{cfg.Server.FrontendURL},
		AllowHeaders: []string{
			echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization,
			tenancy.HeaderRestaurantID, echo.HeaderXRequestID,
		},
		ExposeHeaders: []string{
			echo.HeaderXRequestID, "RateLimit-Limit", "RateLimit-Remaining", "RateLimit-Reset", echo.HeaderRetryAfter,
		},
	}))
	e.Use(prometheus.MetricsMiddleware())
	e.Use(middleware.RequestIDMiddleware())
	e.Use(logger.Middleware())

	loader := principal.NewLoader(d.DB)
	window := cfg.RateLimit.Window

	health := handler.NewHealthHandler(d.DB, cfg.ServiceName)
	authH := handler.NewAuthHandler(d.DB, d.JWT, loader, d.Audit, cfg.Auth)
	admin := handler.NewAdminHandler(d.DB, d.Authorizer.Table(), d.Restaurants, d.Audit)
	dashboard := handler.NewDashboardHandler(d.DB, d.Authorizer)
	categories := handler.NewCategoryHandler(d.DB, d.Audit)
	ingredients := handler.NewIngredientHandler(d.DB, d.Audit)
	customers := handler.NewCustomerHandler(d.DB, d.Audit)
	coupons := handler.NewCouponHandler(d.DB, d.Audit)
	orders := handler.NewOrderHandler(d.DB, d.Audit, d.Events)
	cash := handler.NewCashRegisterHandler(d.DB, d.Audit)
	feedback := handler.NewFeedbackHandler(d.DB, d.Authorizer, d.Audit)
	integrations := handler.NewIntegrationHandler(d.DB, d.Audit)
	webhooks := handler.NewWebhookHandler(d.DB, d.Authorizer, d.Audit, d.Events)
	auditLogs := handler.NewAuditLogHandler(d.DB)

	// Public routes - no authentication required
	e.GET("/health", health.HealthCheck)
	e.GET("/metrics", echo.WrapHandler(prometheus.GetPrometheusHandler()))

	e.POST("/api/auth/register", authH.Register,
		middleware.RateLimit(d.Limiter, "register", cfg.RateLimit.LoginRequests, window))
	e.POST("/api/auth/login", authH.Login,
		middleware.RateLimit(d.Limiter, "login", cfg.RateLimit.LoginRequests, window))
	e.POST("/api/public/restaurants/:slug/feedback", feedback.Submit,
		middleware.OptionalAuth(d.JWT, loader),
		middleware.RateLimit(d.Limiter, "feedback", cfg.RateLimit.LoginRequests, window))
	e.POST("/api/webhooks/:platform", webhooks.Receive,
		middleware.RateLimit(d.Limiter, "webhook", cfg.RateLimit.Requests, window))

	// API routes - all require authentication
	api := e.Group("/api",
		middleware.Authenticate(d.JWT, loader),
		middleware.RateLimit(d.Limiter, "api", cfg.RateLimit.Requests, window))
	api.GET("/auth/me", authH.Me)
	api.PUT("/auth/password", authH.ChangePassword)

	// Admin routes - admin or super_admin global role
	adm := api.Group("/admin", middleware.RequireElevated())
	adm.POST("/restaurants", admin.CreateRestaurant)
	adm.GET("/restaurants", admin.ListRestaurants)
	adm.GET("/restaurants/:id", admin.GetRestaurant)
	adm.DELETE("/restaurants/:id", admin.DeleteRestaurant)
	adm.PUT("/restaurants/:id/modules", admin.UpdateModules)
	adm.PUT("/restaurants/:id/subscription", admin.UpdateSubscription)
	adm.POST("/restaurants/:id/users", admin.AttachUser)
	adm.POST("/users", admin.CreateUser)
	adm.PATCH("/users/:id/status", admin.UpdateUserStatus)

	// Tenant-scoped routes - restaurant resolved, then feature:action checked per route
	t := api.Group("", middleware.ResolveTenant(d.Restaurants))
	can := func(feature string, action authz.Action) echo.MiddlewareFunc {
		return middleware.RequirePermission(d.Authorizer, feature, action)
	}

	t.GET("/dashboard/summary", dashboard.Summary, can(authz.FeatureDashboard, authz.ActionView))

	t.GET("/categories", categories.List, can(authz.FeatureCategories, authz.ActionView))
	t.POST("/categories", categories.Create, can(authz.FeatureCategories, authz.ActionCreate))
	t.GET("/categories/:id", categories.Get, can(authz.FeatureCategories, authz.ActionView))
	t.PUT("/categories/:id", categories.Update, can(authz.FeatureCategories, authz.ActionUpdate))
	t.DELETE("/categories/:id", categories.Delete, can(authz.FeatureCategories, authz.ActionDelete))

	t.GET("/ingredients", ingredients.List, can(authz.FeatureIngredients, authz.ActionView))
	t.POST("/ingredients", ingredients.Create, can(authz.FeatureIngredients, authz.ActionCreate))
	t.GET("/ingredients/:id", ingredients.Get, can(authz.FeatureIngredients, authz.ActionView))
	t.PUT("/ingredients/:id", ingredients.Update, can(authz.FeatureIngredients, authz.ActionUpdate))
	t.DELETE("/ingredients/:id", ingredients.Delete, can(authz.FeatureIngredients, authz.ActionDelete))
	t.GET("/ingredients/:id/movements", ingredients.ListMovements, can(authz.FeatureStock, authz.ActionView))
	t.POST("/ingredients/:id/movements", ingredients.CreateMovement, can(authz.FeatureStock, authz.ActionCreate))

	t.GET("/customers", customers.List, can(authz.FeatureCustomers, authz.ActionView))
	t.POST("/customers", customers.Create, can(authz.FeatureCustomers, authz.ActionCreate))
	t.GET("/customers/segments", customers.Segments, can(authz.FeatureCustomerSegmentation, authz.ActionView))
	t.GET("/customers/:id", customers.Get, can(authz.FeatureCustomers, authz.ActionView))
	t.PUT("/customers/:id", customers.Update, can(authz.FeatureCustomers, authz.ActionUpdate))

	t.GET("/coupons", coupons.List, can(authz.FeatureCoupons, authz.ActionView))
	t.POST("/coupons", coupons.Create, can(authz.FeatureCoupons, authz.ActionCreate))
	t.GET("/coupons/:id", coupons.Get, can(authz.FeatureCoupons, authz.ActionView))
	t.POST("/coupons/:id/redeem", coupons.Redeem, can(authz.FeatureCoupons, authz.ActionUpdate))

	t.GET("/orders", orders.List, can(authz.FeatureOrders, authz.ActionView))
	t.POST("/orders", orders.Create, can(authz.FeatureOrders, authz.ActionCreate))
	t.GET("/orders/:id", orders.Get, can(authz.FeatureOrders, authz.ActionView))
	t.PATCH("/orders/:id/status", orders.UpdateStatus, can(authz.FeatureOrders, authz.ActionUpdate))

	t.POST("/cash-register/sessions/open", cash.Open, can(authz.FeatureCashRegister, authz.ActionCreate))
	t.GET("/cash-register/sessions/current", cash.Current, can(authz.FeatureCashRegister, authz.ActionView))
	t.GET("/cash-register/sessions", cash.List, can(authz.FeatureCashRegister, authz.ActionView))
	t.POST("/cash-register/sessions/:id/close", cash.Close, can(authz.FeatureCashRegister, authz.ActionUpdate))
	t.POST("/cash-register/sessions/:id/transactions", cash.AddTransaction, can(authz.FeatureCashRegister, authz.ActionCreate))
	t.GET("/cash-register/sessions/:id/transactions", cash.ListTransactions, can(authz.FeatureCashRegister, authz.ActionView))

	t.GET("/feedback", feedback.List, can(authz.FeatureFeedback, authz.ActionView))
	t.GET("/feedback/nps", feedback.NPS, can(authz.FeatureFeedback, authz.ActionView))

	t.GET("/integrations", integrations.List, can(authz.FeatureIntegrations, authz.ActionView))
	t.POST("/integrations", integrations.Create, can(authz.FeatureIntegrations, authz.ActionCreate))
	t.DELETE("/integrations/:id", integrations.Delete, can(authz.FeatureIntegrations, authz.ActionDelete))

	t.GET("/audit-logs", auditLogs.List, can(authz.FeatureAudit, authz.ActionView))

	return e
}
