package container

import (
	"github.com/jordanlanch/assetdesk/pkg/api/middleware"
	tenant "github.com/jordanlanch/assetdesk/pkg/middleware"
	"github.com/jordanlanch/assetdesk/pkg/plans"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the HTTP API on e
func (c *Container) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", c.HealthHandler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(c.Gatherer, promhttp.HandlerOpts{})))

	jwt := middleware.JWTMiddleware(c.Config.JWTSecret)
	member := []echo.MiddlewareFunc{jwt, tenant.AttachOrganization(), tenant.RequireOrganization()}
	admin := chain(member, tenant.RequireAdmin())
	limit := func(kind plans.Kind) echo.MiddlewareFunc {
		return tenant.PlanLimit(c.Gate, kind, c.Metrics)
	}

	api := e.Group("/api")

	// Auth
	authGroup := api.Group("/auth")
	authGroup.POST("/register", c.AuthHandler.Register)
	authGroup.POST("/login", c.AuthHandler.Login)
	authGroup.GET("/me", c.AuthHandler.Me, jwt)
	authGroup.POST("/invite", c.AuthHandler.Invite, chain(admin, limit(plans.KindUser))...)

	api.GET("/users", c.AuthHandler.ListUsers, admin...)

	// Assets
	api.GET("/assets", c.AssetHandler.List, member...)
	api.POST("/assets", c.AssetHandler.Create, chain(admin, limit(plans.KindAsset))...)

	// Tickets
	api.POST("/tickets", c.TicketHandler.Create, chain(member, limit(plans.KindTicket))...)
	api.GET("/tickets", c.TicketHandler.List, admin...)
	api.GET("/tickets/export", c.TicketHandler.Export, admin...)
	api.PATCH("/tickets/:id/close", c.TicketHandler.Close, admin...)

	api.GET("/analytics/dashboard", c.AnalyticsHandler.Dashboard, admin...)
	api.GET("/audit-logs", c.AuditHandler.List, admin...)

	// Subscription
	sub := api.Group("/subscription")
	sub.GET("/plans", c.SubscriptionHandler.Plans)
	sub.POST("/webhook", c.SubscriptionHandler.Webhook)
	sub.GET("/status", c.SubscriptionHandler.Status, member...)
	sub.POST("/create-checkout", c.SubscriptionHandler.CreateCheckout, member...)
	sub.POST("/portal", c.SubscriptionHandler.Portal, member...)
	sub.POST("/demo-upgrade", c.SubscriptionHandler.DemoUpgrade, admin...)
}

func chain(base []echo.MiddlewareFunc, extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}
