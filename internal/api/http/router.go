package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/campusdesk/servicedesk/internal/api/http/handlers"
	"github.com/campusdesk/servicedesk/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Tickets        *handlers.TicketsHandler
	Dispositions   *handlers.DispositionsHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	app.Post("/auth/login", cfg.Users.Login)

	authed := app.Group("", cfg.AuthMiddleware.Handle)
	authed.Get("/auth/me", cfg.Users.Me)

	tickets := authed.Group("/tickets")
	tickets.Post("", cfg.Tickets.Create)
	tickets.Get("", cfg.Tickets.List)
	tickets.Get("/stats", cfg.Tickets.Stats)
	tickets.Post("/bulk", auth.RequireManager(), cfg.Tickets.BulkUpdate)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Patch("/:id", cfg.Tickets.Update)
	tickets.Patch("/:id/progress", cfg.Tickets.Progress)
	tickets.Post("/:id/quick-resolve", cfg.Tickets.QuickResolve)
	tickets.Post("/:id/reassign", auth.RequireManager(), cfg.Tickets.Reassign)
	tickets.Post("/:id/cancel", cfg.Tickets.Cancel)
	tickets.Post("/:id/reopen", cfg.Tickets.Reopen)
	tickets.Post("/:id/rate", cfg.Tickets.Rate)
	tickets.Get("/:id/audit", auth.RequireManager(), cfg.Tickets.AuditTrail)

	tickets.Post("/:id/forward", cfg.Dispositions.Forward)
	tickets.Get("/:id/dispositions", cfg.Dispositions.Chain)
	tickets.Post("/:id/auto-assign", auth.RequireManager(), cfg.Dispositions.AutoAssign)
	authed.Get("/assignments/workloads", auth.RequireManager(), cfg.Dispositions.Workloads)

	notifications := authed.Group("/notifications")
	notifications.Get("", cfg.Notifications.List)
	notifications.Post("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)
}
