package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/snoutos/message-router/internal/api/http/handlers"
	"github.com/snoutos/message-router/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Webhooks       *handlers.WebhookHandler
	Auth           *handlers.AuthHandler
	Routing        *handlers.RoutingHandler
	Assignments    *handlers.AssignmentsHandler
	Offers         *handlers.OffersHandler
	Messages       *handlers.MessagesHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. The webhook endpoint is deliberately
// outside the auth group: Twilio authenticates with its signature, not a
// bearer token.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/webhooks/twilio/inbound", cfg.Webhooks.Inbound)

	app.Post("/auth/operators/login", cfg.Auth.Login)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	api.Post("/routing/simulate", cfg.Routing.Simulate)
	api.Get("/routing/rules", cfg.Routing.Rules)

	api.Get("/threads/:threadId/overrides", cfg.Routing.ListOverrides)
	api.Post("/threads/:threadId/overrides", cfg.Routing.CreateOverride)
	api.Delete("/overrides/:id", cfg.Routing.RemoveOverride)

	api.Get("/threads/:threadId/windows", cfg.Assignments.ListWindows)
	api.Post("/threads/:threadId/windows", cfg.Assignments.CreateWindow)
	api.Put("/windows/:id", cfg.Assignments.UpdateWindow)
	api.Delete("/windows/:id", cfg.Assignments.DeleteWindow)
	api.Get("/threads/:threadId/conflicts", cfg.Assignments.ListConflicts)
	api.Post("/threads/:threadId/conflicts/resolve", cfg.Assignments.ResolveConflict)

	api.Post("/offers/accept", cfg.Offers.Accept)
	api.Post("/offers/decline", cfg.Offers.Decline)
	api.Post("/offers/expire", cfg.Offers.Expire)
	api.Get("/sitters/:id/metrics", cfg.Offers.SitterMetrics)

	api.Get("/threads/:threadId/messages", cfg.Messages.List)
	api.Post("/threads/:threadId/messages", cfg.Messages.Send)
	api.Post("/messages/:id/force-send", cfg.Messages.ForceSend)
}
