package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/api/http/handlers"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/auth"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Chat           *handlers.ChatHandler
	Ops            *handlers.OpsHandler
	AuthMiddleware *auth.AuthMiddleware
	Registry       *prometheus.Registry
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Registry != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))
	}

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/operator/login", cfg.Auth.OperatorLogin)

	session := authGroup.Group("", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	session.Get("/me", cfg.Auth.Me)
	session.Post("/logout", cfg.Auth.Logout)

	chat := app.Group("/chat", cfg.AuthMiddleware.Handle, auth.RequireUpstreamSession())
	chat.Post("/conversations", cfg.Chat.Create)
	chat.Get("/conversations/:id/messages", cfg.Chat.Messages)
	chat.Post("/conversations/:id/input", cfg.Chat.Input)
	chat.Post("/conversations/:id/commands", cfg.Chat.Command)
	chat.Post("/conversations/:id/files", cfg.Chat.Upload)
	chat.Delete("/conversations/:id", cfg.Chat.Close)

	ops := app.Group("/ops", cfg.AuthMiddleware.Handle, auth.RequireRole(domain.RoleOperator))
	ops.Get("/conversations", cfg.Ops.ListConversations)
	ops.Get("/conversations/:id/uploads", cfg.Ops.ListUploads)
	ops.Delete("/conversations/:id", cfg.Ops.Terminate)
}
