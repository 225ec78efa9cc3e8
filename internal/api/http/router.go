package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/tiback/helpdesk/internal/api/http/handlers"
	"github.com/tiback/helpdesk/internal/auth"
	"github.com/tiback/helpdesk/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tickets        *handlers.TicketsHandler
	Assignments    *handlers.AssignmentsHandler
	Comments       *handlers.CommentsHandler
	WS             *handlers.WSHandler
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/login", cfg.Auth.Login)

	// Connections declare their own channel membership; there is no
	// account check on the socket itself.
	app.Get("/ws", cfg.WS.Upgrade, cfg.WS.Serve())

	protected := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireRole())

	protected.Get("/actors", auth.RequireRole(domain.RoleSupervisor, domain.RoleAdministrator), cfg.Auth.ListActors)

	tickets := protected.Group("/tickets")
	tickets.Post("", auth.RequireRole(domain.RoleClient), cfg.Tickets.Create)
	tickets.Get("", auth.RequireRole(domain.RoleClient), cfg.Tickets.ListMine)
	tickets.Get("/backlog", auth.RequireRole(domain.RoleHandler), cfg.Tickets.Backlog)
	tickets.Get("/all", auth.RequireRole(domain.RoleSupervisor, domain.RoleAdministrator), cfg.Tickets.ListAll)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Post("/:id/transition", cfg.Tickets.Transition)
	tickets.Post("/:id/reopen-request", auth.RequireRole(domain.RoleClient), cfg.Tickets.RequestReopen)
	tickets.Post("/:id/rating", auth.RequireRole(domain.RoleClient), cfg.Tickets.Rate)
	tickets.Delete("/:id", auth.RequireRole(domain.RoleAdministrator), cfg.Tickets.Purge)

	tickets.Post("/:id/assignment", auth.RequireRole(domain.RoleSupervisor, domain.RoleAdministrator), cfg.Assignments.Assign)
	tickets.Get("/:id/assignments", auth.RequireRole(domain.RoleSupervisor, domain.RoleAdministrator), cfg.Assignments.History)

	tickets.Post("/:id/comments", cfg.Comments.AddComment)
	tickets.Get("/:id/comments", cfg.Comments.ListComments)
	tickets.Post("/:id/chats/:conversation", cfg.Comments.SendChat)
	tickets.Get("/:id/chats/:conversation", cfg.Comments.ListChat)
}
