package routes

import (
	"time"

	"membership-admin/internal/adapters/http/handlers"
	"membership-admin/internal/adapters/http/middleware"
	"membership-admin/internal/adapters/persistence/repositories"
	"membership-admin/internal/config"
	"membership-admin/internal/core/services"
	"membership-admin/internal/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// Dependencies are the wired services the routes serve
type Dependencies struct {
	Config    *config.Config
	Store     repositories.MemberStore
	Members   *services.MemberService
	Auth      *services.AuthService
	Dashboard *services.DashboardService
	Metrics   *metrics.Metrics
}

// Setup configures all routes for the application
func Setup(app *fiber.App, deps *Dependencies) {
	cfg := deps.Config

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(deps.Store, cfg)
	authHandler := handlers.NewAuthHandler(deps.Auth, cfg)
	memberHandler := handlers.NewMemberHandler(deps.Members)
	dashboardHandler := handlers.NewDashboardHandler(deps.Dashboard)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	// Stored logos and signatures
	app.Use("/uploads", middleware.CacheControl(24*time.Hour))
	app.Static("/uploads", cfg.Upload.Dir, fiber.Static{Browse: false})

	// API v1 group
	apiV1 := app.Group("/api/v1", middleware.NoCacheHeaders())
	setupAPIV1Routes(apiV1, deps.Auth, healthHandler, authHandler, memberHandler, dashboardHandler)
}

// setupAPIV1Routes configures API v1 routes
func setupAPIV1Routes(
	router fiber.Router,
	auth services.Authenticator,
	healthHandler *handlers.HealthHandler,
	authHandler *handlers.AuthHandler,
	memberHandler *handlers.MemberHandler,
	dashboardHandler *handlers.DashboardHandler,
) {
	// API Info
	router.Get("/", healthHandler.APIInfo)

	requireAdmin := []fiber.Handler{middleware.AuthMiddleware(auth), middleware.AdminOnly()}

	// Auth routes
	authRoutes := router.Group("/auth")
	authRoutes.Post("/login", middleware.AuthRateLimiter(), authHandler.Login)
	authRoutes.Post("/logout", authHandler.Logout)
	authRoutes.Get("/me", append(requireAdmin, authHandler.Me)...)

	// Dashboard routes
	dashboardRoutes := router.Group("/dashboard", requireAdmin...)
	dashboardRoutes.Get("/", dashboardHandler.GetDashboard)

	// Member routes
	memberRoutes := router.Group("/members", requireAdmin...)
	setupMemberRoutes(memberRoutes, memberHandler)
}

// setupMemberRoutes configures member record routes
func setupMemberRoutes(router fiber.Router, handler *handlers.MemberHandler) {
	router.Post("/", handler.Register)
	router.Get("/", handler.Search)
	router.Get("/:id", handler.Get)
	router.Put("/:id", handler.Update)
	router.Post("/:id/renew", handler.Renew)
	router.Get("/:id/memberships", handler.Memberships)
}
