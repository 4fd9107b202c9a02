package handlers

import (
	"context"
	"time"

	"membership-admin/internal/adapters/persistence/repositories"
	"membership-admin/internal/config"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	store repositories.MemberStore
	cfg   *config.Config
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store repositories.MemberStore, cfg *config.Config) *HealthHandler {
	return &HealthHandler{store: store, cfg: cfg}
}

// Root handles root endpoint
// @Summary Root endpoint
// @Description Returns API status
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router / [get]
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "running",
		"message": "🚀 Membership Admin API v1.0 is running",
		"mode":    h.cfg.AppMode,
	})
}

// HealthCheck handles health check
// @Summary Health check
// @Description Check API and storage health
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	// Check storage
	overall, storage, code := "ok", "healthy", fiber.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		overall, storage, code = "degraded", "unhealthy", fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"api":     "healthy",
			"storage": storage,
			"driver":  h.cfg.Storage.Driver,
		},
	})
}

// APIInfo handles API v1 info
// @Summary API v1 Info
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1 [get]
func (h *HealthHandler) APIInfo(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message": "Membership Admin API v1.0",
		"version": "1.0.0",
	})
}
