package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"membership-admin/internal/adapters/http/middleware"
	"membership-admin/internal/adapters/http/routes"
	"membership-admin/internal/config"
	"membership-admin/internal/core/domain"
	"membership-admin/internal/core/services"
	"membership-admin/internal/pkg/metrics"
	"membership-admin/internal/pkg/upload"
	"membership-admin/internal/pkg/yearlock"

	"github.com/gofiber/fiber/v2"
)

// @title Membership Admin API
// @version 1.0
// @description Member registration, renewal and status tracking for the admin panel

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	// Open member store (migrates SQL schemas)
	store, err := config.OpenMemberStore(context.Background(), cfg)
	if err != nil {
		log.Fatalf("❌ Failed to open member store: %v", err)
	}
	defer store.Close()

	// Upload directory for logos and signatures
	uploads, err := upload.NewStore(cfg.Upload.Dir, cfg.Upload.MaxBytes)
	if err != nil {
		log.Fatalf("❌ Failed to prepare upload directory: %v", err)
	}

	// Allocation lock: Redis when several instances share the store
	var locker yearlock.Locker = yearlock.NewLocal()
	if cfg.Redis.Addr != "" {
		client := yearlock.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer client.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := client.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.Fatalf("❌ Failed to connect to Redis: %v", err)
		}
		locker = yearlock.NewRedis(client, "membership:idlock", 10*time.Second)
		log.Printf("✅ Redis allocation lock enabled [%s]", cfg.Redis.Addr)
	}

	// Initialize services
	clock := domain.SystemClock{Location: cfg.Timezone}
	m := metrics.New()

	memberService := services.NewMemberService(
		store,
		domain.NewIDAllocator(cfg.Membership.IDPrefix, cfg.Membership.IDWidth),
		locker,
		clock,
		uploads,
		m,
	)
	dashboardService := services.NewDashboardService(memberService, clock, cfg.Jobs.DashboardCacheTTL)

	// Run seeders (development only)
	if cfg.Jobs.SeedDemo {
		if err := services.NewSeeder(memberService).Run(context.Background()); err != nil {
			log.Printf("⚠️ Demo seeding failed: %v", err)
		}
	}

	authService, err := services.NewAuthService(cfg)
	if err != nil {
		log.Fatalf("❌ Failed to initialize auth: %v", err)
	}

	// Start Cron Service for the nightly status refresh
	cronService, err := services.NewCronService(memberService, cfg.Jobs.StatusRefreshCron, cfg.Timezone)
	if err != nil {
		log.Fatalf("❌ Invalid STATUS_REFRESH_CRON: %v", err)
	}
	cronService.Start()
	defer cronService.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Membership Admin API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
		// two uploads plus form fields
		BodyLimit: int(2*cfg.Upload.MaxBytes) + 1<<20,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes
	routes.Setup(app, &routes.Dependencies{
		Config:    cfg,
		Store:     store,
		Members:   memberService,
		Auth:      authService,
		Dashboard: dashboardService,
		Metrics:   m,
	})

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Printf("🚀 Server starting on port %s [MODE: %s]", cfg.Port, cfg.AppMode)
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("❌ Error during shutdown: %v", err)
	}
	log.Println("✅ Server stopped gracefully")
}
