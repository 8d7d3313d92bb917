package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/saldanamusic/splitsheets/internal/auth"
	"github.com/saldanamusic/splitsheets/internal/config"
	"github.com/saldanamusic/splitsheets/internal/database"
	"github.com/saldanamusic/splitsheets/internal/document"
	"github.com/saldanamusic/splitsheets/internal/handlers"
	"github.com/saldanamusic/splitsheets/internal/logging"
	"github.com/saldanamusic/splitsheets/internal/mailer"
	"github.com/saldanamusic/splitsheets/internal/middleware"
	"github.com/saldanamusic/splitsheets/internal/services"
	"github.com/saldanamusic/splitsheets/internal/utils"
	"github.com/saldanamusic/splitsheets/internal/workers"
	"go.uber.org/zap"

	_ "github.com/saldanamusic/splitsheets/docs/api" // Swagger docs
)

// @title Saldaña Music Split Sheets API
// @version 1.0.0
// @description Split sheet agreements with collaborative e-signatures and PDF export
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/saldanamusic/splitsheets

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /api
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logging.New(cfg.IsDevelopment(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	if cfg.UsesInsecureSecret() {
		zlog.Warn("JWT_SECRET is not set, using an insecure development secret")
	}

	// Connect to database
	db, err := database.Connect(cfg, zlog)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		zlog.Fatal("failed to run migrations", zap.Error(err))
	}

	// Services
	notifier := services.NewNotifier(db, zlog)
	audit := services.NewAuditService(db, zlog)
	contacts := services.NewContactService(db, zlog)
	authSvc := services.NewAuthService(db, zlog, auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL), notifier, audit, cfg.OTPTTL)
	renderer := document.NewRenderer(cfg.LogoPath, zlog)
	sheets := services.NewSplitSheetService(db, zlog, renderer, notifier, audit, contacts, cfg.AppBaseURL)

	// Background workers
	outbox := workers.NewOutboxDispatcher(db, mailer.NewSender(cfg, zlog), zlog, cfg.OutboxInterval, cfg.OutboxMaxAttempts)
	sweeper := workers.NewOTPSweeper(authSvc, zlog, cfg.OTPTTL)
	outbox.Start()
	sweeper.Start()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: utils.ErrorHandler,
		AppName:      "splitsheets",
	})

	// Global middleware
	app.Use(recover.New())
	if cfg.IsDevelopment() {
		app.Use(logger.New())
	} else {
		app.Use(middleware.RequestLogger(zlog))
	}
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("splitsheets")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API routes under /api
	api := app.Group("/api")
	api.Use(middleware.VersionMiddleware())

	handlers.SetupRoutes(api, handlers.Handlers{
		Auth:     &handlers.AuthHandler{Auth: authSvc},
		Sheets:   &handlers.SplitSheetHandler{Sheets: sheets},
		Contacts: &handlers.ContactHandler{Contacts: contacts, Audit: audit},
		Health:   &handlers.HealthHandler{Config: cfg, DB: db, Log: zlog},
	})

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return utils.NotFoundResponse(c, "[404] Resource Not Found")
	})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		zlog.Info("gracefully shutting down")
		_ = app.ShutdownWithTimeout(30 * time.Second)
	}()

	// Start server
	zlog.Info("starting server", zap.String("port", cfg.Port), zap.String("db_type", cfg.DBType))
	if err := app.Listen(":" + cfg.Port); err != nil {
		zlog.Error("server stopped with error", zap.Error(err))
	}

	outbox.Stop()
	sweeper.Stop()
	zlog.Info("server stopped")
}
