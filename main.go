package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gradebook_go/config"
	"gradebook_go/database"
	"gradebook_go/database/seeders"
	"gradebook_go/middleware"
	"gradebook_go/routes"
	"gradebook_go/services"
	"gradebook_go/storage"
	"gradebook_go/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
)

const (
	serviceName    = "Gradebook API"
	serviceVersion = "1.0.0"
)

func init() {
	// Load configuration
	config.LoadConfig()

	// Initialize logging
	setupLogging()
}

func main() {
	cfg := config.AppConfig

	// Choose the persistence backend and the matching auth sources
	var (
		backend   store.Backend
		profiles  services.ProfileRepository
		blacklist services.TokenBlacklist = services.NewMemoryTokenBlacklist()
	)
	if cfg.Offline() {
		fileBackend, err := store.OpenFileBackend(cfg.OfflineDataFile)
		if err != nil {
			log.Fatal("Failed to open offline data file:", err)
		}
		backend = fileBackend
		admin, err := services.NewStaticAdminRepository(cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			log.Fatal("Failed to prepare offline admin:", err)
		}
		profiles = admin
		log.Printf("Offline mode: gradebook kept in %s", cfg.OfflineDataFile)
	} else {
		database.Connect()
		backend = store.NewGormBackend(database.DB)
		profiles = services.NewGormProfileRepository(database.DB)
		if rdb := database.GetRedisClient(); rdb != nil {
			blacklist = services.NewRedisTokenBlacklist(rdb)
		}
	}
	defer database.Close()

	// Load the gradebook mirror
	st := store.New(backend)
	loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := st.Load(loadCtx); err != nil {
		logrus.WithError(err).Error("Initial data load failed; serving empty data until reloaded")
	}
	seeders.SeedAll(loadCtx, st)
	cancel()

	// Object storage is optional; archiving is disabled without credentials
	var (
		objects  services.ObjectStorage
		archives services.BackupArchiveRepository
	)
	if cfg.AWSAccessKeyID != "" {
		storageService, err := storage.NewStorageService()
		if err != nil {
			logrus.WithError(err).Warn("Object storage unavailable; backup archiving disabled")
		} else {
			objects = storageService
		}
	}
	if database.DB != nil {
		archives = services.NewGormBackupArchiveRepository(database.DB)
	}

	attendance := services.NewAttendanceService(st)
	backups := services.NewBackupService(st, objects, archives, cfg.ResetKeyword)
	logArchive := services.NewLogArchiveService(database.DB, database.GetRedisClient())
	health := services.NewHealthService(st, serviceName, serviceVersion)

	deps := routes.Dependencies{
		Store:        st,
		Auth:         services.NewAuthService(profiles, blacklist, cfg.JWTSecret, cfg.JWTExpiresIn),
		Weights:      services.NewWeightService(st),
		Grades:       services.NewGradeService(st),
		Attendance:   attendance,
		Journals:     services.NewJournalService(st, attendance),
		Imports:      services.NewImportService(st),
		Backups:      backups,
		Dashboard:    services.NewDashboardService(st),
		Logs:         logArchive,
		Health:       health,
		MaxFileSize:  cfg.MaxFileSize,
		EnforceRoles: cfg.EnforceRoles,
	}

	// Start scheduled backup archiving and log maintenance
	var scheduledBackups *services.BackupService
	if objects != nil {
		scheduledBackups = backups
	}
	scheduleManager := services.NewScheduleManager(scheduledBackups, logArchive, services.ScheduleSettings{
		BackupEnabled:  cfg.BackupEnabled,
		BackupCron:     cfg.BackupCron,
		LogArchiveCron: cfg.LogArchiveCron,
		LogArchiveDays: cfg.LogArchiveDays,
	})
	if err := scheduleManager.Start(); err != nil {
		log.Fatal("Failed to start scheduler:", err)
	}
	defer scheduleManager.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		Immutable:    true,
		ErrorHandler: customErrorHandler,
		BodyLimit:    int(cfg.MaxFileSize),
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Custom middleware
	app.Use(middleware.LoggerMiddleware())
	app.Use(middleware.LogActivityMiddleware())

	// API routes
	routes.SetupRoutes(app, deps)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":  "Route not found",
			"path":   c.Path(),
			"method": c.Method(),
		})
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("Server starting on port %s", cfg.Port)
	log.Printf("%s v%s", serviceName, serviceVersion)
	log.Printf("Environment: %s", cfg.AppEnv)

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// setupLogging configures the logging system
func setupLogging() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	level, err := logrus.ParseLevel(config.AppConfig.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	// Log to stdout in development, to stdout and the log file otherwise
	if config.AppConfig.AppEnv == "development" || config.AppConfig.LogFile == "" {
		logrus.SetOutput(os.Stdout)
		return
	}
	if err := os.MkdirAll(filepath.Dir(config.AppConfig.LogFile), 0755); err != nil {
		log.Printf("Warning: Could not create logs directory: %v", err)
		return
	}
	file, err := os.OpenFile(config.AppConfig.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err == nil {
		logrus.SetOutput(io.MultiWriter(os.Stdout, file))
	}
}

// customErrorHandler handles application errors
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	// Check if it's a Fiber error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	logrus.WithFields(logrus.Fields{
		"error":  err.Error(),
		"path":   c.Path(),
		"method": c.Method(),
		"ip":     c.IP(),
		"status": code,
	}).Error("Request error")

	return c.Status(code).JSON(fiber.Map{
		"error":  message,
		"code":   code,
		"path":   c.Path(),
		"method": c.Method(),
	})
}
