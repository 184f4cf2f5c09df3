// Package main initializes and starts the Driver Tasks Hub server,
// setting up configuration, logging, the database, repositories,
// services, the file store, and the HTTP router.
package main

import (
	"cmp"
	"context"
	"fmt"
	"time"

	nethttp "net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/eyetask/driverhub/internal/cache"
	"github.com/eyetask/driverhub/internal/config"
	"github.com/eyetask/driverhub/internal/db"
	"github.com/eyetask/driverhub/internal/logger"
	"github.com/eyetask/driverhub/internal/repository"
	"github.com/eyetask/driverhub/internal/server/handler/http"
	"github.com/eyetask/driverhub/internal/service"
	"github.com/eyetask/driverhub/internal/storage"
	"github.com/eyetask/driverhub/internal/telemetry"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config-file and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	if options.JWTSecret == "" {
		zapLogger.Fatal("jwt signing secret is required")
	}

	// Initialize PostgreSQL and run migrations.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}

	// Purge soft-deleted tasks in the background.
	db.StartSoftDeleteCleaner(context.Background(), postgresDB,
		time.Hour,       // interval
		30*24*time.Hour, // retention: 30 days
		zapLogger,
	)

	// Initialize repositories.
	userRepo := repository.NewPostgresUserRepository(postgresDB)
	permRepo := repository.NewPostgresPermissionRepository(postgresDB)
	projectRepo := repository.NewPostgresProjectRepository(postgresDB)
	taskRepo := repository.NewPostgresTaskRepository(postgresDB)
	visitorRepo := repository.NewPostgresVisitorRepository(postgresDB)
	activityRepo := repository.NewPostgresActivityRepository(postgresDB)
	updateRepo := repository.NewPostgresUpdateRepository(postgresDB)

	// Shared application cache with stale-while-revalidate refresh.
	appCache := cache.New(zapLogger)
	defer appCache.Close()

	// Metrics registry exposed at /metrics.
	registry := prometheus.NewRegistry()
	metrics := telemetry.New(registry)

	// Initialize business-logic services.
	authService := service.NewAuthService(userRepo,
		[]byte(options.JWTSecret),
		time.Duration(options.TokenTTLHours)*time.Hour,
	)
	permService := service.NewPermissionService(permRepo, userRepo)
	userService := service.NewUserService(userRepo)
	projectService := service.NewProjectService(projectRepo)
	taskService := service.NewTaskService(taskRepo, activityRepo, appCache, zapLogger)
	visitorService := service.NewVisitorService(visitorRepo)
	updateService := service.NewUpdateService(updateRepo)
	analyticsService := service.NewAnalyticsService(
		taskRepo, projectRepo, activityRepo, visitorRepo,
		appCache, metrics, zapLogger,
	)

	// Select the file storage backend.
	store, err := storage.FromConfig(context.Background(), storage.Config{
		Backend: options.StorageBackend,
		Dir:     options.StorageDir,
		BaseURL: options.StorageBaseURL,
		Bucket:  options.S3Bucket,
		Prefix:  options.S3Prefix,
	})
	if err != nil {
		zapLogger.Fatal("cannot init file storage", zap.Error(err))
	}

	handlers := http.Handlers{
		Auth:      &http.AuthHandler{AuthService: authService},
		Users:     &http.UsersHandler{Users: userService, Permissions: permService},
		Projects:  &http.ProjectsHandler{Projects: projectService, Permissions: permService},
		Tasks:     &http.TasksHandler{Tasks: taskService, Permissions: permService},
		Analytics: &http.AnalyticsHandler{Analytics: analyticsService, Permissions: permService},
		Visitors:  &http.VisitorsHandler{Visitors: visitorService, Permissions: permService},
		Updates:   &http.UpdatesHandler{Updates: updateService, Permissions: permService},
		Upload:    &http.UploadHandler{Store: store, Permissions: permService},
	}

	// Static uploads are only served for the local backend.
	uploadsDir := ""
	if options.StorageBackend == "local" {
		uploadsDir = options.StorageDir
	}

	router := http.NewRouter(handlers, authService, zapLogger, metrics, registry, uploadsDir)

	server := &nethttp.Server{
		Addr:    options.Addr,
		Handler: router,
	}

	zapLogger.Info("starting HTTP server", zap.String("addr", options.Addr))
	if err := server.ListenAndServe(); err != nil {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
