package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yogatherapy/backend/internal/api"
	"yogatherapy/backend/internal/config"
	"yogatherapy/backend/internal/logger"
	"yogatherapy/backend/internal/notification"
	"yogatherapy/backend/internal/repository/mongo"
	"yogatherapy/backend/internal/service"
	"yogatherapy/backend/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	// --- Logger ---
	zlog, err := logger.New(cfg.Log.Mode)
	if err != nil {
		log.Fatalf("FATAL: Could not initialize logger: %v", err)
	}
	defer zlog.Sync()
	zlog.Infow("Starting therapy backend", "address", cfg.Server.Address)

	// --- Database Connection ---
	dbClient, err := mongo.ConnectDB(cfg.Database.URI)
	if err != nil {
		zlog.Fatalw("Could not connect to MongoDB", "error", err)
	}
	defer func() {
		zlog.Info("Disconnecting MongoDB...")
		if err := mongo.DisconnectDB(dbClient); err != nil {
			zlog.Errorw("Failed to disconnect MongoDB", "error", err)
		}
	}()
	appDB := dbClient.Database(cfg.Database.Name)
	zlog.Info("Database connection established.")

	// --- Ensure Indexes ---
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
		defer cancel()
		mongo.EnsureUserIndexes(ctx, appDB.Collection("users"))
		mongo.EnsurePatientIndexes(ctx, appDB.Collection("patients"))
		mongo.EnsureSeriesIndexes(ctx, appDB.Collection("series"))
		mongo.EnsureSessionIndexes(ctx, appDB.Collection("sessions"))
		zlog.Info("Index creation process completed.")
	}()

	// --- Initialize Storage ---
	fileStorage, err := storage.NewS3Storage(cfg.S3)
	if err != nil {
		zlog.Fatalw("Failed to initialize S3 storage", "error", err)
	}

	// --- Initialize Notifier ---
	var notifier notification.Notifier
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer redisClient.Close()
		notifier = notification.NewRedisNotifier(redisClient, cfg.Redis.Channel)
		zlog.Infow("Redis notifier enabled", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	} else {
		notifier = notification.NewLogNotifier(zlog)
	}

	// --- Initialize Repositories ---
	userRepo := mongo.NewMongoUserRepository(appDB)
	patientRepo := mongo.NewMongoPatientRepository(appDB)
	seriesRepo := mongo.NewMongoSeriesRepository(appDB)
	sessionRepo := mongo.NewMongoSessionRepository(appDB)
	txRunner := mongo.NewTxRunner(dbClient)

	// --- Initialize Services ---
	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration)
	catalogService := service.NewCatalogService(seriesRepo, patientRepo)
	instructorService := service.NewInstructorService(userRepo, patientRepo)
	assignmentService := service.NewAssignmentService(patientRepo, seriesRepo, notifier, zlog)
	sessionService := service.NewSessionService(patientRepo, seriesRepo, sessionRepo, txRunner, notifier, zlog)
	analyticsService := service.NewAnalyticsService(patientRepo, seriesRepo, sessionRepo)
	exportService := service.NewExportService(analyticsService, fileStorage)

	// --- Initialize Gin Engine ---
	if cfg.Log.Mode == "prod" || cfg.Log.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// --- Setup Routes ---
	api.SetupRoutes(
		router,
		cfg.JWT.Secret,
		authService,
		catalogService,
		instructorService,
		assignmentService,
		sessionService,
		analyticsService,
		exportService,
	)

	// --- Start HTTP Server ---
	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	zlog.Infow("Server starting", "address", cfg.Server.Address)

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Fatalw("ListenAndServe error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		zlog.Fatalw("Server forced to shutdown", "error", err)
	}

	zlog.Info("Server exiting.")
}
