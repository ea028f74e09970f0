package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/haulwatch/service-tracking/internal/adapters/geo"
	"github.com/haulwatch/service-tracking/internal/adapters/tracker"
	"github.com/haulwatch/service-tracking/internal/application"
	"github.com/haulwatch/service-tracking/internal/config"
	"github.com/haulwatch/service-tracking/internal/events"
	"github.com/haulwatch/service-tracking/internal/handler"
	"github.com/haulwatch/service-tracking/internal/platform/database"
	"github.com/haulwatch/service-tracking/internal/platform/health"
	"github.com/haulwatch/service-tracking/internal/platform/kafka"
	"github.com/haulwatch/service-tracking/internal/platform/logger"
	"github.com/haulwatch/service-tracking/internal/platform/middleware"
	"github.com/haulwatch/service-tracking/internal/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-tracking")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-tracking",
		zap.String("port", cfg.Port),
	)

	// Connect to database
	db, err := database.Connect(cfg.DB, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(&repository.DriverModel{}, &repository.GroupModel{}); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(cfg.DB.DatabaseURL(), "migrations", log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.Kafka.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize repositories
	groupRepo := repository.NewGormGroupRepository(db)
	driverRepo := repository.NewGormDriverRepository(db)

	// Initialize geocoding and routing providers. Without an API key the
	// commercial provider stays out of the chain entirely.
	var commercial application.CommercialMaps
	if cfg.Maps.GoogleAPIKey != "" {
		google, err := geo.NewGoogleMaps(cfg.Maps.GoogleAPIKey, log)
		if err != nil {
			log.Fatal("failed to initialize google maps", zap.Error(err))
		}
		validateCtx, cancelValidate := context.WithTimeout(context.Background(), 30*time.Second)
		google.Validate(validateCtx)
		cancelValidate()
		commercial = google
	} else {
		log.Warn("no google maps API key configured, using free providers only")
	}
	nominatim := geo.NewNominatim(cfg.Maps.NominatimBaseURL, cfg.Maps.NominatimUserAgent, log)
	osrm := geo.NewOSRM(cfg.Maps.OSRMBaseURL, cfg.Maps.NominatimUserAgent, log)

	// Initialize the telemetry fetch pipeline
	fetcher := tracker.NewPageFetcher(cfg.Tracking.RenderWait, log)
	defer fetcher.Close()

	gate := application.NewTelemetryGate(
		fetcher,
		cfg.Tracking.FetchConcurrency,
		cfg.Tracking.FetchTimeout,
		cfg.Tracking.TelemetryTTL,
		log,
	)
	stops := application.NewStopTracker(cfg.Tracking.ExtendedStopThreshold, log)
	geoResolver := application.NewGeoResolver(commercial, nominatim, cfg.Tracking.GeocodeTTL, log)
	distanceResolver := application.NewDistanceResolver(commercial, osrm, geoResolver, cfg.Tracking.DistanceTTL, log)
	scheduler := application.NewGroupScheduler(cfg.Tracking.UpdateInterval, log)

	// Initialize the event notifier
	notifier := events.NewKafkaNotifier(kafkaProducer, log)

	// Initialize application services
	trackingService := application.NewTrackingService(
		groupRepo,
		driverRepo,
		gate,
		stops,
		distanceResolver,
		scheduler,
		notifier,
		log,
	)
	driverService := application.NewDriverService(driverRepo, groupRepo, log)

	// Resume update loops for groups that were tracking at shutdown
	resumeCtx, cancelResume := context.WithTimeout(context.Background(), 10*time.Second)
	if err := trackingService.ResumeLoops(resumeCtx); err != nil {
		log.Error("failed to resume update loops", zap.Error(err))
	}
	cancelResume()

	// Initialize HTTP handlers
	trackingHandler := handler.NewTrackingHandler(trackingService)
	driverHandler := handler.NewDriverHandler(driverService)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-tracking")
	healthHandler.RegisterRoutes(router)

	// Register routes
	trackingHandler.RegisterRoutes(&router.RouterGroup)
	driverHandler.RegisterRoutes(&router.RouterGroup)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-tracking...")

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	// Stop update loops and wait for in-flight ticks
	trackingService.Shutdown()

	log.Info("service-tracking stopped")
}
