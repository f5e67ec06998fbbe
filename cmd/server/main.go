package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"schooltrack/internal/app"
	"schooltrack/internal/config"
	"schooltrack/internal/handler"
	internalRedis "schooltrack/internal/redis"
	"schooltrack/internal/repository"
	"schooltrack/internal/repository/postgres"
	"schooltrack/internal/repository/resilient"
	"schooltrack/internal/resilience"
	"schooltrack/internal/service"
	"schooltrack/internal/stream"
	"schooltrack/internal/weather"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load configuration.
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
		)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize New Relic")
		} else {
			log.Info().Str("app", cfg.NewRelic.AppName).Msg("New Relic enabled")
		}
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to PostgreSQL")

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to Redis")

	// Wire dependencies.
	server, tripService := wireServer(db, redisClient, nrApp, cfg, log)

	// Start server in goroutine.
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	// Stop the per-trip sampling loops after the HTTP surface is closed.
	tripService.Shutdown()

	log.Info().Msg("server exited")
}

// wireServer wires all dependencies and returns the HTTP server plus the trip
// service so shutdown can drain its sampling loops.
func wireServer(db *sql.DB, redisClient *redis.Client, nrApp *newrelic.Application, cfg *config.Config, log zerolog.Logger) (*http.Server, *service.TripService) {
	// Redis-backed stores.
	positionStore := internalRedis.NewPositionStore(redisClient)
	snapshotStore := internalRedis.NewSnapshotStore(redisClient)
	feed := internalRedis.NewChangeFeed(redisClient, log)

	// Repositories. Directory reads fall back to last-known snapshots when
	// the store is unreachable; a missing record is authoritative.
	accessor := resilience.NewAccessor(snapshotStore, log, repository.ErrNotFound)

	tripRepo := postgres.NewTripRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)
	behaviorRepo := postgres.NewBehaviorRepository(db)
	studentRepo := resilient.NewStudentRepository(postgres.NewStudentRepository(db), accessor)
	routeRepo := resilient.NewRouteRepository(postgres.NewRouteRepository(db), accessor)
	userRepo := resilient.NewUserRepository(postgres.NewUserRepository(db), accessor)

	// Subscription layer.
	streamLayer := stream.NewLayer(feed, tripRepo, notificationRepo, cfg.Stream.Buffer, log)

	// Services.
	dispatcher := service.NewNotificationDispatcher(notificationRepo, studentRepo, routeRepo, streamLayer, log)
	weatherService := weather.NewService(
		weather.NewClient(cfg.Weather),
		tripRepo,
		streamLayer,
		dispatcher,
		cfg.Weather.RefreshInterval,
		log,
	)
	tripService := service.NewTripService(
		tripRepo, routeRepo, userRepo,
		positionStore, weatherService, dispatcher, streamLayer, streamLayer,
		cfg.Sampler, log,
	)
	boardingService := service.NewBoardingService(tripRepo, dispatcher, streamLayer, log)
	behaviorService := service.NewBehaviorService(behaviorRepo, tripRepo, userRepo, dispatcher, log)

	// A trip whose sampling has stalled past the window is cancelled by the
	// watchdog so it does not stay IN_PROGRESS forever.
	tripService.SetStallHandler(func(tripID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := tripService.CancelTrip(ctx, tripID, "trip stalled: no position updates"); err != nil {
			log.Error().Err(err).Str("trip_id", tripID).Msg("stall watchdog failed to cancel trip")
		}
	})

	// Handlers.
	tripHandler := handler.NewTripHandler(tripService)
	boardingHandler := handler.NewBoardingHandler(boardingService, tripService)
	behaviorHandler := handler.NewBehaviorHandler(behaviorService, tripService)
	notificationHandler := handler.NewNotificationHandler(dispatcher)
	driverHandler := handler.NewDriverHandler(positionStore)
	streamHandler := handler.NewStreamHandler(streamLayer, tripService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		TripHandler:         tripHandler,
		BoardingHandler:     boardingHandler,
		BehaviorHandler:     behaviorHandler,
		NotificationHandler: notificationHandler,
		DriverHandler:       driverHandler,
		StreamHandler:       streamHandler,
		RedisClient:         redisClient,
		NewRelicApp:         nrApp,
	})

	// Create HTTP server. No WriteTimeout: /v1/stream connections stay open
	// for the life of the subscription.
	return &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
	}, tripService
}
