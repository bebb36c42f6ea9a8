package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridedispatch/internal/app"
	"ridedispatch/internal/config"
	"ridedispatch/internal/domain"
	"ridedispatch/internal/handler"
	"ridedispatch/internal/maps"
	"ridedispatch/internal/middleware"
	"ridedispatch/internal/realtime"
	internalRedis "ridedispatch/internal/redis"
	"ridedispatch/internal/repository/postgres"
	"ridedispatch/internal/service"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	rates := rateTable(cfg.Fare)
	if err := rates.Validate(); err != nil {
		log.Fatalf("invalid fare configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// New Relic goes first so the database and Redis clients can be instrumented.
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
			log.Printf("failed to initialize New Relic: %v", err)
		} else {
			log.Printf("New Relic enabled: app=%s", cfg.NewRelic.AppName)
			defer nrApp.Shutdown(5 * time.Second)
		}
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Connected to Redis")

	distance, err := maps.NewDistanceService(cfg.Maps.APIKey)
	if err != nil {
		log.Fatalf("failed to create distance service: %v", err)
	}

	server, hub := wireServer(db, redisClient, distance, rates, nrApp, cfg)

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Hijacked websocket connections are not tracked by Shutdown; close them
	// through the hub so their presence bindings are released.
	hub.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// wireServer wires all dependencies and returns the HTTP server together
// with the delivery hub, whose lifecycle the caller owns.
func wireServer(db *sql.DB, redisClient *redis.Client, distance *maps.DistanceService, rates service.RateTable, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, *realtime.Hub) {
	// Redis stores.
	presenceStore := internalRedis.NewPresenceStore(redisClient)
	locationStore := internalRedis.NewLocationStore(redisClient)

	// Repositories.
	rideRepo := postgres.NewRideRepository(db)
	userRepo := postgres.NewUserRepository(db)
	captainRepo := postgres.NewCaptainRepository(db)

	// Delivery channel.
	hub := realtime.NewHub(presenceStore, locationStore, realtime.HubConfig{
		SendBuffer:     cfg.Dispatch.SendBuffer,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})

	// Services.
	fareService := service.NewFareService(distance, rates)
	dispatchService := service.NewDispatchService(presenceStore, hub, service.DispatchConfig{
		DeliveryTimeout: cfg.Dispatch.DeliveryTimeout,
		MaxParallel:     cfg.Dispatch.MaxParallel,
	})
	notificationService := service.NewNotificationService(presenceStore, hub, cfg.Dispatch.DeliveryTimeout)
	rideService := service.NewRideService(service.RideServiceDeps{
		RideRepo:    rideRepo,
		UserRepo:    userRepo,
		CaptainRepo: captainRepo,
		Fares:       fareService,
		Codes:       service.NewCodeGenerator(),
		Broadcaster: dispatchService,
		Notifier:    notificationService,
		OTPDigits:   cfg.Dispatch.OTPDigits,
	})

	// Handlers.
	rideHandler := handler.NewRideHandler(rideService, fareService)
	socketHandler := handler.NewSocketHandler(hub)

	router := app.NewRouter(app.RouterDeps{
		RideHandler:   rideHandler,
		SocketHandler: socketHandler,
		Authenticator: middleware.NewAuthenticator(cfg.Auth.JWTSecret),
		RedisClient:   redisClient,
		NewRelicApp:   nrApp,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app.WithCORS(router, cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, hub
}

func rateTable(cfg config.FareConfig) service.RateTable {
	return service.RateTable{
		domain.VehicleClassEconomy:  service.Rate(cfg.Economy),
		domain.VehicleClassStandard: service.Rate(cfg.Standard),
		domain.VehicleClassPremium:  service.Rate(cfg.Premium),
	}
}
