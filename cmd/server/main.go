// Package main is the entry point for the LacyLights bulb pattern server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/bbernstein/lacylights-bulbs/internal/api"
	"github.com/bbernstein/lacylights-bulbs/internal/config"
	"github.com/bbernstein/lacylights-bulbs/internal/database"
	"github.com/bbernstein/lacylights-bulbs/internal/database/repositories"
	"github.com/bbernstein/lacylights-bulbs/internal/services/device"
	"github.com/bbernstein/lacylights-bulbs/internal/services/mqtt"
	"github.com/bbernstein/lacylights-bulbs/internal/services/pattern"
	"github.com/bbernstein/lacylights-bulbs/internal/services/playback"
	"github.com/bbernstein/lacylights-bulbs/internal/services/pubsub"
	"github.com/bbernstein/lacylights-bulbs/internal/services/scheduler"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	printBanner(cfg)

	policy, err := playback.ParseDevicePolicy(cfg.RunPolicy())
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, err := database.Connect(database.Config{
		URL:         cfg.DatabaseURL,
		MaxIdleConn: 1,
		MaxOpenConn: 1,
		Debug:       cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close() }()

	runRepo := repositories.NewPatternRunRepository(db)
	scheduleRepo := repositories.NewScheduleRepository(db)

	bulbs := device.NewClient(device.Config{
		BaseURL: cfg.BulbAPIBaseURL,
		APIKey:  cfg.BulbAPIKey,
		Timeout: cfg.BulbAPITimeout,
		Rate:    cfg.BulbCommandRate,
		Burst:   cfg.BulbCommandBurst,
	})

	var seqOpts []pattern.Option
	if cfg.PatternRandomSeed != 0 {
		seqOpts = append(seqOpts, pattern.WithSeed(cfg.PatternRandomSeed))
	}
	sequencer := pattern.NewSequencer(bulbs, seqOpts...)

	playbackService := playback.NewService(sequencer, runRepo, policy)
	events := pubsub.New()

	var notifier *mqtt.Notifier
	if cfg.MQTTEnabled {
		notifier = mqtt.NewNotifier(mqtt.Config{
			Broker:      cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
		}, playbackService.CancelDevice)
		if err := notifier.Connect(); err != nil {
			log.Printf("Warning: %v, retrying in background", err)
		}
	}

	playbackService.SetUpdateCallback(func(status *playback.RunStatus) {
		events.Publish(pubsub.TopicPatternRunUpdated, status.DeviceID, status)
		if notifier != nil {
			notifier.PublishRunStatus(status)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := api.Deps{
		Playback: playbackService,
		Devices:  bulbs,
		History:  runRepo,
		PubSub:   events,
	}

	var schedules *scheduler.Scheduler
	if cfg.SchedulerEnabled {
		schedules = scheduler.New(scheduleRepo, playbackService)
		schedules.SetChangeCallback(func() {
			events.PublishAll(pubsub.TopicSchedulesUpdated, struct{}{})
		})
		if err := schedules.Start(ctx); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		deps.Schedules = schedules
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newRouter(cfg, api.NewServer(deps)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Printf("Server listening on http://localhost:%s\n", cfg.Port)
		log.Printf("WebSocket endpoint: ws://localhost:%s/ws\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down server...")

		// Cleanup services in reverse order
		if schedules != nil {
			schedules.Stop()
		}
		playbackService.Cleanup()
		if notifier != nil {
			notifier.Disconnect()
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("❌ %v", err)
	}

	log.Println("Server stopped")
}

// newRouter builds the HTTP router with middleware, the health check and the API routes.
func newRouter(cfg *config.Config, apiServer *api.Server) http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin, "http://localhost:3000", "http://localhost:4000"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		Debug:            cfg.IsDevelopment(),
	})
	router.Use(corsMiddleware.Handler)

	router.Get("/health", healthCheckHandler)
	apiServer.Routes(router)

	return router
}

// healthCheckHandler returns the server health status.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := fmt.Sprintf(`{
  "status": "ok",
  "timestamp": "%s",
  "version": "%s",
  "uptime": "N/A"
}`, time.Now().UTC().Format(time.RFC3339), Version)

	_, _ = w.Write([]byte(response))
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println("============================================")
	fmt.Println("  LacyLights Bulb Pattern Server")
	fmt.Printf("  Version: %s\n", Version)
	fmt.Printf("  Build:   %s\n", BuildTime)
	fmt.Printf("  Commit:  %s\n", GitCommit)
	fmt.Println("============================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Port:        %s\n", cfg.Port)
	fmt.Printf("  Database:    %s\n", cfg.DatabaseURL)
	fmt.Printf("  Bulb API:    %s\n", cfg.BulbAPIBaseURL)
	fmt.Printf("  Run policy:  %s\n", cfg.RunPolicy())
	fmt.Printf("  Scheduler:   %v\n", cfg.SchedulerEnabled)
	fmt.Printf("  MQTT:        %v\n", cfg.MQTTEnabled)
	fmt.Println("============================================")
}
