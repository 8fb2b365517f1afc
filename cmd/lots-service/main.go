package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/farmaflow/farmaflow-backend/internal/lots/consumers"
	"github.com/farmaflow/farmaflow-backend/internal/lots/events"
	"github.com/farmaflow/farmaflow-backend/internal/lots/handler"
	"github.com/farmaflow/farmaflow-backend/internal/lots/repository"
	"github.com/farmaflow/farmaflow-backend/internal/lots/service"
	"github.com/farmaflow/farmaflow-backend/pkg/config"
	"github.com/farmaflow/farmaflow-backend/pkg/database"
	"github.com/farmaflow/farmaflow-backend/pkg/httputil"
	"github.com/farmaflow/farmaflow-backend/pkg/logger"
	"github.com/farmaflow/farmaflow-backend/pkg/messaging"
	"github.com/farmaflow/farmaflow-backend/pkg/session"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const serviceName = "lots-service"

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(serviceName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(serviceName, cfg.Server.Environment)
	log.Info().Msg("starting Lots Service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := repository.EnsureSchema(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	rmq, err := messaging.New(ctx, &cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	if err := rmq.DeclareDeadLetterQueue(serviceName); err != nil {
		log.Fatal().Err(err).Msg("failed to declare dead letter queue")
	}

	publisher, err := events.NewLotEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Repositories and service
	lotRepo := repository.NewLotRepository(db)
	lossRepo := repository.NewLossRepository(db)
	snapshots := service.NewSnapshot(cfg.Expiry.SnapshotTTL, cfg.Expiry.AnnounceTTL)
	lotService := service.NewLotService(lotRepo, lossRepo, publisher, snapshots, cfg.Expiry, time.Now, log)

	lotConsumer, err := consumers.NewLotEventConsumer(rmq, lotService, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create lot event consumer")
	}
	if err := lotConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start lot event consumer")
	}

	scheduler := service.NewRefreshScheduler(lotService, cfg.Expiry.RefreshInterval, log)
	scheduler.Start(ctx)

	// Handlers
	lotHandler := handler.NewLotHandler(lotService, log)
	lossHandler := handler.NewLossHandler(lotService, log)
	pricingHandler := handler.NewPricingHandler(lotService, log)

	limiter := httputil.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)
	verifier := session.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  serviceName,
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(httputil.Authenticate(verifier))
		handler.Mount(r, lotHandler, lossHandler, pricingHandler)
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop the refresh task and consumers before draining HTTP
	scheduler.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
