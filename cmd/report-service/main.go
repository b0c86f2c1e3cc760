package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pharmacy/pharmacy-backend/internal/report/consumers"
	"github.com/pharmacy/pharmacy-backend/internal/report/handler"
	"github.com/pharmacy/pharmacy-backend/internal/report/repository"
	"github.com/pharmacy/pharmacy-backend/internal/report/service"
	"github.com/pharmacy/pharmacy-backend/pkg/config"
	"github.com/pharmacy/pharmacy-backend/pkg/database"
	"github.com/pharmacy/pharmacy-backend/pkg/discovery"
	"github.com/pharmacy/pharmacy-backend/pkg/httputil"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
	"github.com/pharmacy/pharmacy-backend/pkg/messaging"
)

func main() {
	cfg, err := config.LoadWithValidation(config.ReportService)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(config.ReportService, cfg.Server.Environment, cfg.Server.LogLevel)
	log.Info().Msg("starting Report Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(context.Background(), database.ReportMigrations()); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
	}

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	if err := rmq.DeclareDeadLetterQueue(config.ReportService); err != nil {
		log.Warn().Err(err).Msg("failed to declare dead letter queue")
	}

	recorder := service.NewRecorder(repository.NewReportRequestRepository(db), log)
	reportHandler := handler.NewReportHandler(recorder, log)

	// Start report event consumer
	reportConsumer, err := consumers.NewReportEventConsumer(rmq, recorder, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create report event consumer")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := reportConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start report event consumer")
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  config.ReportService,
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	reportHandler.Mount(r)

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

	deregister := discovery.RegisterService(cfg, config.ReportService, log)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	deregister()

	// Cancel context to stop the consumer
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
