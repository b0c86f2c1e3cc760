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
	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/events"
	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/handler"
	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/repository"
	"github.com/pharmacy/pharmacy-backend/internal/pharmacy/service"
	"github.com/pharmacy/pharmacy-backend/pkg/config"
	"github.com/pharmacy/pharmacy-backend/pkg/database"
	"github.com/pharmacy/pharmacy-backend/pkg/discovery"
	"github.com/pharmacy/pharmacy-backend/pkg/httputil"
	"github.com/pharmacy/pharmacy-backend/pkg/lock"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
	"github.com/pharmacy/pharmacy-backend/pkg/mail"
	"github.com/pharmacy/pharmacy-backend/pkg/messaging"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation(config.PharmacyService)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(config.PharmacyService, cfg.Server.Environment, cfg.Server.LogLevel)
	log.Info().Msg("starting Pharmacy Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(context.Background(), database.PharmacyMigrations()); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
	}

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewPharmacyEventPublisher(rmq, config.PharmacyService, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// The inventory check lock is cluster-wide only when Redis is configured
	var (
		locker      lock.Locker
		redisHealth func(ctx context.Context) map[string]string
	)
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()

		redisLocker := lock.NewRedisLocker(client)
		locker = redisLocker
		redisHealth = redisLocker.Health
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using Redis inventory check lock")
	} else {
		locker = lock.NewMemoryLocker()
		log.Warn().Msg("redis not configured, inventory check lock is local to this instance")
	}

	// Initialize repositories
	stores := service.Stores{
		Customers:   repository.NewCustomerRepository(db),
		Employees:   repository.NewEmployeeRepository(db),
		Pharmacies:  repository.NewPharmacyRepository(db),
		Medications: repository.NewMedicationRepository(db),
		Stock:       repository.NewStockRepository(db),
		Orders:      repository.NewOrderRepository(db),
	}

	// Initialize services
	orderService := service.NewOrderService(db, stores, publisher, cfg.Orders, log)
	stockService := service.NewStockService(stores, publisher, log)
	reportService := service.NewReportService(stores.Stock, stores.Orders, publisher, log)
	watchdog := service.NewInventoryWatchdog(stores.Stock, stores.Employees, locker, mail.NewSender(cfg.Mail), publisher, cfg.Inventory, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var scheduler *service.InventoryCheckScheduler
	if cfg.Inventory.CheckEnabled {
		scheduler = service.NewInventoryCheckScheduler(watchdog, cfg.Inventory.CheckInterval, log)
		if err := scheduler.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start inventory check scheduler")
		}
	}

	h := handler.Handlers{
		Orders:    handler.NewOrderHandler(orderService, log),
		Stock:     handler.NewStockHandler(stockService, log),
		Reports:   handler.NewReportHandler(reportService, log),
		Inventory: handler.NewInventoryHandler(watchdog, log),
	}

	// Create router
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]interface{}{
			"status":   "healthy",
			"service":  config.PharmacyService,
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		}
		if redisHealth != nil {
			status["redis"] = redisHealth(r.Context())
		}
		httputil.JSON(w, http.StatusOK, status)
	})

	h.Mount(r)

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

	deregister := discovery.RegisterService(cfg, config.PharmacyService, log)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	deregister()

	// Stop the scheduler before the database goes away
	cancel()
	if scheduler != nil {
		scheduler.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
