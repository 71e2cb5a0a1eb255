package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xtrntr/cadran/internal/api"
	"github.com/xtrntr/cadran/internal/auction"
	"github.com/xtrntr/cadran/internal/broadcast"
	"github.com/xtrntr/cadran/internal/config"
	"github.com/xtrntr/cadran/internal/db"
	"github.com/xtrntr/cadran/internal/feed"
	"github.com/xtrntr/cadran/internal/monitoring"
	"github.com/xtrntr/cadran/internal/publisher"
)

// Main entry point: sets up the lot registry, its event sinks, and the HTTP server
func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx := context.Background()
	sinkCtx, stopSinks := context.WithCancel(ctx)
	defer stopSinks()

	events := feed.New(logger)
	registry := auction.NewRegistry(
		auction.WithTickInterval(cfg.TickInterval),
		auction.WithDefaultBudget(cfg.BudgetTicks()),
		auction.WithPublisher(events),
		auction.WithLogger(logger),
	)

	// Initialize database connection
	var database *db.DB
	if cfg.DatabaseURL != "" {
		database, err = db.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", slog.Any("error", err))
			os.Exit(1)
		}
		defer database.Close(ctx)
		events.Attach(sinkCtx, "postgres", database)
	}

	// Initialize NATS connection
	var natsConn *nats.Conn
	if cfg.NatsURL != "" {
		var natsPublisher *publisher.NATSPublisher
		natsPublisher, natsConn, err = publisher.Connect(cfg.NatsURL, cfg.NatsSubjectPrefix)
		if err != nil {
			logger.Error("failed to connect to NATS", slog.Any("error", err))
			os.Exit(1)
		}
		events.Attach(sinkCtx, "nats", natsPublisher)
		logger.Info("connected to NATS", slog.String("url", cfg.NatsURL))
	}

	hub := broadcast.NewHub(registry.Snapshots, logger)
	events.Attach(sinkCtx, "websocket", hub)

	monitor := monitoring.NewMonitor(registry.Snapshots)
	events.Attach(sinkCtx, "metrics", monitor)

	if err := loadLots(ctx, registry, database, logger); err != nil {
		logger.Error("failed to load lots", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize API handlers
	handler := api.NewHandler(registry, logger)

	// Set up HTTP router
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Enable CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Link"},
		MaxAge:         300,
	}))

	handler.Routes(r)
	r.Get("/ws", hub.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	// Start periodic snapshot broadcast and metric collection
	go hub.Run(sinkCtx, cfg.BroadcastInterval)
	go monitor.Run(sinkCtx, 15*time.Second)

	server := &http.Server{
		Addr:        cfg.ServerAddr,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced to shutdown", slog.Any("error", err))
	}

	// stop clocks first so the feed's backlog is final, then let every sink drain it
	registry.Close()
	events.Close()
	hub.Close()
	if natsConn != nil {
		if err := natsConn.Drain(); err != nil {
			logger.Warn("failed to drain NATS connection", slog.Any("error", err))
		}
	}

	logger.Info("server stopped gracefully")
}

// loadLots restores persisted lots, or opens the default catalog when nothing is stored
func loadLots(ctx context.Context, registry *auction.Registry, database *db.DB, logger *slog.Logger) error {
	if database != nil {
		lots, err := database.ListLots(ctx)
		if err != nil {
			return err
		}
		for _, lot := range lots {
			if err := registry.Restore(lot); err != nil {
				return err
			}
		}
		if len(lots) > 0 {
			logger.Info("restored lots", slog.Int("count", len(lots)))
			return nil
		}
	}

	for _, d := range auction.DefaultCatalog {
		if _, err := registry.Create(d); err != nil {
			return err
		}
	}
	return nil
}
