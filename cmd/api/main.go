package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"debt_sustainability/pkg/api/dsa"
	"debt_sustainability/pkg/core/config"
	"debt_sustainability/pkg/core/metrics"
	"debt_sustainability/pkg/core/pipeline"
	"debt_sustainability/pkg/core/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	logger := config.NewLogger(os.Getenv("LOG_LEVEL"), os.Stdout)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	logger = config.NewLogger(cfg.LogLevel, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres is optional; without it runs go to the file cache.
	if cfg.DatabaseURL != "" {
		if err := store.InitDB(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx, store.GetPool()); err != nil {
			logger.Fatalf("Failed to create schema: %v", err)
		}
		logger.Info("Persisting runs to Postgres")
	} else {
		logger.WithField("dir", cfg.CacheDir).Info("DATABASE_URL not set, persisting runs to the file cache")
	}

	m := metrics.New(nil)
	orch := pipeline.NewOrchestrator(logger, m)
	orch.SetRepository(store.NewRunStore(store.GetPool(), cfg.CacheDir, logger))

	h := dsa.NewHandler(orch, logger, dsa.Defaults{
		Simulation:         cfg.Simulation(),
		Percentiles:        cfg.Percentiles,
		Seed:               cfg.Seed,
		Scenarios:          cfg.Scenarios(),
		Revenue:            cfg.Revenue(),
		RevenueComposition: cfg.RevenueComposition(),
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	h.Register(r)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Shutdown failed")
		}
	}()

	logger.WithFields(logrus.Fields{
		"addr":    cfg.APIAddr,
		"paths":   cfg.NumPaths,
		"horizon": cfg.Horizon(),
	}).Info("Starting server")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("Server failed: %v", err)
	}
}
