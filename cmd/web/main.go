package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"stridelog/internal/auth"
	"stridelog/internal/authstate"
	"stridelog/internal/config"
	transporthttp "stridelog/internal/http"
	"stridelog/internal/identity"
	"stridelog/internal/metrics"
	"stridelog/internal/platform/database"
	"stridelog/internal/platform/logging"
	"stridelog/internal/platform/migrate"
	"stridelog/internal/store"
	"stridelog/internal/strava"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)

	if err := cfg.ValidateIdentity(); err != nil {
		logger.Error("invalid identity configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.ValidateStrava(); err != nil {
		logger.Error("invalid strava configuration", "error", err)
		os.Exit(1)
	}

	repo, cleanup, err := buildRepository(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	gateway := identity.NewClient(cfg.IdentityURL, cfg.IdentityServiceKey)
	stravaClient := strava.NewClient(cfg.StravaClientID, cfg.StravaClientSecret, cfg.AppBaseURL)
	authService := auth.NewService(gateway, repo, cfg.EmailDomain, logger)

	registry := prometheus.NewRegistry()
	recorder := metrics.NewCollector(registry)
	state := authstate.NewStore()

	deps := transporthttp.RouterDeps{
		Gate:     transporthttp.NewGate(gateway, repo, state, recorder, cfg.Environment, logger),
		Strava:   transporthttp.NewStravaHandler(stravaClient, authService, recorder, cfg.Environment, logger),
		Confirm:  transporthttp.NewConfirmHandler(gateway, cfg.Environment, logger),
		Pages:    transporthttp.NewPageHandler(logger),
		Recorder: recorder,
		Registry: registry,
	}
	router := transporthttp.NewRouter(cfg, deps, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    http.DefaultMaxHeaderBytes,
	}

	go func() {
		logger.Info("Stridelog listening", "addr", srv.Addr, "store", cfg.DataStore)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func buildRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Repository, func(), error) {
	if cfg.UseInMemoryStore() {
		logger.Info("using in-memory repository")
		return store.NewMemoryRepository(), nil, nil
	}

	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		_ = db.Close()
	}

	if err := migrate.Apply(ctx, db, logger); err != nil {
		cleanup()
		return nil, nil, err
	}

	logger.Info("connected to postgres")
	return store.NewPostgresRepository(db), cleanup, nil
}
