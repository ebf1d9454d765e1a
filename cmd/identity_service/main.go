package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	fs "cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/marketday/identity-service/internal/identity_service/adapters/blobstore"
	"github.com/marketday/identity-service/internal/identity_service/adapters/fireauth"
	"github.com/marketday/identity-service/internal/identity_service/adapters/trigger"
	"github.com/marketday/identity-service/internal/identity_service/app"
	"github.com/marketday/identity-service/internal/identity_service/repository"
	fsrepo "github.com/marketday/identity-service/internal/identity_service/repository/firestore"
	"github.com/marketday/identity-service/internal/identity_service/repository/sqlitecache"
	transporthttp "github.com/marketday/identity-service/internal/identity_service/transport/http"
	"github.com/marketday/identity-service/internal/platform/config"
	"github.com/marketday/identity-service/internal/platform/logger"
	"github.com/marketday/identity-service/internal/platform/messagebroker"
)

func main() {
	cfg, err := config.Load("./configs", "config.defaults")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel)
	appLogger.Info("Identity service starting...", "port", cfg.HTTPPort, "log_level", cfg.LogLevel)

	ctx := context.Background()

	fsClient, err := fs.NewClient(ctx, cfg.FirestoreProjectID)
	if err != nil {
		appLogger.Error("Failed to create Firestore client", "error", err)
		os.Exit(1)
	}
	defer fsClient.Close()

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		appLogger.Error("Failed to create Storage client", "error", err)
		os.Exit(1)
	}
	defer storageClient.Close()

	fbApp, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirestoreProjectID})
	if err != nil {
		appLogger.Error("Failed to initialize Firebase app", "error", err)
		os.Exit(1)
	}
	authClient, err := fbApp.Auth(ctx)
	if err != nil {
		appLogger.Error("Failed to create Firebase auth client", "error", err)
		os.Exit(1)
	}

	cache, err := sqlitecache.Open(cfg.CachePath)
	if err != nil {
		appLogger.Error("Failed to open local cache", "path", cfg.CachePath, "error", err)
		os.Exit(1)
	}
	defer cache.Close()

	// NATS is optional: without it, lifecycle events are simply not published.
	var events repository.EventPublisher
	if cfg.NATSUrl != "" {
		natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, "identity-service", appLogger)
		if err != nil {
			appLogger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		events = natsClient
		appLogger.Info("Successfully connected to NATS")
	} else {
		appLogger.Warn("NATS URL not configured; lifecycle events disabled")
	}

	remote := fsrepo.NewRemoteStore(fsClient, appLogger)
	blobs := blobstore.NewGCSStore(storageClient, cfg.StorageBucket, appLogger)
	idp := fireauth.NewProvider(authClient, cfg.RecentAuthWindow(), appLogger)
	eraseTrigger := trigger.NewHTTPTrigger(appLogger, cfg.TriggerURL, cfg.TriggerSigningSecret,
		&http.Client{Timeout: cfg.TriggerTimeout()})

	migrator := app.NewReferenceMigrator(remote, appLogger)
	consolidator := app.NewProfileConsolidator(remote, migrator, events, appLogger)
	resolver := app.NewIdentityResolver(remote, cache, consolidator, cfg.LookupTimeout(), cfg.ContactRetryDelay(), appLogger)
	saga := app.NewDeletionSaga(cache, eraseTrigger, remote, blobs, idp, events, app.SagaTimeouts{
		Trigger:     cfg.TriggerTimeout(),
		Lookup:      cfg.LookupTimeout(),
		PrincipalOp: cfg.PrincipalOpTimeout(),
	}, appLogger)

	validate := validator.New()
	handler := transporthttp.NewIdentityHandler(resolver, saga, remote, cache, appLogger, validate)

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(transporthttp.PrometheusMetricsMiddleware)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())

	router.Group(func(r chi.Router) {
		r.Use(transporthttp.AuthMiddleware(idp, appLogger))
		handler.RegisterRoutes(r)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLogger.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		quitChan := make(chan os.Signal, 1)
		signal.Notify(quitChan, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-quitChan:
			appLogger.Info("Shutdown signal received", "signal", sig.String())
		case <-gctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Identity service shut down successfully.")
}
