package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	app "github.com/questline/storefront/internal/app"
	"github.com/questline/storefront/internal/app/gateway"
	"github.com/questline/storefront/internal/app/httpapi"
	"github.com/questline/storefront/internal/app/storage/postgres"
	"github.com/questline/storefront/internal/config"
	"github.com/questline/storefront/pkg/logger"
)

func main() {
	_ = godotenv.Load() // allow .env for local runs

	cfg, err := config.Load()
	if err != nil {
		logger.NewDefault("main").WithError(err).Error("load configuration")
		os.Exit(1)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log := logger.New("main", level)

	stores, closeDB, err := buildStores(cfg, log)
	if err != nil {
		log.WithError(err).Error("initialise storage")
		os.Exit(1)
	}
	defer closeDB()

	gateways, err := buildGateways(cfg, log)
	if err != nil {
		log.WithError(err).Error("initialise gateways")
		os.Exit(1)
	}

	application, err := app.New(stores, gateways, app.Options{SweepInterval: cfg.SweepInterval}, log)
	if err != nil {
		log.WithError(err).Error("initialise application")
		os.Exit(1)
	}

	ctx := context.Background()
	if err := application.Start(ctx); err != nil {
		log.WithError(err).Error("start application")
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewHandler(application),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("http server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("http server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Warn("application shutdown")
	}
}

// buildStores selects Postgres when DATABASE_URL is set, otherwise the
// in-memory store, and runs migrations on the former.
func buildStores(cfg config.Config, log *logger.Logger) (app.Stores, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set; using in-memory storage")
		return app.Stores{}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return app.Stores{}, nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return app.Stores{}, nil, err
	}
	if err := postgres.Migrate(db); err != nil {
		db.Close()
		return app.Stores{}, nil, err
	}

	store := postgres.New(db)
	return app.Stores{Gifts: store, PreOrders: store}, func() { db.Close() }, nil
}

func buildGateways(cfg config.Config, log *logger.Logger) (app.Gateways, error) {
	client := &http.Client{Timeout: cfg.GatewayTimeout}

	catalog, err := gateway.NewHTTPCatalog(client, cfg.CatalogURL, cfg.CatalogAPIKey, log)
	if err != nil {
		return app.Gateways{}, err
	}
	identity, err := gateway.NewHTTPIdentity(client, cfg.IdentityURL, cfg.IdentityAPIKey, log)
	if err != nil {
		return app.Gateways{}, err
	}
	entitlement, err := gateway.NewHTTPEntitlement(client, cfg.EntitlementURL, cfg.EntitlementAPIKey, log)
	if err != nil {
		return app.Gateways{}, err
	}
	payment, err := gateway.NewHTTPPayment(client, cfg.PaymentURL, cfg.PaymentAPIKey, log)
	if err != nil {
		return app.Gateways{}, err
	}

	gateways := app.Gateways{
		Catalog:     catalog,
		Identity:    identity,
		Entitlement: entitlement,
		Payment:     payment,
	}
	if cfg.NotificationURL != "" {
		notifier, err := gateway.NewHTTPNotifier(client, cfg.NotificationURL, cfg.NotificationAPIKey, log)
		if err != nil {
			return app.Gateways{}, err
		}
		gateways.Notifier = notifier
	}
	return gateways, nil
}
