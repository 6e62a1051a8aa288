// Package main runs the MealBridge API server: donors post surplus food,
// recipient organizations claim it, and both sides are notified with pickup
// contact details.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	app "github.com/mealbridge/mealbridge/internal/app"
	"github.com/mealbridge/mealbridge/internal/app/httpapi"
	"github.com/mealbridge/mealbridge/internal/app/metrics"
	"github.com/mealbridge/mealbridge/internal/app/storage/postgres"
	"github.com/mealbridge/mealbridge/internal/app/storage/rediscache"
	"github.com/mealbridge/mealbridge/internal/auth"
	"github.com/mealbridge/mealbridge/internal/config"
	"github.com/mealbridge/mealbridge/internal/logging"
	"github.com/mealbridge/mealbridge/internal/middleware"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	// Missing .env is fine; system environment still applies.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logging.New("server", cfg.Logging.Level, cfg.Logging.Format)

	tokens, err := auth.NewTokenManager(cfg.Auth.Secret, cfg.TokenTTL())
	if err != nil {
		log.WithError(err).Fatal("configure token manager")
	}

	var stores app.Stores
	if cfg.Database.URL != "" {
		db, err := sqlx.Connect("postgres", cfg.Database.URL)
		if err != nil {
			log.WithError(err).Fatal("connect to postgres")
		}
		defer db.Close()

		if err := runMigrations(cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
			log.WithError(err).Fatal("run migrations")
		}

		store := postgres.New(db)
		stores = app.Stores{
			Users:         store,
			Donations:     store,
			Requests:      store,
			Notifications: store,
			Feedback:      store,
		}
		log.Info("using postgres storage")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory storage")
	}

	var cache *rediscache.Cache
	if cfg.Redis.Address != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable; listing cache disabled")
		} else {
			cache = rediscache.New(client, cfg.CacheTTL(), log)
			log.Info("listing cache enabled")
		}
	}

	application, err := app.New(stores, cache, log)
	if err != nil {
		log.WithError(err).Fatal("initialise application")
	}

	router := httpapi.NewHandler(application, tokens)

	skipAuth := []string{"/api/auth/register", "/api/auth/login", "/api/feedback", "/healthz", "/metrics"}
	authMW := middleware.NewAuthMiddleware(tokens, log, skipAuth)
	limiter := middleware.NewRateLimiter(cfg.Server.RequestsPerSecond, cfg.Server.RateBurst, log)
	limiter.StartCleanup(10 * time.Minute)
	cors := middleware.NewCORSMiddleware(cfg.Server.AllowedOrigins)
	tracing := middleware.NewTracingMiddleware(log)

	handler := cors.Handler(
		tracing.Handler(
			authMW.Handler(
				limiter.Handler(
					metrics.InstrumentHandler(router),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Infof("listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown error")
	}
	log.Info("server stopped")
}

func runMigrations(path, databaseURL string) error {
	m, err := migrate.New("file://"+path, databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
