package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/lizet96/frontdesk/auth"
	"github.com/lizet96/frontdesk/config"
	"github.com/lizet96/frontdesk/database"
	"github.com/lizet96/frontdesk/handlers"
	"github.com/lizet96/frontdesk/logger"
	"github.com/lizet96/frontdesk/middleware"
	"github.com/lizet96/frontdesk/repository"
	"github.com/lizet96/frontdesk/routes"
)

const tokenPurgeInterval = time.Hour

func main() {
	log := logger.API

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.ConnectDB(cfg.Database); err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer database.CloseDB()
	log.Info("database connection established")

	db, err := database.OpenGorm(database.GetDB())
	if err != nil {
		log.WithError(err).Fatal("failed to open gorm")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("failed to migrate database")
	}
	if cfg.SeedAdminEmail != "" {
		created, err := database.SeedAdmin(ctx, db, cfg.SeedAdminEmail, cfg.SeedAdminPassword)
		if err != nil {
			log.WithError(err).Fatal("failed to seed admin")
		}
		if created {
			log.WithField("email", cfg.SeedAdminEmail).Info("seeded admin account")
		}
	}

	var blacklist auth.Blacklist = auth.NewMemoryBlacklist(10 * time.Minute)
	if cfg.RedisURL != "" {
		rb, err := auth.NewRedisBlacklist(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		defer rb.Close()
		blacklist = rb
		log.Info("using redis token blacklist")
	}

	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL, blacklist)
	store := repository.New(db)
	h := handlers.New(store, tokens)

	app := fiber.New(fiber.Config{
		ErrorHandler: routes.ErrorHandler,
		AppName:      "Frontdesk API v1.0.0",
	})
	routes.SetupRoutes(app, h, middleware.PoolLogSink{Pool: database.GetDB()}, cfg)
	app.Use(routes.NotFound)

	go purgeExpiredTokens(ctx, store)

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
	}()

	log.WithField("port", cfg.Port).Info("frontdesk api listening")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.WithError(err).Error("server stopped")
	}
}

func purgeExpiredTokens(ctx context.Context, store *repository.Store) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.Tokens.PurgeExpired(ctx, now)
			if err != nil {
				logger.API.WithError(err).Warn("failed to purge refresh tokens")
				continue
			}
			if n > 0 {
				logger.API.WithField("rows", n).Info("purged expired refresh tokens")
			}
		}
	}
}
