package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	routes "github.com/mnuddindev/otakushelf/internal/api"
	"github.com/mnuddindev/otakushelf/internal/auth"
	"github.com/mnuddindev/otakushelf/internal/config"
	"github.com/mnuddindev/otakushelf/internal/db"
	"github.com/mnuddindev/otakushelf/internal/models"
	"github.com/mnuddindev/otakushelf/pkg/catalog"
	"github.com/mnuddindev/otakushelf/pkg/logger"
	storage "github.com/mnuddindev/otakushelf/pkg/redis"
	gormLogger "gorm.io/gorm/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	log, err := logger.NewLogger(ctx,
		logger.WithAppName(cfg.AppName),
		logger.WithOutputDir(cfg.LogDir),
		logger.WithFileOutput(cfg.LogToFile),
		logger.WithMaxFileSize(cfg.LogMaxSizeMB),
		logger.WithMaxDays(cfg.LogMaxAgeDays),
		logger.WithLevel(cfg.LogLevel),
		logger.WithConsole(!cfg.IsProduction()),
	)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer log.Close()

	redisClient, err := storage.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Error(ctx).WithFields("addr", cfg.RedisAddr, "error", err).Logs("Failed to initialize Redis")
		os.Exit(1)
	}
	defer redisClient.Close(log)

	gormLevel := gormLogger.Warn
	if cfg.LogLevel == "debug" {
		gormLevel = gormLogger.Info
	}
	gormDB, err := db.NewDB(
		ctx,
		cfg.DatabaseURL,
		models.RegisterModels(),
		db.WithLogger(log, gormLevel),
		db.WithPool(25, 10, 30*time.Minute),
	)
	if err != nil {
		log.Error(ctx).WithFields("error", err).Logs("Failed to initialize database")
		os.Exit(1)
	}
	defer db.CloseDB(log)

	provider := auth.NewLocalProvider(
		gormDB,
		redisClient,
		auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL),
		cfg.RefreshTokenTTL,
		log,
	)
	anilist := catalog.New(cfg.AniListURL, catalog.WithRetry(3, 500*time.Millisecond))

	app := routes.NewApp(cfg)
	routes.NewRoutes(ctx, app, routes.Deps{
		Config:   cfg,
		DB:       gormDB,
		Redis:    redisClient,
		Logger:   log,
		Provider: provider,
		Catalog:  anilist,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx).WithFields("addr", cfg.ServerAddr, "environment", cfg.Environment).Logs("Server starting")
		errCh <- app.Listen(cfg.ServerAddr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error(ctx).WithFields("error", err).Logs("Server stopped unexpectedly")
		}
	case <-ctx.Done():
		log.Info(context.Background()).Logs("Shutdown signal received")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Error(context.Background()).WithFields("error", err).Logs("Graceful shutdown failed")
		}
	}
	log.Info(context.Background()).Logs("Server exited")
}
