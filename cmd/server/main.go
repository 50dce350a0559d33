package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"qk-sims/internal/cache"
	"qk-sims/internal/config"
	"qk-sims/internal/history"
	"qk-sims/internal/logger"
	"qk-sims/internal/server"
)

func main() {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Logger: %v", err)
	}
	defer zl.Sync()

	opts := server.OptionsFromConfig(cfg, zl)

	// Redis result cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			zl.Warn("cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			rdb.Close()
		} else {
			defer rdb.Close()
			opts.Cache = cache.NewRedisStore(rdb, "qk-sims:", cfg.CacheTTL)
		}
	}

	// Run history
	var db *history.DB
	if cfg.DBPath != "" {
		db, err = history.NewDB(cfg.DBPath)
		if err != nil {
			zl.Warn("history disabled", zap.String("path", cfg.DBPath), zap.Error(err))
		} else {
			defer db.Close()
			opts.History = db
		}
	}

	zl.Info("starting",
		zap.String("port", cfg.Port),
		zap.String("cache", config.FormatOptional(cfg.RedisAddr)),
		zap.String("history", config.FormatOptional(cfg.DBPath)),
		zap.Float64("kelly_fraction", cfg.KellyFraction),
		zap.Int("default_simulations", cfg.NumSimulations),
		zap.Int("max_simulations", cfg.MaxNumSimulations),
		zap.Int("workers", cfg.SimWorkers),
		zap.Strings("allowed_origins", cfg.AllowedOrigins),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server.New(opts).Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if db != nil {
		go pruneHistory(ctx, db, cfg.HistoryRetention, zl)
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("shutdown signal received, stopping")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("shutdown error", zap.Error(err))
		os.Exit(1)
	}
	zl.Info("stopped gracefully")
}

// pruneHistory drops runs older than retention once per cleanup interval.
func pruneHistory(ctx context.Context, db *history.DB, retention time.Duration, zl *zap.Logger) {
	ticker := time.NewTicker(config.DefaultHistoryCleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.DeleteBefore(ctx, time.Now().Add(-retention))
			if err != nil {
				zl.Warn("history cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				zl.Info("history cleanup", zap.Int64("deleted", n))
			}
		}
	}
}
