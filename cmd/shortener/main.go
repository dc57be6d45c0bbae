package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nmalakhov/shortly/internal/config"
	"github.com/nmalakhov/shortly/internal/handler"
	"github.com/nmalakhov/shortly/internal/ratelimit"
	"github.com/nmalakhov/shortly/internal/service"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	sugar := logger.Sugar()

	sugar.Infow("Starting URL shortener service")

	cfg, err := config.ParseFlags()
	if err != nil {
		sugar.Fatalw("Configuration error",
			"error", err.Error())
	}

	sugar.Infow("Configuration loaded",
		"server_address", cfg.ServerAddress,
		"redis_addr", cfg.RedisAddr,
		"rate_limit", cfg.RateLimit,
		"rate_window", cfg.RateWindow,
		"resolve_hosts", cfg.ResolveHosts,
	)

	if err := run(cfg, logger); err != nil {
		sugar.Fatalw(err.Error(), "event", "run server")
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	defer pingCancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		// The admission gate fails open, so a missing Redis only costs
		// abuse protection, not availability.
		logger.Error("Redis unreachable at startup", zap.Error(err))
	}

	limiter := ratelimit.New(redisClient, cfg.RateLimit, time.Duration(cfg.RateWindow)*time.Second)

	shortenerService := service.NewShortenerService(cfg.DatabaseDSN, cfg.ResolveHosts, logger)
	defer shortenerService.Close()

	h := handler.NewHandler(shortenerService, limiter, logger)
	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: r,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server starting", zap.String("address", cfg.ServerAddress))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("Shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
