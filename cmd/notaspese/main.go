package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"notaspese/internal/amqp"
	"notaspese/internal/audit"
	"notaspese/internal/config"
	apphttp "notaspese/internal/http"
	"notaspese/internal/log"
	"notaspese/internal/middleware/ratelimit"
	"notaspese/internal/storage"
)

func main() {
	// A missing .env file is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Setup("info").Error("load configuration", "error", err)
		os.Exit(1)
	}
	logger := log.Setup(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var recorder audit.Recorder = audit.LogRecorder{}
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("connect audit bus", "error", err, "url", cfg.AMQPURL)
			os.Exit(1)
		}
		defer client.Close()
		recorder = client
		logger.Info("audit events published to AMQP", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Warn("no AMQP URL configured, audit events are only logged")
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, recorder)
	if err != nil {
		logger.Error("open repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()
	repo.SetTimeout(cfg.StorageTimeout)

	limiter := ratelimit.NewLimiter(ratelimit.Config{
		Limit:  cfg.RateLimitRequests,
		Window: cfg.RateLimitWindow,
	})

	srv := apphttp.NewServer(":"+cfg.Port, repo, limiter, prometheus.NewRegistry())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", "port", cfg.Port,
			"rate_limit", cfg.RateLimitRequests, "rate_window", cfg.RateLimitWindow.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
