package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/noah-isme/toko-pos/internal/config"
	"github.com/noah-isme/toko-pos/internal/notify"
	"github.com/noah-isme/toko-pos/internal/obs"
	"github.com/noah-isme/toko-pos/internal/pricing"
)

func main() {
	pricing.UsePlainJSONNumbers()
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisConn, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}

	metrics := obs.NewDomainMetrics(cfg.MetricsNamespace, prometheus.DefaultRegisterer)
	handler := notify.Receipts{Log: logger, Issued: metrics.Receipt}

	srv := asynq.NewServer(redisConn, asynq.Config{
		Concurrency:     cfg.WorkerConcurrency,
		Queues:          map[string]int{cfg.WorkerQueue: 1},
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          taskLogger{log: logger},
		ErrorHandler: asynq.ErrorHandlerFunc(func(_ context.Context, task *asynq.Task, err error) {
			logger.Error().Err(err).Str("task", task.Type()).Msg("task failed")
		}),
	})
	if err := srv.Start(notify.NewServeMux(handler)); err != nil {
		logger.Fatal().Err(err).Msg("start worker")
	}
	logger.Info().Str("queue", cfg.WorkerQueue).Int("concurrency", cfg.WorkerConcurrency).Msg("worker starting")

	<-ctx.Done()
	srv.Shutdown()
	logger.Info().Msg("worker shutdown complete")
}
