package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/bigbite/order-service/internal/config"
	"github.com/bigbite/order-service/internal/push"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	tokens := push.NewTokenStore(redisClient)
	gateway := push.NewGateway(cfg.PushGatewayURL, cfg.PushAPIKey, logger)

	var worker *push.Worker
	for i := 0; i < 10; i++ {
		worker, err = push.NewWorker(cfg.KafkaBrokers, "push-worker-group", tokens, gateway, logger)
		if err == nil {
			logger.Info("Successfully connected to Kafka")
			break
		}
		logger.WithError(err).WithField("attempt", i+1).Warn("Failed to connect to Kafka, retrying...")
		time.Sleep(5 * time.Second)
	}
	if err != nil {
		logger.WithError(err).Fatal("Failed to create push worker after retries")
	}
	defer worker.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.WithField("brokers", cfg.KafkaBrokers).Info("Starting push worker")
		if err := worker.Start(ctx); err != nil {
			logger.WithError(err).Error("Push worker stopped with error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down push worker...")
	cancel()

	metrics := worker.GetMetrics()
	logger.WithFields(logrus.Fields{
		"processed": metrics.ProcessedCount,
		"delivered": metrics.SuccessCount,
		"retries":   metrics.RetryCount,
		"skipped":   metrics.SkippedCount,
		"dlq":       metrics.DLQCount,
	}).Info("Push worker stopped")
}
