package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/bigbite/order-service/internal/config"
	"github.com/bigbite/order-service/internal/mailer"
	"github.com/bigbite/order-service/internal/notify"
	"github.com/bigbite/order-service/internal/orders"
	"github.com/bigbite/order-service/internal/payment"
	"github.com/bigbite/order-service/internal/presence"
	"github.com/bigbite/order-service/internal/push"
	"github.com/bigbite/order-service/internal/reconcile"
	"github.com/bigbite/order-service/internal/store"
	ws "github.com/bigbite/order-service/internal/websocket"
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

	db, err := store.Open(cfg.DSN(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	tokens := push.NewTokenStore(redisClient)

	pushProducer, err := push.NewProducer(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create push producer")
	}
	defer pushProducer.Close()

	registry := presence.NewRegistry(logger)
	hub := ws.NewHub(registry, logger)
	go hub.Run()

	dispatcher := notify.NewDispatcher(db, registry, hub, pushProducer, logger)
	gateway := payment.NewClient(cfg.GatewayBaseURL, cfg.GatewaySecret, logger)

	var receiptMailer orders.Mailer
	if cfg.SMTPConfigured() {
		receiptMailer = mailer.New(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPFrom, logger)
	} else {
		logger.Warn("SMTP not configured, receipt emails disabled")
	}

	orderService := orders.NewService(db, gateway, dispatcher, receiptMailer, cfg.DeliveryFeePercent, logger)

	router := mux.NewRouter()
	router.HandleFunc("/health", healthCheck(db)).Methods("GET")
	router.HandleFunc("/ws", hub.HandleWebSocket)

	orders.NewHandler(orderService, logger).RegisterRoutes(router)

	notificationHandler := notify.NewHandler(db, logger)
	router.HandleFunc("/notifications/{receiverId}", notificationHandler.ListNotifications).Methods("GET")
	router.HandleFunc("/notifications/{notificationId}/read", notificationHandler.MarkAsRead).Methods("PUT")
	router.HandleFunc("/notifications/{receiverId}/read-all", notificationHandler.MarkAllAsRead).Methods("PUT")

	router.HandleFunc("/push/tokens", push.NewHandler(tokens, logger).RegisterToken).Methods("POST")

	router.Use(loggingMiddleware(logger))

	// Background sweep for gateway intents that never became orders.
	sweeper := reconcile.NewSweeper(gateway, db, cfg.ReconcileWindow, logger)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweeper.Run(sweepCtx, cfg.ReconcileInterval)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Starting order service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")
	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server gracefully stopped")
}

func healthCheck(db *store.Postgres) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","service":"order-service"}`))
			return
		}
		w.Write([]byte(`{"status":"healthy","service":"order-service"}`))
	}
}

func loggingMiddleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start).Milliseconds(),
			}).Info("Request completed")
		})
	}
}
