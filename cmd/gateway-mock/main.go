package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/bigbite/order-service/internal/payment"
)

// In-memory payment gateway for local development. It mimics the real
// gateway's surface: intent creation, refunds, intent listing for the
// reconciliation sweep, and a capture simulator that calls the order
// service back with a properly signed webhook.
type gatewayStore struct {
	mutex   sync.RWMutex
	intents []payment.Intent
	nextID  int
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	secret := getEnv("PAYMENT_GATEWAY_SECRET", "dev-secret")
	refundStatus := getEnv("MOCK_REFUND_STATUS", payment.RefundProcessed)
	callbackURL := getEnv("ORDER_SERVICE_URL", "http://localhost:8080")

	store := &gatewayStore{}

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "service": "gateway-mock"})
	}).Methods("GET")
	router.HandleFunc("/v1/orders", createIntent(logger, store)).Methods("POST")
	router.HandleFunc("/v1/orders", listIntents(logger, store)).Methods("GET")
	router.HandleFunc("/v1/refunds", refund(logger, refundStatus)).Methods("POST")
	router.HandleFunc("/v1/simulate/capture", simulateCapture(logger, secret, callbackURL)).Methods("POST")

	port := getEnv("GATEWAY_MOCK_PORT", "8090")
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", port).Info("Starting payment gateway mock")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down gateway mock...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("HTTP server forced to shutdown")
	}
	logger.Info("Gateway mock stopped")
}

func createIntent(logger *logrus.Logger, store *gatewayStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Amount   int64  `json:"amount"`
			Currency string `json:"currency"`
			Receipt  string `json:"receipt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		// Simulate gateway latency.
		time.Sleep(time.Duration(rand.Intn(200)+50) * time.Millisecond)

		store.mutex.Lock()
		store.nextID++
		intent := payment.Intent{
			ID:        fmt.Sprintf("order_mock_%d", store.nextID),
			Amount:    float64(body.Amount) / 100,
			Receipt:   body.Receipt,
			Status:    "created",
			CreatedAt: time.Now(),
		}
		store.intents = append(store.intents, intent)
		total := len(store.intents)
		store.mutex.Unlock()

		logger.WithFields(logrus.Fields{
			"gateway_order_id": intent.ID,
			"amount":           body.Amount,
			"total_stored":     total,
		}).Info("Payment intent created")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(intent)
	}
}

func listIntents(logger *logrus.Logger, store *gatewayStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var since time.Time
		if from := r.URL.Query().Get("from"); from != "" {
			if unix, err := strconv.ParseInt(from, 10, 64); err == nil {
				since = time.Unix(unix, 0)
			}
		}

		store.mutex.RLock()
		items := make([]payment.Intent, 0, len(store.intents))
		for _, intent := range store.intents {
			if intent.CreatedAt.After(since) {
				items = append(items, intent)
			}
		}
		store.mutex.RUnlock()

		logger.WithField("count", len(items)).Debug("Listed intents")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": items,
			"count": len(items),
		})
	}
}

func refund(logger *logrus.Logger, status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			PaymentID string `json:"payment_id"`
			Amount    int64  `json:"amount"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		result := payment.RefundResult{
			ID:        fmt.Sprintf("rfnd_mock_%d", rand.Intn(1_000_000)),
			PaymentID: body.PaymentID,
			Amount:    float64(body.Amount) / 100,
			Status:    status,
		}

		logger.WithFields(logrus.Fields{
			"payment_id": body.PaymentID,
			"status":     result.Status,
		}).Info("Refund processed")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	}
}

// simulateCapture plays the part of the gateway's webhook: it signs the
// order/payment pair and posts it to the order service's capture
// endpoint.
func simulateCapture(logger *logrus.Logger, secret, callbackURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			OrderID   string `json:"order_id"`
			PaymentID string `json:"payment_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.PaymentID == "" {
			body.PaymentID = fmt.Sprintf("pay_mock_%d", rand.Intn(1_000_000))
		}

		payload, _ := json.Marshal(map[string]string{
			"order_id":   body.OrderID,
			"payment_id": body.PaymentID,
		})
		req, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
			callbackURL+"/orders/capture", bytes.NewReader(payload))
		if err != nil {
			http.Error(w, "failed to build callback", http.StatusInternalServerError)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Payment-Signature", payment.Sign(body.OrderID, body.PaymentID, secret))

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			logger.WithError(err).Error("Capture callback failed")
			http.Error(w, "callback failed", http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		logger.WithFields(logrus.Fields{
			"gateway_order_id": body.OrderID,
			"payment_id":       body.PaymentID,
			"callback_status":  resp.StatusCode,
		}).Info("Capture callback delivered")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"payment_id": body.PaymentID,
			"status":     resp.StatusCode,
		})
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
