package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/bigbite/order-service/internal/config"
	"github.com/bigbite/order-service/internal/payment"
	"github.com/bigbite/order-service/internal/reconcile"
	"github.com/bigbite/order-service/internal/store"
)

// One-shot reconciliation sweep, for cron jobs and manual runs. Prints
// the result as JSON and exits non-zero when orphaned intents exist.
func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	db, err := store.Open(cfg.DSN(), logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer db.Close()

	gateway := payment.NewClient(cfg.GatewayBaseURL, cfg.GatewaySecret, logger)
	sweeper := reconcile.NewSweeper(gateway, db, cfg.ReconcileWindow, logger)

	result, err := sweeper.Sweep(context.Background())
	if err != nil {
		logger.WithError(err).Fatal("Reconciliation sweep failed")
	}

	output, _ := json.MarshalIndent(result, "", "  ")
	os.Stdout.Write(output)
	os.Stdout.Write([]byte("\n"))

	if len(result.OrphanedIntents) > 0 {
		os.Exit(1)
	}
}
