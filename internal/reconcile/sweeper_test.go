package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bigbite/order-service/internal/payment"
	"github.com/sirupsen/logrus"
)

type fakeGateway struct {
	intents []payment.Intent
	err     error
}

func (f *fakeGateway) ListIntents(_ context.Context, _ time.Time) ([]payment.Intent, error) {
	return f.intents, f.err
}

type fakeRefStore struct {
	refs []string
	err  error
}

func (f *fakeRefStore) GatewayRefsSince(_ context.Context, _ time.Time) ([]string, error) {
	return f.refs, f.err
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestSweepFindsOrphanedIntents(t *testing.T) {
	gateway := &fakeGateway{intents: []payment.Intent{
		{ID: "order_gw_1", Amount: 500},
		{ID: "order_gw_2", Amount: 250},
		{ID: "order_gw_3", Amount: 120},
	}}
	store := &fakeRefStore{refs: []string{"order_gw_1", "order_gw_3"}}

	sweeper := NewSweeper(gateway, store, time.Hour, testLogger())
	result, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if len(result.OrphanedIntents) != 1 || result.OrphanedIntents[0].ID != "order_gw_2" {
		t.Errorf("expected order_gw_2 to be orphaned, got %+v", result.OrphanedIntents)
	}
	if result.GatewayIntents != 3 || result.LocalOrders != 2 {
		t.Errorf("unexpected counts: %+v", result)
	}
}

func TestSweepAllMatchedReportsFullSync(t *testing.T) {
	gateway := &fakeGateway{intents: []payment.Intent{{ID: "order_gw_1"}}}
	store := &fakeRefStore{refs: []string{"order_gw_1"}}

	sweeper := NewSweeper(gateway, store, time.Hour, testLogger())
	result, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if len(result.OrphanedIntents) != 0 {
		t.Errorf("expected no orphans, got %+v", result.OrphanedIntents)
	}
	if result.SyncPercentage != 100.0 {
		t.Errorf("expected 100%% sync, got %v", result.SyncPercentage)
	}
}

func TestSweepEmptyWindow(t *testing.T) {
	sweeper := NewSweeper(&fakeGateway{}, &fakeRefStore{}, time.Hour, testLogger())
	result, err := sweeper.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}
	if result.SyncPercentage != 100.0 {
		t.Errorf("expected 100%% sync for empty window, got %v", result.SyncPercentage)
	}
}

func TestSweepPropagatesGatewayError(t *testing.T) {
	gateway := &fakeGateway{err: errors.New("gateway down")}
	sweeper := NewSweeper(gateway, &fakeRefStore{}, time.Hour, testLogger())
	if _, err := sweeper.Sweep(context.Background()); err == nil {
		t.Fatal("expected error when the gateway listing fails")
	}
}
