package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/bigbite/order-service/internal/payment"
	"github.com/sirupsen/logrus"
)

// IntentLister is the gateway-side view: every payment intent created
// in a window.
type IntentLister interface {
	ListIntents(ctx context.Context, since time.Time) ([]payment.Intent, error)
}

// RefLister is the local view: the gateway references of orders we
// managed to persist.
type RefLister interface {
	GatewayRefsSince(ctx context.Context, since time.Time) ([]string, error)
}

// Result summarizes one sweep.
type Result struct {
	Window          time.Duration    `json:"window"`
	GatewayIntents  int              `json:"gateway_intents"`
	LocalOrders     int              `json:"local_orders"`
	OrphanedIntents []payment.Intent `json:"orphaned_intents"`
	SyncPercentage  float64          `json:"sync_percentage"`
	Timestamp       time.Time        `json:"timestamp"`
}

// Sweeper diffs gateway intents against local orders. Order creation
// registers the intent before inserting the row, so a crash between the
// two leaves an intent with no order; the sweep finds those so money
// held at the gateway is never silently lost.
type Sweeper struct {
	gateway IntentLister
	store   RefLister
	window  time.Duration
	logger  *logrus.Logger
}

func NewSweeper(gateway IntentLister, store RefLister, window time.Duration, logger *logrus.Logger) *Sweeper {
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Sweeper{
		gateway: gateway,
		store:   store,
		window:  window,
		logger:  logger,
	}
}

// Sweep runs one pass over the window ending now.
func (s *Sweeper) Sweep(ctx context.Context) (*Result, error) {
	since := time.Now().Add(-s.window)
	s.logger.WithField("since", since).Info("Starting reconciliation sweep")

	intents, err := s.gateway.ListIntents(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list gateway intents: %w", err)
	}

	refs, err := s.store.GatewayRefsSince(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list local orders: %w", err)
	}

	known := make(map[string]bool, len(refs))
	for _, ref := range refs {
		known[ref] = true
	}

	result := &Result{
		Window:         s.window,
		GatewayIntents: len(intents),
		LocalOrders:    len(refs),
		Timestamp:      time.Now(),
	}

	for _, intent := range intents {
		if !known[intent.ID] {
			result.OrphanedIntents = append(result.OrphanedIntents, intent)
			s.logger.WithFields(logrus.Fields{
				"gateway_order_id": intent.ID,
				"amount":           intent.Amount,
				"receipt":          intent.Receipt,
			}).Warn("Gateway intent has no local order")
		}
	}

	if len(intents) > 0 {
		matched := len(intents) - len(result.OrphanedIntents)
		result.SyncPercentage = float64(matched) / float64(len(intents)) * 100.0
	} else {
		result.SyncPercentage = 100.0
	}

	s.logger.WithFields(logrus.Fields{
		"gateway_intents": result.GatewayIntents,
		"local_orders":    result.LocalOrders,
		"orphaned":        len(result.OrphanedIntents),
		"sync_percentage": result.SyncPercentage,
	}).Info("Reconciliation sweep completed")

	return result, nil
}

// Run sweeps on the given interval until the context is cancelled.
// Failures are logged and the next tick tries again.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reconciliation sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.WithError(err).Error("Reconciliation sweep failed")
			}
		}
	}
}
