package orders

import (
	"context"
	"fmt"

	"github.com/bigbite/order-service/pkg/models"
)

// EnrichOrder joins an order with its food line items, restaurant and
// rider. Duplicate food ids in the order collapse into one line item
// with a count. References that resolve to nothing are dropped or left
// nil so a deleted catalog row never breaks reading the order.
func (s *Service) EnrichOrder(ctx context.Context, order *models.Order) (*models.EnrichedOrder, error) {
	counts := make(map[int64]int, len(order.FoodIDs))
	distinct := make([]int64, 0, len(order.FoodIDs))
	for _, id := range order.FoodIDs {
		if counts[id] == 0 {
			distinct = append(distinct, id)
		}
		counts[id]++
	}

	foods, err := s.store.FoodsByIDs(ctx, distinct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	items := make([]models.OrderFood, 0, len(distinct))
	for _, id := range distinct {
		food, ok := foods[id]
		if !ok {
			s.logger.WithField("food_id", id).Warn("Order references unknown food, dropping line item")
			continue
		}
		items = append(items, models.OrderFood{Food: food, Count: counts[id]})
	}

	enriched := &models.EnrichedOrder{Order: *order, Food: items}

	restaurant, err := s.store.RestaurantByID(ctx, order.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	enriched.Restaurant = restaurant

	if order.PickupBy != nil {
		rider, err := s.store.UserByID(ctx, *order.PickupBy)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if rider != nil {
			enriched.Rider = &models.RiderSummary{ID: rider.ID, Name: rider.Name, Image: rider.Image}
		}
	}

	return enriched, nil
}

// enrichForPayload is the tolerant variant used for event payloads: on
// enrichment failure it falls back to the raw order rather than losing
// the event.
func (s *Service) enrichForPayload(ctx context.Context, order *models.Order) interface{} {
	enriched, err := s.EnrichOrder(ctx, order)
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to enrich order for event payload")
		return order
	}
	return enriched
}

// Orders returns every order, newest first, enriched.
func (s *Service) Orders(ctx context.Context) ([]models.EnrichedOrder, error) {
	rows, err := s.store.Orders(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return s.enrichAll(ctx, rows)
}

// OrdersByUser returns one user's orders, newest first, enriched.
func (s *Service) OrdersByUser(ctx context.Context, userID int64) ([]models.EnrichedOrder, error) {
	rows, err := s.store.OrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return s.enrichAll(ctx, rows)
}

// OrderByGatewayRef resolves an order by its gateway reference, enriched.
func (s *Service) OrderByGatewayRef(ctx context.Context, gatewayOrderID string) (*models.EnrichedOrder, error) {
	order, err := s.store.OrderByGatewayRef(ctx, gatewayOrderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if order == nil {
		return nil, ErrNotFound
	}
	return s.EnrichOrder(ctx, order)
}

func (s *Service) enrichAll(ctx context.Context, rows []models.Order) ([]models.EnrichedOrder, error) {
	enriched := make([]models.EnrichedOrder, 0, len(rows))
	for i := range rows {
		e, err := s.EnrichOrder(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		enriched = append(enriched, *e)
	}
	return enriched, nil
}
