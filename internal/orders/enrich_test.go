package orders

import (
	"context"
	"testing"

	"github.com/bigbite/order-service/pkg/models"
)

func TestEnrichOrderCollapsesDuplicateFoods(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeGateway{}, &fakeNotifier{})

	order := &models.Order{
		ID:           1,
		UserID:       1,
		RestaurantID: 10,
		FoodIDs:      []int64{100, 101, 100, 100},
	}

	enriched, err := service.EnrichOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("EnrichOrder failed: %v", err)
	}

	if len(enriched.Food) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(enriched.Food))
	}
	if enriched.Food[0].ID != 100 || enriched.Food[0].Count != 3 {
		t.Errorf("expected first item food 100 x3, got %d x%d", enriched.Food[0].ID, enriched.Food[0].Count)
	}
	if enriched.Food[1].ID != 101 || enriched.Food[1].Count != 1 {
		t.Errorf("expected second item food 101 x1, got %d x%d", enriched.Food[1].ID, enriched.Food[1].Count)
	}
	if enriched.Restaurant == nil || enriched.Restaurant.Name != "Bigbite Corner" {
		t.Errorf("expected restaurant to be resolved, got %+v", enriched.Restaurant)
	}
}

func TestEnrichOrderToleratesMissingReferences(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeGateway{}, &fakeNotifier{})

	ghostRider := int64(42)
	order := &models.Order{
		ID:           1,
		UserID:       1,
		RestaurantID: 999,                  // deleted restaurant
		FoodIDs:      []int64{100, 555},    // 555 no longer in the catalog
		PickupBy:     &ghostRider,          // rider account removed
	}

	enriched, err := service.EnrichOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("expected partial projection, got error: %v", err)
	}

	if len(enriched.Food) != 1 || enriched.Food[0].ID != 100 {
		t.Errorf("expected only the known food to survive, got %+v", enriched.Food)
	}
	if enriched.Restaurant != nil {
		t.Errorf("expected nil restaurant, got %+v", enriched.Restaurant)
	}
	if enriched.Rider != nil {
		t.Errorf("expected nil rider, got %+v", enriched.Rider)
	}
}

func TestEnrichOrderResolvesRider(t *testing.T) {
	store := newFakeStore()
	service := newTestService(store, &fakeGateway{}, &fakeNotifier{})

	rider := int64(3)
	order := &models.Order{ID: 1, UserID: 1, RestaurantID: 10, FoodIDs: []int64{100}, PickupBy: &rider}

	enriched, err := service.EnrichOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("EnrichOrder failed: %v", err)
	}
	if enriched.Rider == nil || enriched.Rider.Name != "Ravi" {
		t.Errorf("expected rider Ravi, got %+v", enriched.Rider)
	}
}
