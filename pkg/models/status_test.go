package models

import "testing"

func TestCanTransitionToForwardSequence(t *testing.T) {
	sequence := []OrderStatus{
		StatusOrderPlaced,
		StatusPreparing,
		StatusReadyForPickup,
		StatusOutForDelivery,
		StatusDelivered,
	}

	for i := 0; i < len(sequence)-1; i++ {
		if !sequence[i].CanTransitionTo(sequence[i+1]) {
			t.Errorf("expected %s -> %s to be allowed", sequence[i], sequence[i+1])
		}
	}
}

func TestCanTransitionToRejectsBackwardAndSkips(t *testing.T) {
	tests := []struct {
		name string
		from OrderStatus
		to   OrderStatus
	}{
		{"backward to placed", StatusPreparing, StatusOrderPlaced},
		{"backward from delivery", StatusOutForDelivery, StatusReadyForPickup},
		{"skip preparing", StatusOrderPlaced, StatusReadyForPickup},
		{"skip to delivered", StatusPreparing, StatusDelivered},
		{"out of terminal delivered", StatusDelivered, StatusOutForDelivery},
		{"out of terminal cancelled", StatusCancelled, StatusPreparing},
		{"out of terminal failed", StatusOrderFailed, StatusOrderPlaced},
		{"failure after payment", StatusPreparing, StatusOrderFailed},
		{"self transition", StatusPreparing, StatusPreparing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.from.CanTransitionTo(tt.to) {
				t.Errorf("expected %s -> %s to be rejected", tt.from, tt.to)
			}
		})
	}
}

func TestCancelReachableFromAllPreDeliveryStates(t *testing.T) {
	for _, from := range []OrderStatus{
		StatusOrderPlaced,
		StatusPreparing,
		StatusReadyForPickup,
		StatusOutForDelivery,
	} {
		if !from.CanTransitionTo(StatusCancelled) {
			t.Errorf("expected %s -> cancelled to be allowed", from)
		}
	}
}

func TestPrecedesFollowsLifecycleOrderNotNumericOrder(t *testing.T) {
	tests := []struct {
		name string
		s    OrderStatus
		o    OrderStatus
		want bool
	}{
		{"placed before pickup despite larger value", StatusOrderPlaced, StatusOutForDelivery, true},
		{"placed before preparing", StatusOrderPlaced, StatusPreparing, true},
		{"preparing before delivery", StatusPreparing, StatusOutForDelivery, true},
		{"ready before delivery", StatusReadyForPickup, StatusOutForDelivery, true},
		{"delivery not before itself", StatusOutForDelivery, StatusOutForDelivery, false},
		{"delivered after delivery", StatusDelivered, StatusOutForDelivery, false},
		{"cancelled off the path", StatusCancelled, StatusOutForDelivery, false},
		{"failed off the path", StatusOrderFailed, StatusOutForDelivery, false},
		{"nothing precedes an off-path status", StatusOrderPlaced, StatusCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.s.Precedes(tt.o); got != tt.want {
				t.Errorf("Precedes(%s, %s) = %v, want %v", tt.s, tt.o, got, tt.want)
			}
		})
	}
}

func TestTerminalStates(t *testing.T) {
	for status, terminal := range map[OrderStatus]bool{
		StatusOrderPlaced:    false,
		StatusPreparing:      false,
		StatusReadyForPickup: false,
		StatusOutForDelivery: false,
		StatusDelivered:      true,
		StatusCancelled:      true,
		StatusOrderFailed:    true,
	} {
		if status.Terminal() != terminal {
			t.Errorf("Terminal(%s) = %v, want %v", status, status.Terminal(), terminal)
		}
	}
}

func TestValid(t *testing.T) {
	if OrderStatus(0).Valid() || OrderStatus(8).Valid() {
		t.Error("expected out-of-range statuses to be invalid")
	}
	if !StatusOrderPlaced.Valid() || !StatusOrderFailed.Valid() {
		t.Error("expected enum bounds to be valid")
	}
}
