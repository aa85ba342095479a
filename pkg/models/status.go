package models

// OrderStatus is the closed set of lifecycle states an order moves
// through. The numeric values are part of the persisted and client-facing
// contract and must not be renumbered.
type OrderStatus int

const (
	StatusPreparing      OrderStatus = 1
	StatusReadyForPickup OrderStatus = 2
	StatusOutForDelivery OrderStatus = 3
	StatusDelivered      OrderStatus = 4
	StatusCancelled      OrderStatus = 5
	StatusOrderPlaced    OrderStatus = 6
	StatusOrderFailed    OrderStatus = 7
)

func (s OrderStatus) String() string {
	switch s {
	case StatusPreparing:
		return "preparing"
	case StatusReadyForPickup:
		return "ready_for_pickup"
	case StatusOutForDelivery:
		return "out_for_delivery"
	case StatusDelivered:
		return "delivered"
	case StatusCancelled:
		return "cancelled"
	case StatusOrderPlaced:
		return "order_placed"
	case StatusOrderFailed:
		return "order_failed"
	default:
		return "unknown"
	}
}

// transitions is the full from-state -> allowed to-states table.
// Status only ever moves forward along the delivery sequence; cancellation
// branches off any pre-delivery state and payment failure only off the
// payment-pending state.
var transitions = map[OrderStatus][]OrderStatus{
	StatusOrderPlaced:    {StatusPreparing, StatusCancelled, StatusOrderFailed},
	StatusPreparing:      {StatusReadyForPickup, StatusCancelled},
	StatusReadyForPickup: {StatusOutForDelivery, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered, StatusCancelled},
}

func (s OrderStatus) Valid() bool {
	return s >= StatusPreparing && s <= StatusOrderFailed
}

// Terminal reports whether no further transition can leave s.
func (s OrderStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// sequence is each status's position on the forward delivery path. The
// numeric enum values are a persisted contract and do not follow
// lifecycle order (ORDER_PLACED is 6), so ordering questions must go
// through this table, never through < or > on the raw values.
var sequence = map[OrderStatus]int{
	StatusOrderPlaced:    0,
	StatusPreparing:      1,
	StatusReadyForPickup: 2,
	StatusOutForDelivery: 3,
	StatusDelivered:      4,
}

// Precedes reports whether s sits before other on the delivery path.
// Statuses off the path (cancelled, failed) precede nothing.
func (s OrderStatus) Precedes(other OrderStatus) bool {
	pos, onPath := sequence[s]
	if !onPath {
		return false
	}
	otherPos, onPath := sequence[other]
	if !onPath {
		return false
	}
	return pos < otherPos
}

// CanTransitionTo reports whether moving from s to next is a legal step
// of the lifecycle. Anything not in the table is rejected, which makes
// backward writes and stage-skips impossible by construction.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
