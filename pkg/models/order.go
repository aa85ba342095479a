package models

import (
	"time"
)

// PaymentStatus tracks the gateway-side state of the money movement.
type PaymentStatus string

const (
	PaymentCreated PaymentStatus = "created"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

type Order struct {
	ID             int64         `json:"id"`
	UserID         int64         `json:"user_id"`
	GatewayOrderID string        `json:"order_id"`
	Receipt        string        `json:"receipt"`
	PaymentID      string        `json:"payment_id"`
	Amount         float64       `json:"amount"`
	DeliveryFee    float64       `json:"delivery_fee"`
	RestaurantID   int64         `json:"restaurant"`
	FoodIDs        []int64       `json:"food"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	Status         OrderStatus   `json:"order_status"`
	PickupBy       *int64        `json:"pickup_by,omitempty"`
	PickupTime     *time.Time    `json:"pickup_time,omitempty"`
	DeliveredTime  *time.Time    `json:"delivered_time,omitempty"`
	Rating         *int          `json:"rating,omitempty"`
	RatingText     *string       `json:"rating_text,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

type Role string

const (
	RoleUser  Role = "user"
	RoleOwner Role = "owner"
	RoleRider Role = "rider"
)

type User struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         Role   `json:"role"`
	RestaurantID int64  `json:"restaurant_id,omitempty"`
	Image        string `json:"image,omitempty"`
}

type Food struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Image       string  `json:"image,omitempty"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Type        string  `json:"type"`
}

type Restaurant struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email"`
	Contact string `json:"contact"`
}

// RiderSummary is the minimal rider view exposed on an enriched order.
type RiderSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// OrderFood is a catalog item annotated with how many units of it the
// order contains.
type OrderFood struct {
	Food
	Count int `json:"count"`
}

// EnrichedOrder is a request-scoped projection of an order joined with
// its food line items and restaurant/rider summaries. The outer fields
// shadow the raw id fields promoted from Order, so clients see resolved
// objects under the same keys.
type EnrichedOrder struct {
	Order
	Food       []OrderFood   `json:"food"`
	Restaurant *Restaurant   `json:"restaurant"`
	Rider      *RiderSummary `json:"rider,omitempty"`
}

type Notification struct {
	ID        int64     `json:"id"`
	Message   string    `json:"message"`
	Receivers []int64   `json:"receiver"`
	Link      string    `json:"link"`
	Read      bool      `json:"mark_as_read"`
	CreatedAt time.Time `json:"created_at"`
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
