package orders

import "github.com/bigbite/order-service/pkg/models"

var statusMessages = map[models.OrderStatus]string{
	models.StatusPreparing:      "Your order is being prepared!",
	models.StatusReadyForPickup: "Your order is ready for pickup!",
	models.StatusOutForDelivery: "Your order has been picked up and is on its way!",
	models.StatusDelivered:      "Your order has been delivered. Enjoy your meal!",
	models.StatusCancelled:      "Your order has been cancelled!",
}

// statusMessage returns the user-facing phrase for a status change.
func statusMessage(status models.OrderStatus) string {
	if message, ok := statusMessages[status]; ok {
		return message
	}
	return "Your order status has been updated."
}
