package orders

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/bigbite/order-service/internal/notify"
	"github.com/bigbite/order-service/internal/payment"
	"github.com/bigbite/order-service/pkg/models"
	"github.com/sirupsen/logrus"
)

// Store is the persistence surface the order service needs. Lookup
// methods return (nil, nil) when the row does not exist; conditional
// writes return false when their WHERE clause matched nothing, which is
// how races and repeats are detected without explicit locking.
type Store interface {
	CreateOrder(ctx context.Context, order *models.Order) (int64, error)
	OrderByID(ctx context.Context, id int64) (*models.Order, error)
	OrderByGatewayRef(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	Orders(ctx context.Context) ([]models.Order, error)
	OrdersByUser(ctx context.Context, userID int64) ([]models.Order, error)

	MarkPaid(ctx context.Context, gatewayOrderID, paymentID string) (bool, error)
	MarkPaymentFailed(ctx context.Context, gatewayOrderID, paymentID string) (bool, error)
	ClaimPickup(ctx context.Context, orderID, riderID int64, at time.Time) (bool, error)
	AdvanceStatus(ctx context.Context, orderID int64, from, to models.OrderStatus) (bool, error)
	MarkDelivered(ctx context.Context, orderID int64, at time.Time) (bool, error)
	SetRating(ctx context.Context, orderID int64, rating int, text string) (bool, error)

	UserByID(ctx context.Context, id int64) (*models.User, error)
	UserIDsByRole(ctx context.Context, role models.Role, restaurantID int64) ([]int64, error)
	FoodsByIDs(ctx context.Context, ids []int64) (map[int64]models.Food, error)
	RestaurantByID(ctx context.Context, id int64) (*models.Restaurant, error)
}

// Gateway is the slice of the payment client the service depends on.
type Gateway interface {
	CreateIntent(ctx context.Context, amount float64, receipt string) (*payment.Intent, error)
	Refund(ctx context.Context, paymentID string, amount float64) (*payment.RefundResult, error)
	VerifySignature(orderRef, paymentRef, signature string) bool
}

// Notifier fans order events out to live connections and queues push
// messages. Notification persistence failures surface as errors from
// Notify; push failures are swallowed by the implementation.
type Notifier interface {
	Notify(ctx context.Context, audience []int64, event string, payload interface{}, notification *models.Notification) error
	SendPush(ctx context.Context, userID int64, title, body, link string)
}

// Mailer sends the order receipt email. May be nil when SMTP is not
// configured.
type Mailer interface {
	SendOrderReceipt(to, name, restaurant string, amount, deliveryFee float64) error
}

// Service owns the order lifecycle: creation against the payment
// gateway, the payment capture callbacks, the forward-only status state
// machine, cancellation with refunds, and rating.
type Service struct {
	store      Store
	gateway    Gateway
	notifier   Notifier
	mailer     Mailer
	feePercent float64
	logger     *logrus.Logger
}

func NewService(store Store, gateway Gateway, notifier Notifier, mailer Mailer, feePercent float64, logger *logrus.Logger) *Service {
	if feePercent <= 0 {
		feePercent = 5
	}
	return &Service{
		store:      store,
		gateway:    gateway,
		notifier:   notifier,
		mailer:     mailer,
		feePercent: feePercent,
		logger:     logger,
	}
}

type CreateOrderRequest struct {
	UserID       int64
	Amount       float64
	RestaurantID int64
	FoodIDs      []int64
	Email        string
}

// CreateOrder registers a payment intent with the gateway and persists
// the order in ORDER_PLACED with payment status "created". If the local
// insert fails after the intent exists, the intent is orphaned on the
// gateway side; that gap is logged loudly and closed later by the
// reconciliation sweep.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*models.Order, error) {
	if req.UserID <= 0 {
		return nil, fmt.Errorf("%w: user id is required", ErrValidation)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if req.RestaurantID <= 0 {
		return nil, fmt.Errorf("%w: restaurant is required", ErrValidation)
	}
	if len(req.FoodIDs) == 0 {
		return nil, fmt.Errorf("%w: order must contain at least one food item", ErrValidation)
	}

	receipt := fmt.Sprintf("receipt_%d", time.Now().UnixMilli())
	intent, err := s.gateway.CreateIntent(ctx, req.Amount, receipt)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", req.UserID).Error("Payment intent creation failed")
		return nil, fmt.Errorf("%w: %v", ErrGateway, err)
	}

	order := &models.Order{
		UserID:         req.UserID,
		GatewayOrderID: intent.ID,
		Receipt:        receipt,
		Amount:         req.Amount,
		DeliveryFee:    math.Round(req.Amount*s.feePercent) / 100,
		RestaurantID:   req.RestaurantID,
		FoodIDs:        req.FoodIDs,
		PaymentStatus:  models.PaymentCreated,
		Status:         models.StatusOrderPlaced,
		CreatedAt:      time.Now(),
	}

	id, err := s.store.CreateOrder(ctx, order)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"user_id":          req.UserID,
			"gateway_order_id": intent.ID,
			"receipt":          receipt,
		}).Error("Order insert failed after gateway intent was created, intent is orphaned until the next reconciliation sweep")
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	order.ID = id

	s.logger.WithFields(logrus.Fields{
		"order_id":         order.ID,
		"gateway_order_id": order.GatewayOrderID,
		"amount":           order.Amount,
	}).Info("Order created")

	return order, nil
}

// CapturePayment handles the gateway's success callback. The signature
// is verified before anything is touched; the paid flip is a conditional
// update so a replayed callback becomes a no-op instead of a second
// round of notifications and emails.
func (s *Service) CapturePayment(ctx context.Context, gatewayOrderID, paymentID, signature string) error {
	if !s.gateway.VerifySignature(gatewayOrderID, paymentID, signature) {
		s.logger.WithField("gateway_order_id", gatewayOrderID).Warn("Payment capture rejected, signature mismatch")
		return ErrInvalidSignature
	}

	updated, err := s.store.MarkPaid(ctx, gatewayOrderID, paymentID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	order, err := s.store.OrderByGatewayRef(ctx, gatewayOrderID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if order == nil {
		return ErrNotFound
	}

	if !updated {
		s.logger.WithField("order_id", order.ID).Info("Payment already captured, callback ignored")
		return nil
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"payment_id": paymentID,
	}).Info("Payment captured")

	restaurantName := "the restaurant"
	if restaurant, err := s.store.RestaurantByID(ctx, order.RestaurantID); err != nil {
		s.logger.WithError(err).Warn("Failed to load restaurant for order notifications")
	} else if restaurant != nil {
		restaurantName = restaurant.Name
	}

	link := orderLink(order.ID)
	payload := s.enrichForPayload(ctx, order)

	userMessage := fmt.Sprintf("Order placed! You ordered from %s.", restaurantName)
	s.dispatch(ctx, []int64{order.UserID}, notify.EventPlaceOrder, payload,
		notify.NewNotification(userMessage, link, []int64{order.UserID}))
	s.notifier.SendPush(ctx, order.UserID, "Order placed", userMessage, link)

	owners, err := s.store.UserIDsByRole(ctx, models.RoleOwner, order.RestaurantID)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load restaurant owners for order notifications")
	}
	if len(owners) > 0 {
		ownerMessage := "A new order has arrived!"
		s.dispatch(ctx, owners, notify.EventReceiveOrder, payload,
			notify.NewNotification(ownerMessage, link, owners))
		s.notifier.SendPush(ctx, owners[0], "New order", ownerMessage, link)
	}

	s.sendReceipt(order, restaurantName)
	return nil
}

// CapturePaymentFailure records the gateway's failure callback: payment
// status "failed" and terminal order status ORDER_FAILED. Replays are
// no-ops like successful captures.
func (s *Service) CapturePaymentFailure(ctx context.Context, gatewayOrderID, paymentID, signature string) error {
	if !s.gateway.VerifySignature(gatewayOrderID, paymentID, signature) {
		return ErrInvalidSignature
	}

	updated, err := s.store.MarkPaymentFailed(ctx, gatewayOrderID, paymentID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !updated {
		order, err := s.store.OrderByGatewayRef(ctx, gatewayOrderID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if order == nil {
			return ErrNotFound
		}
		s.logger.WithField("order_id", order.ID).Info("Payment failure already recorded, callback ignored")
		return nil
	}

	s.logger.WithField("gateway_order_id", gatewayOrderID).Warn("Payment failed, order marked as failed")
	return nil
}

// UpdateOrderStatus is the single entry point for lifecycle moves. The
// request shape selects one of three branches: a pickup claim (pickupBy
// set, status below OUT_FOR_DELIVERY), a delivery confirmation (pickupBy
// set, requested status DELIVERED), or a plain forward advance.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID int64, newStatus models.OrderStatus, pickupBy *int64) (*models.Order, error) {
	if !newStatus.Valid() {
		return nil, fmt.Errorf("%w: unknown status %d", ErrValidation, newStatus)
	}

	order, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if order == nil {
		return nil, ErrNotFound
	}

	switch {
	case pickupBy != nil && newStatus == models.StatusDelivered:
		err = s.confirmDelivery(ctx, order, *pickupBy)
	case pickupBy != nil:
		err = s.claimPickup(ctx, order, *pickupBy, newStatus)
	default:
		err = s.advanceStatus(ctx, order, newStatus)
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

// claimPickup assigns a rider to an order that nobody holds yet. The
// assignment is a conditional update on pickup_by IS NULL, so under
// concurrent claims exactly one rider wins and every other caller gets
// ErrAlreadyClaimed.
func (s *Service) claimPickup(ctx context.Context, order *models.Order, riderID int64, newStatus models.OrderStatus) error {
	if !order.Status.Precedes(models.StatusOutForDelivery) {
		return fmt.Errorf("%w: order %d is past pickup in status %s", ErrInvalidTransition, order.ID, order.Status)
	}
	if !newStatus.Precedes(models.StatusOutForDelivery) {
		return fmt.Errorf("%w: pickup claim cannot set status %s", ErrInvalidTransition, newStatus)
	}
	if order.PickupBy != nil {
		return ErrAlreadyClaimed
	}

	now := time.Now()
	claimed, err := s.store.ClaimPickup(ctx, order.ID, riderID, now)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !claimed {
		return ErrAlreadyClaimed
	}
	order.PickupBy = &riderID
	order.PickupTime = &now

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"rider_id": riderID,
	}).Info("Order claimed for pickup")

	riders, err := s.store.UserIDsByRole(ctx, models.RoleRider, 0)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load riders for pickup notification")
		return nil
	}
	others := excludeID(riders, riderID)
	if len(others) > 0 {
		message := fmt.Sprintf("Order #%d has been picked up!", order.ID)
		s.dispatch(ctx, others, notify.EventPickedUp, map[string]int64{
			"order_id":  order.ID,
			"pickup_by": riderID,
		}, notify.NewNotification(message, orderLink(order.ID), others))
	}
	return nil
}

// confirmDelivery closes an OUT_FOR_DELIVERY order. The status flip is a
// conditional update keyed on the current status, so a duplicate confirm
// loses the race and reports an invalid transition.
func (s *Service) confirmDelivery(ctx context.Context, order *models.Order, riderID int64) error {
	if !order.Status.CanTransitionTo(models.StatusDelivered) {
		return fmt.Errorf("%w: cannot deliver from status %s", ErrInvalidTransition, order.Status)
	}

	now := time.Now()
	updated, err := s.store.MarkDelivered(ctx, order.ID, now)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !updated {
		return fmt.Errorf("%w: order %d is no longer out for delivery", ErrInvalidTransition, order.ID)
	}
	order.Status = models.StatusDelivered
	order.DeliveredTime = &now

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"rider_id": riderID,
	}).Info("Order delivered")

	message := statusMessage(models.StatusDelivered)
	link := orderLink(order.ID)
	s.dispatch(ctx, []int64{order.UserID}, notify.EventUpdateOrderStatus, order,
		notify.NewNotification(message, link, []int64{order.UserID}))
	s.notifier.SendPush(ctx, order.UserID, "Order update", message, link)

	riders, err := s.store.UserIDsByRole(ctx, models.RoleRider, 0)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load riders for delivery notification")
		return nil
	}
	// Event only for the other riders, no inbox record. It just clears
	// the order from their available list.
	s.dispatch(ctx, excludeID(riders, riderID), notify.EventUpdateOrderStatus, order, nil)
	return nil
}

// advanceStatus applies a forward move from the transition table with a
// compare-and-set on the current status. Reaching OUT_FOR_DELIVERY also
// broadcasts the order to every rider.
func (s *Service) advanceStatus(ctx context.Context, order *models.Order, newStatus models.OrderStatus) error {
	// ORDER_FAILED is written only by the signature-verified payment
	// failure callback, never by a plain status update.
	if newStatus == models.StatusOrderFailed {
		return fmt.Errorf("%w: status %s cannot be set directly", ErrValidation, newStatus)
	}
	if !order.Status.CanTransitionTo(newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, newStatus)
	}

	previous := order.Status
	var updated bool
	var err error
	if newStatus == models.StatusDelivered {
		now := time.Now()
		updated, err = s.store.MarkDelivered(ctx, order.ID, now)
		if updated {
			order.DeliveredTime = &now
		}
	} else {
		updated, err = s.store.AdvanceStatus(ctx, order.ID, previous, newStatus)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !updated {
		return fmt.Errorf("%w: order %d moved past %s concurrently", ErrInvalidTransition, order.ID, previous)
	}
	order.Status = newStatus

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"from":     previous.String(),
		"to":       newStatus.String(),
	}).Info("Order status updated")

	message := statusMessage(newStatus)
	link := orderLink(order.ID)

	if newStatus == models.StatusOutForDelivery {
		riders, err := s.store.UserIDsByRole(ctx, models.RoleRider, 0)
		if err != nil {
			s.logger.WithError(err).Warn("Failed to load riders for delivery broadcast")
		} else if len(riders) > 0 {
			riderMessage := fmt.Sprintf("Order #%d is ready for delivery. Accept it to pick it up!", order.ID)
			s.dispatch(ctx, riders, notify.EventReceiveOrder, s.enrichForPayload(ctx, order),
				notify.NewNotification(riderMessage, link, riders))
		}
		s.notifier.SendPush(ctx, order.UserID, "Order update", message, link)
	}

	s.dispatch(ctx, []int64{order.UserID}, notify.EventUpdateOrderStatus, order,
		notify.NewNotification(message, link, []int64{order.UserID}))
	return nil
}

// CancelOrder moves a non-terminal order to CANCELLED. When a refund
// amount is given the gateway must report the refund as processed before
// any local state changes; a declined refund leaves the order untouched.
func (s *Service) CancelOrder(ctx context.Context, orderID int64, paymentID string, refundAmount float64) (*models.Order, error) {
	order, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if order == nil {
		return nil, ErrNotFound
	}
	if !order.Status.CanTransitionTo(models.StatusCancelled) {
		return nil, fmt.Errorf("%w: cannot cancel from status %s", ErrInvalidTransition, order.Status)
	}

	refunded := false
	if refundAmount > 0 {
		result, err := s.gateway.Refund(ctx, paymentID, refundAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGateway, err)
		}
		if result.Status != payment.RefundProcessed {
			s.logger.WithFields(logrus.Fields{
				"order_id": order.ID,
				"status":   result.Status,
			}).Warn("Refund not processed, cancellation aborted")
			return nil, fmt.Errorf("%w: gateway reported status %q", ErrRefundFailed, result.Status)
		}
		refunded = true
	}

	previous := order.Status
	updated, err := s.store.AdvanceStatus(ctx, order.ID, previous, models.StatusCancelled)
	if err != nil {
		if refunded {
			s.logger.WithError(err).WithField("order_id", order.ID).Error("Cancellation write failed after refund was processed, order needs manual review")
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !updated {
		return nil, fmt.Errorf("%w: order %d moved past %s concurrently", ErrInvalidTransition, order.ID, previous)
	}
	order.Status = models.StatusCancelled

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"refunded": refunded,
	}).Info("Order cancelled")

	message := statusMessage(models.StatusCancelled)
	if refunded {
		message = fmt.Sprintf("%s Your refund of %.2f is on its way.", message, refundAmount)
	}
	link := orderLink(order.ID)
	s.dispatch(ctx, []int64{order.UserID}, notify.EventCancelOrder, order,
		notify.NewNotification(message, link, []int64{order.UserID}))
	s.notifier.SendPush(ctx, order.UserID, "Order cancelled", message, link)
	return order, nil
}

// RateOrder records a 1-5 rating on a delivered order, once.
func (s *Service) RateOrder(ctx context.Context, orderID int64, rating int, text string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}

	order, err := s.store.OrderByID(ctx, orderID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if order == nil {
		return ErrNotFound
	}
	if order.Status != models.StatusDelivered {
		return fmt.Errorf("%w: only delivered orders can be rated", ErrValidation)
	}
	if order.Rating != nil {
		return ErrAlreadyRated
	}

	updated, err := s.store.SetRating(ctx, orderID, rating, text)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !updated {
		return ErrAlreadyRated
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"rating":   rating,
	}).Info("Order rated")
	return nil
}

// dispatch forwards to the notifier and logs failures. Once the store
// write behind a transition has committed the transition stands, so a
// notification problem is reported but never unwinds it.
func (s *Service) dispatch(ctx context.Context, audience []int64, event string, payload interface{}, notification *models.Notification) {
	if err := s.notifier.Notify(ctx, audience, event, payload, notification); err != nil {
		s.logger.WithError(err).WithField("event", event).Error("Failed to dispatch order notification")
	}
}

func (s *Service) sendReceipt(order *models.Order, restaurantName string) {
	if s.mailer == nil {
		return
	}
	user, err := s.store.UserByID(context.Background(), order.UserID)
	if err != nil || user == nil || user.Email == "" {
		s.logger.WithField("user_id", order.UserID).Warn("No email address for receipt, skipping")
		return
	}
	go func() {
		if err := s.mailer.SendOrderReceipt(user.Email, user.Name, restaurantName, order.Amount, order.DeliveryFee); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Error("Failed to send receipt email")
		}
	}()
}

func orderLink(orderID int64) string {
	return fmt.Sprintf("/orders/%d", orderID)
}

func excludeID(ids []int64, skip int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != skip {
			out = append(out, id)
		}
	}
	return out
}
