package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/bigbite/order-service/internal/push"
	"github.com/bigbite/order-service/pkg/models"
	"github.com/sirupsen/logrus"
)

// Server-to-client event names.
const (
	EventPlaceOrder          = "place_order"
	EventReceiveOrder        = "receive_order"
	EventUpdateOrderStatus   = "update_order_status"
	EventPickedUp            = "picked_up"
	EventCancelOrder         = "cancel_order"
	EventReceiveNotification = "receive_notification"
)

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

type Presence interface {
	Connections(userID int64) []string
}

// Channel delivers one event frame to one live connection. Send must not
// block on a slow consumer.
type Channel interface {
	Send(connID, event string, data interface{}) bool
}

type PushPublisher interface {
	Publish(request push.Request) error
}

// Dispatcher persists notification records and fans events out to every
// live connection of each audience member. Persistence happens before
// fan-out so a client that polls instead of listening live still sees
// the record.
type Dispatcher struct {
	store    NotificationStore
	presence Presence
	channel  Channel
	push     PushPublisher
	logger   *logrus.Logger
}

func NewDispatcher(store NotificationStore, presence Presence, channel Channel, pushPublisher PushPublisher, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		presence: presence,
		channel:  channel,
		push:     pushPublisher,
		logger:   logger,
	}
}

// NewNotification builds an unread notification record for an audience.
func NewNotification(message, link string, receivers []int64) *models.Notification {
	return &models.Notification{
		Message:   message,
		Receivers: receivers,
		Link:      link,
		Read:      false,
		CreatedAt: time.Now(),
	}
}

// Notify emits event+payload to every live connection of every user in
// audience. When a notification record is supplied it is persisted first
// and a receive_notification frame follows the event on the same
// connections. A user with no live connections receives nothing in real
// time; the persisted record remains for later retrieval.
func (d *Dispatcher) Notify(ctx context.Context, audience []int64, event string, payload interface{}, notification *models.Notification) error {
	if notification != nil {
		if err := d.store.CreateNotification(ctx, notification); err != nil {
			return fmt.Errorf("failed to persist notification: %w", err)
		}
	}

	for _, userID := range audience {
		conns := d.presence.Connections(userID)
		if len(conns) == 0 {
			d.logger.WithFields(logrus.Fields{
				"user_id": userID,
				"event":   event,
			}).Debug("User not connected, skipping real-time delivery")
			continue
		}

		for _, connID := range conns {
			d.channel.Send(connID, event, payload)
			if notification != nil {
				d.channel.Send(connID, EventReceiveNotification, notification)
			}
		}
	}

	return nil
}

// SendPush queues a push message for a user. Best-effort: failures are
// logged and swallowed so push delivery never fails an order transition.
func (d *Dispatcher) SendPush(ctx context.Context, userID int64, title, body, link string) {
	err := d.push.Publish(push.Request{
		UserID: userID,
		Title:  title,
		Body:   body,
		Link:   link,
	})
	if err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"title":   title,
		}).Error("Failed to queue push message")
	}
}
