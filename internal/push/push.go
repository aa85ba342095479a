package push

import "time"

const (
	Topic    = "notification.push"
	DLQTopic = "notification.push.dlq"
)

// Request is one push message queued for asynchronous delivery to a
// user's device. Delivery is best-effort; the request path never waits
// on it.
type Request struct {
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Link      string    `json:"link"`
	EventTime time.Time `json:"event_time"`
}
