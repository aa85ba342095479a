package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

type fakePresence struct {
	mutex        sync.Mutex
	unregistered []string
}

func (f *fakePresence) Register(userID int64, connID string) {}

func (f *fakePresence) Unregister(connID string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.unregistered = append(f.unregistered, connID)
}

func (f *fakePresence) unregisteredIDs() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]string(nil), f.unregistered...)
}

func newTestHub() *Hub {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return NewHub(&fakePresence{}, logger)
}

// addClient inserts a connection directly into the client map so Send
// can be exercised without a live websocket.
func addClient(hub *Hub, connID string, buffer int) *Client {
	client := &Client{
		id:     connID,
		send:   make(chan Message, buffer),
		hub:    hub,
		logger: hub.logger,
	}
	hub.mutex.Lock()
	hub.clients[connID] = client
	hub.mutex.Unlock()
	return client
}

func TestSendDeliversToRegisteredConnection(t *testing.T) {
	hub := newTestHub()
	client := addClient(hub, "conn-1", 4)

	if !hub.Send("conn-1", "update_order_status", map[string]int64{"order_id": 7}) {
		t.Fatal("expected Send to queue the frame")
	}

	select {
	case message := <-client.send:
		if message.Event != "update_order_status" {
			t.Errorf("expected event update_order_status, got %q", message.Event)
		}
		if message.Timestamp == "" {
			t.Error("expected a timestamp on the frame")
		}
	default:
		t.Fatal("expected a frame in the send buffer")
	}
}

func TestSendToUnknownConnection(t *testing.T) {
	hub := newTestHub()
	if hub.Send("nope", "update_order_status", nil) {
		t.Error("expected Send to report false for an unknown connection id")
	}
}

func TestSendDropsFrameWhenBufferFull(t *testing.T) {
	hub := newTestHub()
	client := addClient(hub, "conn-1", 1)

	if !hub.Send("conn-1", "receive_order", 1) {
		t.Fatal("expected first frame to be queued")
	}
	if hub.Send("conn-1", "receive_order", 2) {
		t.Error("expected Send to drop the frame on a full buffer")
	}

	// The queued frame is untouched and the drop left nothing behind it.
	message := <-client.send
	if message.Event != "receive_order" {
		t.Errorf("expected queued event receive_order, got %q", message.Event)
	}
	if len(client.send) != 0 {
		t.Errorf("expected an empty buffer after the drop, got %d queued", len(client.send))
	}
}

func TestRegisterUnregisterLifecycle(t *testing.T) {
	presence := &fakePresence{}
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	hub := NewHub(presence, logger)
	go hub.Run()

	client := &Client{
		id:     "conn-1",
		send:   make(chan Message, 1),
		hub:    hub,
		logger: logger,
	}

	hub.register <- client
	waitForCount(t, hub, 1)

	hub.unregister <- client
	waitForCount(t, hub, 0)

	if _, open := <-client.send; open {
		t.Error("expected send channel to be closed on unregister")
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ids := presence.unregisteredIDs(); len(ids) == 1 && ids[0] == "conn-1" {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("expected presence unregister for conn-1, got %v", presence.unregisteredIDs())
}

func waitForCount(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.GetClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client count never reached %d (got %d)", want, hub.GetClientCount())
}
