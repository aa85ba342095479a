package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow connections from any origin in development
		// In production, you should validate the origin
		return true
	},
}

// Message is a single server-to-client event frame.
type Message struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// clientFrame is what clients send us. The only meaningful frame is
// "register", which binds the connection to a user identity.
type clientFrame struct {
	Event  string `json:"event"`
	UserID int64  `json:"user_id"`
}

const EventRegister = "register"

// Presence is where the hub reports connection lifecycle so notification
// fan-out can resolve a user to live connections.
type Presence interface {
	Register(userID int64, connID string)
	Unregister(connID string)
}

type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan Message
	hub    *Hub
	logger *logrus.Logger
}

// Hub owns all live websocket connections, keyed by connection id.
// Targeted delivery goes through Send; user-to-connection resolution is
// the presence registry's job, not the hub's.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	presence   Presence
	logger     *logrus.Logger
}

func NewHub(presence Presence, logger *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		presence:   presence,
		logger:     logger,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client.id] = client
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.WithFields(logrus.Fields{
				"connection_id": client.id,
				"client_count":  count,
			}).Info("Client connected")

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.presence.Unregister(client.id)
			h.logger.WithFields(logrus.Fields{
				"connection_id": client.id,
				"client_count":  count,
			}).Info("Client disconnected")
		}
	}
}

// Send queues an event for one connection. The send is non-blocking: a
// consumer with a full buffer loses the frame rather than stalling the
// transition that produced it. Returns false if the frame was not queued.
func (h *Hub) Send(connID, event string, data interface{}) bool {
	h.mutex.RLock()
	client, ok := h.clients[connID]
	h.mutex.RUnlock()
	if !ok {
		return false
	}

	message := Message{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	select {
	case client.send <- message:
		return true
	default:
		h.logger.WithFields(logrus.Fields{
			"connection_id": connID,
			"event":         event,
		}).Warn("Send buffer full, dropping message")
		return false
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Error("Failed to upgrade to WebSocket")
		return
	}

	client := &Client{
		id:     uuid.New().String(),
		conn:   conn,
		send:   make(chan Message, 256),
		hub:    h,
		logger: h.logger,
	}

	client.hub.register <- client

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

func (h *Hub) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).Error("WebSocket error")
			}
			break
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.WithError(err).Warn("Ignoring malformed client frame")
			continue
		}

		if frame.Event == EventRegister && frame.UserID > 0 {
			c.hub.presence.Register(frame.UserID, c.id)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}

			data, err := json.Marshal(message)
			if err != nil {
				c.logger.WithError(err).Error("Failed to marshal WebSocket message")
				continue
			}

			w.Write(data)

			// Add queued messages to the current websocket message.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				nextMsg := <-c.send
				nextData, err := json.Marshal(nextMsg)
				if err != nil {
					c.logger.WithError(err).Error("Failed to marshal queued WebSocket message")
					continue
				}
				w.Write(nextData)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
