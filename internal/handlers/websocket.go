package handlers

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"DROWSY_DETECTOR/go-backend/internal/models"
	"DROWSY_DETECTOR/go-backend/internal/services"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

// Message types exchanged over /ws.
const (
	MsgWelcome       = "WELCOME"
	MsgPing          = "PING"
	MsgPong          = "PONG"
	MsgStatus        = "STATUS"
	MsgStatusChanged = "STATUS_CHANGED"
	MsgError         = "ERROR"
)

type WebSocketMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	ClientID  string      `json:"client_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type wsClient struct {
	conn     *websocket.Conn
	clientID string
	send     chan WebSocketMessage
}

// Hub tracks websocket clients and pushes status transitions to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*wsClient

	max      int
	monitor  Controller
	metrics  *services.Metrics
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewHub(maxClients int, monitor Controller, metrics *services.Metrics, log *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*wsClient),
		max:     maxClients,
		monitor: monitor,
		metrics: metrics,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Count() >= h.max {
		writeError(w, http.StatusServiceUnavailable, "Too many websocket clients", "WS_LIMIT")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.metrics.IncrementWebSocketErrors()
		h.log.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	client := &wsClient{
		conn:     conn,
		clientID: clientID,
		send:     make(chan WebSocketMessage, sendBuffer),
	}
	if !h.register(client) {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "client id in use"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	h.log.WithField("client_id", clientID).Info("Websocket client connected")

	h.deliver(client, WebSocketMessage{
		Type:      MsgWelcome,
		ClientID:  clientID,
		Timestamp: time.Now().Unix(),
		Payload: map[string]interface{}{
			"message": "Connected to drowsiness monitor",
			"version": Version,
		},
	})
	h.deliver(client, h.statusMessage(clientID))

	go h.writePump(client)
	h.readPump(client)
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, taken := h.clients[c.clientID]; taken {
		return false
	}
	h.clients[c.clientID] = c
	h.metrics.IncrementWebSocketConnections()
	return true
}

// unregister closes the client's send channel exactly once.
func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.clients[c.clientID]; ok && cur == c {
		delete(h.clients, c.clientID)
		close(c.send)
		h.metrics.DecrementWebSocketConnections()
	}
}

func (h *Hub) statusMessage(clientID string) WebSocketMessage {
	return WebSocketMessage{
		Type:      MsgStatus,
		ClientID:  clientID,
		Timestamp: time.Now().Unix(),
		Payload:   h.monitor.Snapshot(),
	}
}

func (h *Hub) readPump(c *wsClient) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
		h.log.WithField("client_id", c.clientID).Info("Websocket client disconnected")
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg WebSocketMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.metrics.IncrementWebSocketErrors()
				h.log.WithError(err).WithField("client_id", c.clientID).Warn("Websocket read failed")
			}
			return
		}
		h.metrics.IncrementWebSocketMessages()

		var reply WebSocketMessage
		switch msg.Type {
		case MsgPing:
			reply = WebSocketMessage{Type: MsgPong, ClientID: c.clientID, Timestamp: time.Now().Unix()}
		case MsgStatus:
			reply = h.statusMessage(c.clientID)
		default:
			reply = WebSocketMessage{
				Type:      MsgError,
				ClientID:  c.clientID,
				Timestamp: time.Now().Unix(),
				Payload:   map[string]string{"error": "unknown message type " + msg.Type},
			}
		}
		h.deliver(c, reply)
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				h.metrics.IncrementWebSocketErrors()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// deliver queues msg for one client, dropping it if the client is gone or
// its buffer is full.
func (h *Hub) deliver(c *wsClient, msg WebSocketMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if cur, ok := h.clients[c.clientID]; !ok || cur != c {
		return
	}
	select {
	case c.send <- msg:
	default:
		h.metrics.IncrementWebSocketErrors()
	}
}

// Publish pushes a status transition to every client without blocking.
func (h *Hub) Publish(event models.StatusEvent) {
	msg := WebSocketMessage{
		Type:      MsgStatusChanged,
		Timestamp: event.Timestamp,
		Payload:   event,
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.metrics.IncrementWebSocketErrors()
			h.log.WithField("client_id", id).Warn("Websocket client too slow, status dropped")
		}
	}
}

// CloseAll disconnects every client.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
		h.metrics.DecrementWebSocketConnections()
		h.log.WithField("client_id", id).Info("Closed websocket connection")
	}
}
