package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/cobardes/radia-fm-sub000/internal/model"
)

// Client represents a listener's WebSocket connection
type Client struct {
	StationID string
	Conn      *websocket.Conn
	Send      chan []byte
}

// Hub maintains active WebSocket connections grouped by station
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	StationID string
	Message   []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.StationID] == nil {
				h.clients[client.StationID] = make(map[*Client]bool)
			}
			h.clients[client.StationID][client] = true
			h.mu.Unlock()
			log.Printf("[WS] listener joined station %s", client.StationID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.StationID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.StationID)
					}
				}
			}
			h.mu.Unlock()
			log.Printf("[WS] listener left station %s", client.StationID)

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.StationID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// BroadcastQueue pushes the station's current queue to every subscriber.
func (h *Hub) BroadcastQueue(stationID string, items []model.QueueItem, isExtending bool) {
	msg := model.WSQueueMessage{
		Type:        model.WSMessageTypeQueue,
		StationID:   stationID,
		Items:       items,
		IsExtending: isExtending,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS] failed to marshal queue message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{
		StationID: stationID,
		Message:   data,
	}
}

// BroadcastError sends an error message to all station subscribers
func (h *Hub) BroadcastError(stationID string, code, message string) {
	msg := model.WSErrorMessage{
		Type:      model.WSMessageTypeError,
		StationID: stationID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[WS] failed to marshal error message: %v", err)
		return
	}

	h.broadcast <- &BroadcastMessage{
		StationID: stationID,
		Message:   data,
	}
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, stationID string) {
	client := &Client{
		StationID: stationID,
		Conn:      c,
		Send:      make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	// Start writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				// Send ping for keep-alive
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] connection error: %v", err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong := model.WSMessage{Type: model.WSMessageTypePong}
			data, _ := json.Marshal(pong)
			client.Send <- data
		}
	}
}
