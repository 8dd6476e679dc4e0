package app

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/LeonardoBeccarini/aquamonitor/internal/metrics"
)

const (
	MessageSnapshot = "snapshot"
	MessageAlert    = "alert"
)

// Envelope is the frame pushed to dashboard clients.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active dashboard clients and broadcasts to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewHub(logger *zap.Logger, m *metrics.Metrics) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		logger:     logger,
		metrics:    m,
	}
}

// Run owns the client set until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.Send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.observe()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.observe()
			h.logger.Info("ws: client registered", zap.String("remote", client.remote()))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				h.logger.Info("ws: client unregistered", zap.String("remote", client.remote()))
			}
			h.mu.Unlock()
			h.observe()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// slow or gone
					h.logger.Warn("ws: send buffer full, dropping client", zap.String("remote", client.remote()))
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
			h.observe()
		}
	}
}

func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// ClientCount is the number of open dashboards; any open dashboard means the app is open.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast never blocks the caller; frames are dropped while the queue is full.
func (h *Hub) Broadcast(kind string, data interface{}) {
	b, err := json.Marshal(Envelope{Type: kind, Data: data})
	if err != nil {
		h.logger.Error("ws: marshal broadcast", zap.String("type", kind), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- b:
	default:
		h.logger.Warn("ws: broadcast queue full", zap.String("type", kind))
	}
}

func (h *Hub) observe() {
	if h.metrics != nil {
		h.metrics.WebsocketClients.Set(float64(h.ClientCount()))
	}
}
