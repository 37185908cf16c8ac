package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"wawtransit/internal/domain"
)

// Client is one connected websocket consumer. An empty route set means
// the client receives every vehicle; otherwise snapshots are filtered
// to the subscribed route ids.
type Client struct {
	ID     string
	Send   chan []byte
	mu     sync.RWMutex
	routes map[string]struct{}
}

func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:     id,
		Send:   make(chan []byte, bufferSize),
		routes: make(map[string]struct{}),
	}
}

func (c *Client) AddRoutes(routeIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range routeIDs {
		c.routes[id] = struct{}{}
	}
}

func (c *Client) RemoveRoutes(routeIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range routeIDs {
		delete(c.routes, id)
	}
}

// Filter returns the subset of positions this client subscribed to.
func (c *Client) Filter(positions []*domain.VehiclePosition) []*domain.VehiclePosition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.routes) == 0 {
		return positions
	}

	filtered := make([]*domain.VehiclePosition, 0, len(positions))
	for _, p := range positions {
		if p.RouteID == nil {
			continue
		}
		if _, ok := c.routes[*p.RouteID]; ok {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// Hub fans position snapshots out to websocket clients. It owns client
// registration; the poller feeds it via Broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan []*domain.VehiclePosition

	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan []*domain.VehiclePosition, 16),
		logger:     logger.With("component", "hub"),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.ID, "total", total)

		case client := <-h.unregister:
			h.removeClient(client)

		case positions := <-h.broadcast:
			h.fanout(positions)
		}
	}
}

// Broadcast hands a fresh snapshot to the fanout loop. Snapshots are
// dropped rather than queued when the loop is behind; the next poll
// supersedes them anyway.
func (h *Hub) Broadcast(positions []*domain.VehiclePosition) {
	select {
	case h.broadcast <- positions:
	default:
		h.logger.Warn("broadcast channel full, dropping snapshot", "vehicles", len(positions))
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// SnapshotMessage is the wire format pushed to websocket clients.
type SnapshotMessage struct {
	Type    string          `json:"type"`
	Payload SnapshotPayload `json:"payload"`
}

type SnapshotPayload struct {
	Positions []*domain.VehiclePosition `json:"positions"`
	Count     int                       `json:"count"`
}

func (h *Hub) fanout(positions []*domain.VehiclePosition) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		subset := client.Filter(positions)
		msg := SnapshotMessage{
			Type:    "positions",
			Payload: SnapshotPayload{Positions: subset, Count: len(subset)},
		}
		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}

		select {
		case client.Send <- data:
		default:
			h.logger.Debug("client send buffer full", "client_id", client.ID)
		}
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)
	h.logger.Debug("client unregistered", "client_id", client.ID, "total", len(h.clients))
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]struct{})
}
