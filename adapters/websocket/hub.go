package websocket

import (
	"fmt"
	"sync"

	"github.com/satriahrh/cocoa-fruit/haggle/utils/log"
)

// Hub tracks connected clients by session id.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.sessionID] = client
	log.WithCtx(client.ctx).Debug("New client registered")
}

// Unregister removes a client from the hub and closes it
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	if current, ok := h.clients[client.sessionID]; ok && current == client {
		delete(h.clients, client.sessionID)
	}
	h.mu.Unlock()

	client.Close()
	log.WithCtx(client.ctx).Debug("Client unregistered")
}

// SendToSession sends a message to the client owning sessionID
func (h *Hub) SendToSession(sessionID string, message []byte) error {
	h.mu.RLock()
	client, ok := h.clients[sessionID]
	h.mu.RUnlock()

	if !ok || client.IsClosed() {
		return fmt.Errorf("client for session %s not found", sessionID)
	}
	return client.SendMessage(message)
}

// IsSessionConnected checks if a session has a live connection
func (h *Hub) IsSessionConnected(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[sessionID]
	return ok && !client.IsClosed()
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
