package ws

import (
	"encoding/json"
	"log"
	"sync"

	"camwatch/internal/pipeline"
)

const clientBuffer = 32

// client is one websocket subscriber. Only its write pump writes to the
// connection.
type client struct {
	send chan []byte
	// all receives results without motion too
	all bool
}

// MotionHub fans frame results out to websocket clients
type MotionHub struct {
	clients map[*client]bool
	mu      sync.RWMutex
}

// NewMotionHub creates a new motion hub
func NewMotionHub() *MotionHub {
	return &MotionHub{
		clients: make(map[*client]bool),
	}
}

// register adds a client
func (h *MotionHub) register(all bool) *client {
	c := &client{send: make(chan []byte, clientBuffer), all: all}

	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()

	log.Printf("[WS] Client registered (total: %d)", n)
	return c
}

// unregister removes a client and closes its send channel
func (h *MotionHub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		log.Printf("[WS] Client unregistered")
	}
}

// ClientCount returns the number of connected clients
func (h *MotionHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// OnFrameResult implements pipeline.FrameResultHandler
func (h *MotionHub) OnFrameResult(result *pipeline.FrameResult) {
	if h.ClientCount() == 0 {
		return
	}

	data, err := json.Marshal(NewMotionMessage(result))
	if err != nil {
		log.Printf("[WS] Error marshaling motion message: %v", err)
		return
	}
	h.broadcast(data, result.HasMotion())
}

// broadcast queues a message on every interested client, dropping it for
// clients that are not keeping up
func (h *MotionHub) broadcast(data []byte, motion bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !motion && !c.all {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client too slow, skip this message
		}
	}
}

// Close disconnects every client
func (h *MotionHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
}

var _ pipeline.FrameResultHandler = (*MotionHub)(nil)
