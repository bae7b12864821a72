// Package ws holds the live mapping from authenticated subjects to their
// push-channel connections and delivers targeted events to them. The hub
// is constructed once at startup and injected into everything that
// registers connections or emits events; there is no package-level
// instance.
package ws

import (
	"log"
	"sync"
)

// Envelope is the wire shape of every push-channel message.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Hub maps subject IDs to their set of live connections. A subject may
// hold zero or more connections (several tabs, devices); a connection
// belongs to exactly one subject, recorded at handshake time.
type Hub struct {
	mu    sync.RWMutex
	conns map[uint64]map[*Conn]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[uint64]map[*Conn]struct{})}
}

// Register adds a connection to its subject's delivery group. Registering
// the same connection twice is a no-op.
func (h *Hub) Register(subjectID uint64, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[subjectID]
	if !ok {
		set = make(map[*Conn]struct{})
		h.conns[subjectID] = set
	}
	set[c] = struct{}{}
}

// Unregister removes a connection from whatever group it belongs to,
// derived from the identity recorded at handshake, and releases empty
// groups. Unknown connections are ignored.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.conns[c.subjectID]
	if !ok {
		return
	}
	delete(set, c)
	if len(set) == 0 {
		delete(h.conns, c.subjectID)
	}
}

// Emit delivers the event to every currently registered connection of the
// subject. Delivery is fire-and-forget and at most once per connection: a
// slow consumer's message is dropped rather than blocking the caller, and
// an offline subject (zero connections) is not an error.
func (h *Hub) Emit(subjectID uint64, event string, payload any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns[subjectID] {
		if !c.enqueue(Envelope{Event: event, Data: payload}) {
			log.Printf("ws: dropped %q for subject %d: send buffer full", event, subjectID)
		}
	}
}

// ConnectionCount reports how many connections a subject currently holds.
func (h *Hub) ConnectionCount(subjectID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns[subjectID])
}
