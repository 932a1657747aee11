/*
Package chat implements presence tracking and admin/guest message routing over WebSocket connections.

This file defines the Hub, the process-local registry of live connections and named rooms. The Hub
only knows connection handles; which participant a handle represents is recorded in the store.
*/
package chat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"propchat/internal/pkg/logx"
)

// Emitter delivers frames to live connections by handle or by room.
type Emitter interface {
	// Emit queues a frame for one connection and reports whether it was accepted.
	Emit(handle string, event EventKind, payload any) bool

	// Join subscribes a connection to a room and reports whether the connection is live.
	Join(handle, room string) bool

	// Broadcast queues a frame for every member of a room and returns how many accepted it.
	Broadcast(room string, event EventKind, payload any) int
}

// Hub tracks live clients and their room memberships.
type Hub struct {
	// clients maps connection handles to live clients.
	clients map[string]*Client

	// rooms maps room names to the set of member handles.
	rooms map[string]map[string]struct{}

	// closed is set by Shutdown; later registrations are refused.
	closed bool

	// mu guards clients, rooms, closed and every close of a client's send channel.
	mu sync.RWMutex

	// running counts accepted clients whose disconnect cleanup has not finished.
	running sync.WaitGroup

	logger zerolog.Logger
}

var _ Emitter = (*Hub)(nil)

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]struct{}),
		logger:  logx.Component("hub"),
	}
}

// Register adds a client. It returns false after Shutdown. Every accepted client must call release
// once its disconnect cleanup is done.
func (h *Hub) Register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}

	h.running.Add(1)
	h.clients[c.handle] = c
	h.logger.Debug().Str("handle", c.handle).Int("total_clients", len(h.clients)).Msg("Client registered.")
	return true
}

// Unregister removes a client from the registry and from every room, then closes its send queue.
// Unregistering an unknown or already removed client is a no-op.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.clients[c.handle]
	if !ok || current != c {
		return
	}

	delete(h.clients, c.handle)
	for name, members := range h.rooms {
		delete(members, c.handle)
		if len(members) == 0 {
			delete(h.rooms, name)
		}
	}
	close(c.send)

	h.logger.Debug().Str("handle", c.handle).Int("total_clients", len(h.clients)).Msg("Client unregistered.")
}

func (h *Hub) release() {
	h.running.Done()
}

// Join subscribes handle to room.
func (h *Hub) Join(handle, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[handle]; !ok {
		return false
	}

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		h.rooms[room] = members
	}
	members[handle] = struct{}{}
	return true
}

// Emit encodes a frame and queues it on the client's send channel without blocking.
// A full queue drops the frame.
func (h *Hub) Emit(handle string, event EventKind, payload any) bool {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", string(event)).Msg("Failed to encode outbound frame.")
		return false
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[handle]
	if !ok {
		return false
	}
	return h.enqueue(c, event, frame)
}

// Broadcast queues a frame for every member of room.
func (h *Hub) Broadcast(room string, event EventKind, payload any) int {
	frame, err := EncodeFrame(event, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", string(event)).Msg("Failed to encode outbound frame.")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for handle := range h.rooms[room] {
		if c, ok := h.clients[handle]; ok && h.enqueue(c, event, frame) {
			delivered++
		}
	}
	return delivered
}

// enqueue must be called with mu held.
func (h *Hub) enqueue(c *Client, event EventKind, frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		h.logger.Warn().
			Str("handle", c.handle).
			Str("event", string(event)).
			Int("queue_len", len(c.send)).
			Msg("Client send channel full, dropping frame.")
		return false
	}
}

// Len returns the number of live clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Shutdown closes every client's send queue, which makes its write pump send a close frame and
// tear down the connection. Later registrations are refused. It then waits until every client has
// finished disconnect cleanup, or until ctx is done.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.logger.Info().Msg("Shutting down hub...")

	h.mu.Lock()
	if !h.closed {
		h.closed = true

		for handle, c := range h.clients {
			close(c.send)
			delete(h.clients, handle)
		}
		h.rooms = make(map[string]map[string]struct{})
	}
	h.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		h.running.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		h.logger.Info().Msg("Hub shutdown complete.")
		return nil
	case <-ctx.Done():
		h.logger.Warn().Msg("Hub shutdown timed out before every client finished cleanup.")
		return ctx.Err()
	}
}
