/*
Package chat implements presence tracking and admin/guest message routing over WebSocket connections.

This file defines the Client struct, representing one live WebSocket connection. It owns the read
and write loops; every frame read is handed to a Handler, and every frame written comes from the
client's send queue filled by the Hub.
*/
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"propchat/internal/pkg/logx"
	"propchat/internal/pkg/randx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 16384

	// sendBufferSize is the capacity of a client's outbound queue.
	sendBufferSize = 256
)

// Identity is what the handshake established about a connection. At most one field is set.
type Identity struct {
	UserID  string
	GuestID string
}

// Conn is the view of a live connection the Engine works with.
type Conn interface {
	// Handle returns the connection's unique handle.
	Handle() string

	// Identity returns the participant the connection represents.
	Identity() Identity

	// BindGuest records the guest a connection represents when the handshake carried none.
	BindGuest(guestID string)
}

// Handler reacts to connection lifecycle and inbound frames. Engine is the production Handler.
type Handler interface {
	OnConnect(ctx context.Context, c Conn)
	Dispatch(ctx context.Context, c Conn, raw []byte)
	OnDisconnect(ctx context.Context, c Conn)
}

// Client struct represents an active WebSocket connection.
type Client struct {
	hub *Hub

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// handle identifies this connection in the hub and in store presence columns.
	handle string

	// identity is set at handshake and may gain a guest via BindGuest.
	identity Identity
	idMu     sync.RWMutex

	handler Handler

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	// structured logger with connection context.
	logger zerolog.Logger
}

var _ Conn = (*Client)(nil)

// NewClient constructs a Client with a fresh handle. It is not registered until Run.
func NewClient(hub *Hub, wsConn *websocket.Conn, identity Identity, handler Handler) *Client {
	handle := randx.ConnectionHandle()

	clientLogger := logx.Logger().With().
		Str("handle", handle).
		Str("user_id", identity.UserID).
		Str("guest_id", identity.GuestID).
		Logger()

	return &Client{
		hub:      hub,
		conn:     wsConn,
		handle:   handle,
		identity: identity,
		handler:  handler,
		send:     make(chan []byte, sendBufferSize),
		logger:   clientLogger,
	}
}

func (c *Client) Handle() string { return c.handle }

func (c *Client) Identity() Identity {
	c.idMu.RLock()
	defer c.idMu.RUnlock()
	return c.identity
}

func (c *Client) BindGuest(guestID string) {
	c.idMu.Lock()
	defer c.idMu.Unlock()
	c.identity.GuestID = guestID
}

// Run registers the client, runs the connect handler, then serves the connection until it closes.
// The connect handler completes before the first inbound frame is read. Run blocks until disconnect
// cleanup has finished.
func (c *Client) Run(ctx context.Context) {
	if !c.hub.Register(c) {
		c.logger.Warn().Msg("Hub closed, rejecting connection.")
		_ = c.conn.Close()
		return
	}
	defer c.hub.release()

	go c.WritePump()

	c.handler.OnConnect(ctx, c)

	c.ReadPump(ctx)
}

// ReadPump reads frames until the connection fails, then runs disconnect cleanup.
func (c *Client) ReadPump(ctx context.Context) {
	defer c.cleanupOnDisconnect(ctx)

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.handler.Dispatch(ctx, c, raw)
	}
}

// cleanupOnDisconnect unregisters the client and clears its presence. The store update must not be
// skipped when ctx is cancelled by server shutdown.
func (c *Client) cleanupOnDisconnect(ctx context.Context) {
	c.logger.Debug().Msg("Client connection cleanup starting.")

	c.hub.Unregister(c)
	c.handler.OnDisconnect(context.WithoutCancel(ctx), c)

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// WritePump writes queued frames and periodic pings until the queue is closed or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// unblocks ReadPump when the write side fails first
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !c.writeQueuedFrame(frame, ok) {
				return
			}

		case <-ticker.C:
			if !c.writePing() {
				return
			}
		}
	}
}

// writeQueuedFrame returns false when the write loop should stop.
func (c *Client) writeQueuedFrame(frame []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
			c.logger.Debug().Err(err).Msg("Error writing close message")
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing message")
		return false
	}

	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}
