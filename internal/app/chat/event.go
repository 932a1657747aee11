/*
Package chat implements presence tracking and admin/guest message routing over WebSocket connections.

This file defines the wire protocol. Every frame is {"event": <name>, "data": <payload>}. Inbound
frames decode into a closed set of Inbound variants that Engine.Dispatch handles exhaustively.
*/
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventKind names a frame on the wire.
type EventKind string

const (
	// EventCustomerConnection re-registers guest presence (client -> server).
	EventCustomerConnection EventKind = "customer_connection"

	// EventAdminConnection re-registers user presence (client -> server).
	EventAdminConnection EventKind = "admin_connection"

	// EventChatToAdmin carries a guest message to the admin (both directions).
	EventChatToAdmin EventKind = "chat_to_admin"

	// EventChatToCustomer carries an admin message to a guest (both directions).
	EventChatToCustomer EventKind = "chat_to_customer"

	// EventJoinRoom acknowledges a room join (server -> client).
	EventJoinRoom EventKind = "join_room"

	// EventSocketError reports a per-event failure (server -> client).
	EventSocketError EventKind = "socket_error"

	// EventGuestPresence tells the admin room that a guest came online or went offline.
	EventGuestPresence EventKind = "guest_presence"
)

const (
	// AdminRoom is the broadcast group every connected admin joins.
	AdminRoom = "admin_room"

	customerRoomPrefix = "customer_"
)

// CustomerRoom returns the private room name of a guest.
func CustomerRoom(guestID string) string {
	return customerRoomPrefix + guestID
}

// ErrUnknownEvent is returned by DecodeInbound for event names outside the inbound set.
var ErrUnknownEvent = errors.New("unknown event")

// Inbound is a decoded client -> server frame. The set of implementations is closed.
type Inbound interface {
	Kind() EventKind
	inbound()
}

// CustomerConnection is the fallback guest registration.
type CustomerConnection struct {
	GuestID string `json:"guestId"`
}

// AdminConnection is the fallback user registration. It carries no payload.
type AdminConnection struct{}

// ChatToAdmin is a guest's message; the sender is the guest bound at handshake time.
type ChatToAdmin struct {
	ToUserID string `json:"toUserId"`
	Msg      string `json:"msg"`
}

// ChatToCustomer is an admin's message to a guest.
type ChatToCustomer struct {
	FromUserID string `json:"fromUserId"`
	ToGuestID  string `json:"toGuestId"`
	Msg        string `json:"msg"`
}

func (CustomerConnection) Kind() EventKind { return EventCustomerConnection }
func (AdminConnection) Kind() EventKind    { return EventAdminConnection }
func (ChatToAdmin) Kind() EventKind        { return EventChatToAdmin }
func (ChatToCustomer) Kind() EventKind     { return EventChatToCustomer }

func (CustomerConnection) inbound() {}
func (AdminConnection) inbound()    {}
func (ChatToAdmin) inbound()        {}
func (ChatToCustomer) inbound()     {}

type inboundFrame struct {
	Event EventKind       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundFrame struct {
	Event EventKind `json:"event"`
	Data  any       `json:"data,omitempty"`
}

// DecodeInbound parses a raw client frame.
func DecodeInbound(raw []byte) (Inbound, error) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("invalid frame: %w", err)
	}

	var msg Inbound
	switch frame.Event {
	case EventCustomerConnection:
		var p CustomerConnection
		if err := decodeData(frame.Data, &p); err != nil {
			return nil, err
		}
		msg = p
	case EventAdminConnection:
		msg = AdminConnection{}
	case EventChatToAdmin:
		var p ChatToAdmin
		if err := decodeData(frame.Data, &p); err != nil {
			return nil, err
		}
		msg = p
	case EventChatToCustomer:
		var p ChatToCustomer
		if err := decodeData(frame.Data, &p); err != nil {
			return nil, err
		}
		msg = p
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, frame.Event)
	}

	return msg, nil
}

func decodeData(data json.RawMessage, dst any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

// EncodeFrame renders an outbound frame.
func EncodeFrame(event EventKind, payload any) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, Data: payload})
}

// ChatMessage is the pushed copy of a persisted chat. Guest references carry the client-facing
// guest ID. Self is true on the echo delivered to the sender.
type ChatMessage struct {
	ID          string    `json:"id"`
	FromGuestID string    `json:"fromGuestId,omitempty"`
	FromUserID  string    `json:"fromUserId,omitempty"`
	ToUserID    string    `json:"toUserId,omitempty"`
	ToGuestID   string    `json:"toGuestId,omitempty"`
	Msg         string    `json:"msg"`
	CreatedAt   time.Time `json:"createdAt"`
	Self        bool      `json:"self"`
}

// ErrorPayload is the body of a socket_error frame.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// GuestPresence is the body of a guest_presence frame.
type GuestPresence struct {
	GuestID   string `json:"guestId"`
	Connected bool   `json:"connected"`
}
