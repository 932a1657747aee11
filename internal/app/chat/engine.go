/*
Package chat implements presence tracking and admin/guest message routing over WebSocket connections.

This file defines the Engine: connection lifecycle handlers (presence set on connect, cleared by value
on disconnect) and the routing of guest -> admin and admin -> guest messages. The store is the source
of truth for presence; the Engine never caches it.
*/
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"propchat/internal/app/store"
	"propchat/internal/pkg/errs"
	"propchat/internal/pkg/limiter"
	"propchat/internal/pkg/logx"
	"propchat/internal/pkg/randx"
)

const (
	// MaxContentBytes is the maximum allowed size (in bytes) of a message body.
	MaxContentBytes = 5000

	// DefaultStoreTimeout bounds every store call made while handling one event.
	DefaultStoreTimeout = 5 * time.Second
)

// ErrDropped marks events discarded because a party could not be resolved. They are logged, never
// reported to the client.
var ErrDropped = errors.New("event dropped")

// EngineConfig wires an Engine.
type EngineConfig struct {
	Presence store.PresenceStore
	Chats    store.ChatStore
	Emitter  Emitter

	// MessageLimiter rate limits chat events per connection handle. Nil disables limiting.
	MessageLimiter *limiter.KeyedLimiter

	// StoreTimeout defaults to DefaultStoreTimeout.
	StoreTimeout time.Duration
}

// Engine handles connection lifecycle and inbound chat events.
type Engine struct {
	presence store.PresenceStore
	chats    store.ChatStore
	emitter  Emitter
	limiter  *limiter.KeyedLimiter
	timeout  time.Duration
	logger   zerolog.Logger
}

var _ Handler = (*Engine)(nil)

// NewEngine constructs an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	timeout := cfg.StoreTimeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}

	return &Engine{
		presence: cfg.Presence,
		chats:    cfg.Chats,
		emitter:  cfg.Emitter,
		limiter:  cfg.MessageLimiter,
		timeout:  timeout,
		logger:   logx.Component("engine"),
	}
}

// Delivery reports what happened to a routed message.
type Delivery struct {
	Message ChatMessage

	// ToRecipient is true when the copy for the recipient was queued.
	ToRecipient bool

	// ToSender is true when the echo for the sender was queued.
	ToSender bool
}

// OnConnect registers presence for the handshake identity. It never fails the connection.
func (e *Engine) OnConnect(ctx context.Context, c Conn) {
	id := c.Identity()

	switch {
	case id.UserID != "":
		e.registerUser(ctx, c, id.UserID)
	case id.GuestID != "":
		e.registerGuest(ctx, c, id.GuestID)
	default:
		e.logger.Warn().Str("handle", c.Handle()).Msg("Connection carries neither a user nor a guest identity.")
		e.emitError(c, errs.NewError(errs.ErrIdentityMissing))
	}
}

// OnDisconnect clears presence on every participant whose socket is the connection's handle.
// Clearing by value makes a late disconnect of a superseded connection a no-op.
func (e *Engine) OnDisconnect(ctx context.Context, c Conn) {
	handle := c.Handle()

	if e.limiter != nil {
		e.limiter.Forget(handle)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cleared, err := e.presence.ClearSocket(ctx, handle)
	if err != nil {
		e.logger.Error().Err(err).Str("handle", handle).Msg("Failed to clear presence on disconnect.")
		return
	}

	e.logger.Debug().Str("handle", handle).Int64("cleared", cleared).Msg("Presence cleared.")

	if guestID := c.Identity().GuestID; guestID != "" && cleared > 0 {
		e.emitter.Broadcast(AdminRoom, EventGuestPresence, GuestPresence{GuestID: guestID, Connected: false})
	}
}

// Dispatch decodes one inbound frame and handles it. Failures are absorbed: client errors become
// socket_error frames, everything else is logged.
func (e *Engine) Dispatch(ctx context.Context, c Conn, raw []byte) {
	msg, err := DecodeInbound(raw)
	if err != nil {
		e.logger.Warn().Err(err).Str("handle", c.Handle()).Msg("Client sent an invalid frame.")
		if errors.Is(err, ErrUnknownEvent) {
			e.emitError(c, errs.NewError(errs.ErrUnsupportedEvent, eventName(raw)))
		} else {
			e.emitError(c, errs.NewError(errs.ErrInvalidJSONFormat))
		}
		return
	}

	e.route(ctx, c, msg)
}

// route handles one decoded event.
func (e *Engine) route(ctx context.Context, c Conn, msg Inbound) {
	var err error

	switch m := msg.(type) {
	case CustomerConnection:
		e.customerConnection(ctx, c, m)
	case AdminConnection:
		e.adminConnection(ctx, c)
	case ChatToAdmin:
		_, err = e.ChatToAdmin(ctx, c, m)
	case ChatToCustomer:
		_, err = e.ChatToCustomer(ctx, c, m)
	default:
		e.logger.Error().Str("handle", c.Handle()).Str("event", string(msg.Kind())).
			Msgf("No route for inbound event %T.", msg)
		e.emitError(c, errs.NewError(errs.ErrUnsupportedEvent, msg.Kind()))
		return
	}

	if err != nil {
		e.handleEventError(c, msg.Kind(), err)
	}
}

func (e *Engine) handleEventError(c Conn, kind EventKind, err error) {
	logger := e.logger.With().Str("handle", c.Handle()).Str("event", string(kind)).Logger()

	var customErr *errs.CustomError
	switch {
	case errors.As(err, &customErr):
		logger.Info().Int("code", customErr.Code).Msg("Rejected client event.")
		e.emitError(c, customErr)
	case errors.Is(err, ErrDropped):
		logger.Warn().Err(err).Msg("Dropped chat event.")
	default:
		logger.Error().Err(err).Msg("Failed to handle chat event.")
	}
}

func (e *Engine) customerConnection(ctx context.Context, c Conn, p CustomerConnection) {
	if p.GuestID == "" {
		e.emitError(c, errs.NewError(errs.ErrGuestIDMissing))
		return
	}

	bound := c.Identity()
	if bound.UserID != "" {
		e.logger.Warn().Str("handle", c.Handle()).Msg("User connection attempted guest registration.")
		e.emitError(c, errs.NewError(errs.ErrGuestRegistrationFailed, "connection already belongs to a user"))
		return
	}
	// a malformed guest ID from the handshake never registered, so it may be replaced
	boundValid := bound.GuestID != "" && randx.IsValidGuestID(bound.GuestID)
	if boundValid && bound.GuestID != p.GuestID {
		e.logger.Warn().
			Str("handle", c.Handle()).
			Str("bound_guest_id", bound.GuestID).
			Str("requested_guest_id", p.GuestID).
			Msg("Guest re-registration with a different guest ID.")
		e.emitError(c, errs.NewError(errs.ErrGuestRegistrationFailed, "connection already belongs to another guest"))
		return
	}

	if !boundValid {
		if !randx.IsValidGuestID(p.GuestID) {
			e.emitError(c, errs.NewError(errs.ErrGuestIDInvalid))
			return
		}
		c.BindGuest(p.GuestID)
	}

	e.registerGuest(ctx, c, p.GuestID)
}

func (e *Engine) adminConnection(ctx context.Context, c Conn) {
	userID := c.Identity().UserID
	if userID == "" {
		e.logger.Warn().Str("handle", c.Handle()).Msg("admin_connection on a connection without a user identity.")
		e.emitError(c, errs.NewError(errs.ErrIdentityMissing))
		return
	}

	e.registerUser(ctx, c, userID)
}

func (e *Engine) registerUser(ctx context.Context, c Conn, userID string) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	logger := e.logger.With().Str("handle", c.Handle()).Str("user_id", userID).Logger()

	u, err := e.presence.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn().Msg("Connecting user not found, presence not recorded.")
		} else {
			logger.Error().Err(err).Msg("Failed to look up connecting user.")
		}
		return
	}

	if err := e.presence.SetUserSocket(ctx, u.ID, c.Handle()); err != nil {
		logger.Error().Err(err).Msg("Failed to record user presence.")
		return
	}

	if u.IsAdmin() {
		e.emitter.Join(c.Handle(), AdminRoom)
		e.emitter.Emit(c.Handle(), EventJoinRoom, AdminRoom)
	}

	logger.Info().Str("role", string(u.Role)).Msg("User presence recorded.")
}

func (e *Engine) registerGuest(ctx context.Context, c Conn, guestID string) {
	logger := e.logger.With().Str("handle", c.Handle()).Str("guest_id", guestID).Logger()

	if !randx.IsValidGuestID(guestID) {
		logger.Warn().Msg("Malformed guest ID.")
		e.emitError(c, errs.NewError(errs.ErrGuestIDInvalid))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.upsertGuestPresence(ctx, guestID, c.Handle()); err != nil {
		logger.Error().Err(err).Msg("Failed to record guest presence.")
		e.emitError(c, errs.NewError(errs.ErrGuestRegistrationFailed, "presence could not be recorded"))
		return
	}

	room := CustomerRoom(guestID)
	e.emitter.Join(c.Handle(), room)
	e.emitter.Emit(c.Handle(), EventJoinRoom, room)
	e.emitter.Broadcast(AdminRoom, EventGuestPresence, GuestPresence{GuestID: guestID, Connected: true})

	logger.Info().Msg("Guest presence recorded.")
}

// upsertGuestPresence creates the guest on first sight, otherwise moves its presence to handle.
// A create that loses a race against a concurrent create falls back to an update.
func (e *Engine) upsertGuestPresence(ctx context.Context, guestID, handle string) error {
	_, err := e.presence.GetGuest(ctx, guestID)
	switch {
	case err == nil:
		_, err = e.presence.SetGuestSocket(ctx, guestID, handle)
		return err
	case !errors.Is(err, store.ErrNotFound):
		return err
	}

	_, err = e.presence.CreateGuest(ctx, guestID, handle)
	if errors.Is(err, store.ErrGuestExists) {
		_, err = e.presence.SetGuestSocket(ctx, guestID, handle)
	}
	return err
}

// ChatToAdmin routes a message from the guest bound to c to the admin named in p. The message is
// persisted even when nobody is connected to receive it.
func (e *Engine) ChatToAdmin(ctx context.Context, c Conn, p ChatToAdmin) (Delivery, error) {
	guestID := c.Identity().GuestID
	if guestID == "" {
		return Delivery{}, fmt.Errorf("%w: chat_to_admin on a connection without a guest", ErrDropped)
	}

	msg, cerr := e.checkMessage(c, p.Msg)
	if cerr != nil {
		return Delivery{}, cerr
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	guest, err := e.presence.GetGuest(ctx, guestID)
	if err != nil {
		return Delivery{}, resolveErr("guest", guestID, err)
	}

	admin, err := e.presence.GetAdmin(ctx, p.ToUserID)
	if err != nil {
		return Delivery{}, resolveErr("admin", p.ToUserID, err)
	}

	chat, err := e.chats.CreateChat(ctx, store.NewChat{
		ID:          randx.MessageID(),
		Msg:         msg,
		FromGuestID: guest.ID,
		ToUserID:    admin.ID,
	})
	if err != nil {
		return Delivery{}, fmt.Errorf("persist chat_to_admin: %w", err)
	}

	out := ChatMessage{
		ID:          chat.ID,
		FromGuestID: guest.GuestID,
		ToUserID:    admin.ID,
		Msg:         chat.Msg,
		CreatedAt:   chat.CreatedAt,
	}

	d := Delivery{Message: out}
	d.ToRecipient = e.push(admin.Socket, EventChatToAdmin, out, false)
	d.ToSender = e.push(guest.Socket, EventChatToAdmin, out, true)

	e.logger.Debug().
		Str("chat_id", chat.ID).
		Str("guest_id", guest.GuestID).
		Str("admin_id", admin.ID).
		Bool("to_recipient", d.ToRecipient).
		Bool("to_sender", d.ToSender).
		Msg("Routed chat_to_admin.")

	return d, nil
}

// ChatToCustomer routes a message from the admin bound to c to the guest named in p. fromUserId
// may be empty; otherwise it must name the user bound to c.
func (e *Engine) ChatToCustomer(ctx context.Context, c Conn, p ChatToCustomer) (Delivery, error) {
	id := c.Identity()
	if id.UserID == "" {
		return Delivery{}, fmt.Errorf("%w: chat_to_customer from a connection without a user", ErrDropped)
	}

	if p.FromUserID != "" && p.FromUserID != id.UserID {
		return Delivery{}, fmt.Errorf("%w: chat_to_customer fromUserId %q does not match the connection user", ErrDropped, p.FromUserID)
	}
	fromUserID := id.UserID

	msg, cerr := e.checkMessage(c, p.Msg)
	if cerr != nil {
		return Delivery{}, cerr
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	admin, err := e.presence.GetAdmin(ctx, fromUserID)
	if err != nil {
		return Delivery{}, resolveErr("admin", fromUserID, err)
	}

	guest, err := e.presence.GetGuest(ctx, p.ToGuestID)
	if err != nil {
		return Delivery{}, resolveErr("guest", p.ToGuestID, err)
	}

	chat, err := e.chats.CreateChat(ctx, store.NewChat{
		ID:         randx.MessageID(),
		Msg:        msg,
		FromUserID: admin.ID,
		ToGuestID:  guest.ID,
	})
	if err != nil {
		return Delivery{}, fmt.Errorf("persist chat_to_customer: %w", err)
	}

	out := ChatMessage{
		ID:         chat.ID,
		FromUserID: admin.ID,
		ToGuestID:  guest.GuestID,
		Msg:        chat.Msg,
		CreatedAt:  chat.CreatedAt,
	}

	d := Delivery{Message: out}
	d.ToRecipient = e.push(guest.Socket, EventChatToCustomer, out, false)
	d.ToSender = e.push(admin.Socket, EventChatToCustomer, out, true)

	e.logger.Debug().
		Str("chat_id", chat.ID).
		Str("admin_id", admin.ID).
		Str("guest_id", guest.GuestID).
		Bool("to_recipient", d.ToRecipient).
		Bool("to_sender", d.ToSender).
		Msg("Routed chat_to_customer.")

	return d, nil
}

// checkMessage validates the body and consumes one token from the connection's message budget.
func (e *Engine) checkMessage(c Conn, msg string) (string, *errs.CustomError) {
	if strings.TrimSpace(msg) == "" {
		return "", errs.NewError(errs.ErrMessageEmpty)
	}
	if len(msg) > MaxContentBytes {
		return "", errs.NewError(errs.ErrMessageContentTooLong, MaxContentBytes)
	}
	if e.limiter != nil && !e.limiter.Allow(c.Handle()) {
		return "", errs.NewError(errs.ErrRateLimitExceeded)
	}
	return msg, nil
}

// push queues msg on socket when the participant has a live presence handle.
func (e *Engine) push(socket *string, event EventKind, msg ChatMessage, self bool) bool {
	if socket == nil {
		return false
	}
	msg.Self = self
	return e.emitter.Emit(*socket, event, msg)
}

func (e *Engine) emitError(c Conn, customErr *errs.CustomError) {
	e.emitter.Emit(c.Handle(), EventSocketError, ErrorPayload{Code: customErr.Code, Message: customErr.Message})
}

// GuestConnected reports whether the guest with the given internal ID has a presence handle.
func (e *Engine) GuestConnected(ctx context.Context, guestInternalID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	g, err := e.presence.GetGuestByID(ctx, guestInternalID)
	if err != nil {
		return false, err
	}
	return g.Socket != nil, nil
}

// AdminConnected reports whether userID is the admin and has a presence handle. Non-admin and unknown
// users report false without error.
func (e *Engine) AdminConnected(ctx context.Context, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	u, err := e.presence.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !u.IsAdmin() {
		return false, nil
	}
	return u.Socket != nil, nil
}

// resolveErr classifies a lookup failure: a missing party drops the event, anything else is a store
// failure.
func resolveErr(party, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s %q not found", ErrDropped, party, id)
	}
	return fmt.Errorf("resolve %s %q: %w", party, id, err)
}

// eventName extracts the event field of a frame for error messages.
func eventName(raw []byte) string {
	var frame inboundFrame
	_ = json.Unmarshal(raw, &frame)
	return string(frame.Event)
}
