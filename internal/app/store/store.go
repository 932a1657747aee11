/*
Package store defines the persistent model of the chat system and the interfaces the chat engine
and the read APIs depend on.

Participants are registered users (one of which holds the ADMIN role) and anonymous guests. Both carry
a nullable Socket: the handle of the live connection last known to represent them. Chats are
directed messages between exactly one user and exactly one guest.
*/
package store

import (
	"context"
	"errors"
	"time"
)

// Role names a registered user's role.
type Role string

const (
	// RoleAdmin is the role of the single account receiving guest messages.
	RoleAdmin Role = "ADMIN"

	// RoleUser is the role of any other back-office account.
	RoleUser Role = "USER"
)

var (
	// ErrNotFound is returned when a user, guest or admin does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrGuestExists is returned when creating a guest whose guest ID is already taken.
	ErrGuestExists = errors.New("store: guest already exists")

	// ErrAdminExists is returned when provisioning a second admin.
	ErrAdminExists = errors.New("store: an admin already exists")

	// ErrUserExists is returned when creating a user whose ID is already taken.
	ErrUserExists = errors.New("store: user already exists")

	// ErrInvalidChat is returned for chats that do not join exactly one user and one guest.
	ErrInvalidChat = errors.New("store: chat must have exactly one sender and one recipient")
)

// User is a registered back-office account.
type User struct {
	ID        string
	Role      Role
	Socket    *string
	CreatedAt time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Guest is an anonymous visitor session.
type Guest struct {
	// ID is the internal identifier referenced by chats.
	ID string

	// GuestID is the identifier supplied by the client.
	GuestID string

	Socket    *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GuestSummary is a guest row enriched for the admin guest list.
type GuestSummary struct {
	Guest
	LastMessage   *string
	LastMessageAt *time.Time
}

// Chat is one persisted, immutable directed message.
type Chat struct {
	ID          string
	Msg         string
	FromUserID  *string
	FromGuestID *string
	ToUserID    *string
	ToGuestID   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewChat is the input for ChatStore.CreateChat. Guest references hold internal guest IDs.
type NewChat struct {
	ID          string
	Msg         string
	FromUserID  string
	FromGuestID string
	ToUserID    string
	ToGuestID   string
}

// Validate enforces that exactly one sender and exactly one recipient are set and that the chat
// connects a user and a guest.
func (c NewChat) Validate() error {
	if c.ID == "" {
		return ErrInvalidChat
	}

	fromUser, fromGuest := c.FromUserID != "", c.FromGuestID != ""
	toUser, toGuest := c.ToUserID != "", c.ToGuestID != ""

	if fromUser == fromGuest || toUser == toGuest {
		return ErrInvalidChat
	}

	if fromUser == toUser {
		return ErrInvalidChat
	}

	return nil
}

// PresenceStore reads and updates participant presence.
type PresenceStore interface {
	// GetUser returns the user with the given ID.
	GetUser(ctx context.Context, id string) (User, error)

	// GetAdmin returns the user with the given ID only if it holds the admin role.
	GetAdmin(ctx context.Context, id string) (User, error)

	// FirstAdmin returns the admin account.
	FirstAdmin(ctx context.Context) (User, error)

	// SetUserSocket sets the presence handle of a user.
	SetUserSocket(ctx context.Context, id, socket string) error

	// GetGuest returns the guest with the given client-supplied guest ID.
	GetGuest(ctx context.Context, guestID string) (Guest, error)

	// GetGuestByID returns the guest with the given internal ID.
	GetGuestByID(ctx context.Context, id string) (Guest, error)

	// CreateGuest creates a guest holding socket. Returns ErrGuestExists on conflict.
	CreateGuest(ctx context.Context, guestID, socket string) (Guest, error)

	// SetGuestSocket sets the presence handle of a guest and returns the updated row.
	SetGuestSocket(ctx context.Context, guestID, socket string) (Guest, error)

	// ClearSocket nulls the presence handle of every user and guest holding socket and returns the
	// number of rows changed.
	ClearSocket(ctx context.Context, socket string) (int64, error)

	// ClearAllSockets nulls every presence handle. Run at startup, when no handle can be live.
	ClearAllSockets(ctx context.Context) (int64, error)

	// ListGuests returns all guests, most recently active first.
	ListGuests(ctx context.Context) ([]GuestSummary, error)
}

// ChatStore persists and reads chat transcripts.
type ChatStore interface {
	// CreateChat persists a validated chat and returns the stored row.
	CreateChat(ctx context.Context, chat NewChat) (Chat, error)

	// ListChatsForGuest returns every chat sent to or from the guest (internal ID), oldest first.
	ListChatsForGuest(ctx context.Context, guestInternalID string) ([]Chat, error)
}

// UserProvisioner creates back-office accounts. Used by provisioning tooling, not by the chat path.
type UserProvisioner interface {
	// CreateUser inserts a user. Returns ErrAdminExists or ErrUserExists on conflict.
	CreateUser(ctx context.Context, id string, role Role) (User, error)
}

// Store is the full persistence surface.
type Store interface {
	PresenceStore
	ChatStore
	UserProvisioner

	// Ping checks store availability.
	Ping(ctx context.Context) error

	// Close releases store resources.
	Close()
}
